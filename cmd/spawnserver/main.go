// Command spawnserver boots the unified backend facade (spec §4.9 / C9):
// the passenger spawning engine running on a continuous interval, the
// geospatial query service, manifest enrichment, device telemetry, and a
// single HTTP surface mounting all three behind shared middleware.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/cachekit"
	"github.com/jwmdev/transitspawn/internal/config"
	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/coordinator"
	"github.com/jwmdev/transitspawn/internal/fixtures"
	"github.com/jwmdev/transitspawn/internal/geoservice"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/httpserver"
	"github.com/jwmdev/transitspawn/internal/manifest"
	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/repository"
	"github.com/jwmdev/transitspawn/internal/reservoir"
	"github.com/jwmdev/transitspawn/internal/spawner"
	"github.com/jwmdev/transitspawn/internal/spawnconfig"
	"github.com/jwmdev/transitspawn/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}

	log := newLogger(cfg.Log)

	store := geostore.New()
	fixturePath := os.Getenv("TRANSITSPAWN_FIXTURE_PATH")
	if fixturePath == "" {
		fixturePath = fixtures.DefaultPath
	}
	ds, err := fixtures.Load(fixturePath)
	if err != nil {
		log.WithError(err).Fatal("load fixtures")
	}
	store.Load(ds)

	client := contentapi.New(cfg.ContentAPI.BaseURL, cfg.ContentAPI.Token, cfg.ContentAPI.Timeout)
	repo := repository.New(client, log)

	cache, err := cachekit.New(cachekit.Options{
		Enabled:    cfg.Cache.Enabled,
		DefaultTTL: cfg.Cache.DefaultTTL,
		RedisAddr:  cfg.Cache.RedisAddr,
	})
	if err != nil {
		log.WithError(err).Fatal("build reservoir cache")
	}

	reg := metrics.New()

	configs := spawnconfig.New(client.SpawnConfig, 5*time.Minute, 256)
	defer configs.Close()

	coord := coordinator.New(log, reg)
	// Each spawner gets its own *rand.Rand: the coordinator runs every
	// enabled spawner's cycle in its own goroutine (coordinator.SingleCycle),
	// and math/rand's *rand.Rand is not safe for concurrent use.
	for _, route := range store.Routes() {
		res := reservoir.New(reservoir.Scope{Kind: "route", ID: route.ID}, repo, cache, cfg.Coordinator.ReservoirConcurrency).WithMetrics(reg)
		coord.Register(spawner.NewRouteSpawner(route.ID, route.ID, configs, store, res, newRNG(), log))
	}
	for _, depot := range store.Depots() {
		res := reservoir.New(reservoir.Scope{Kind: "depot", ID: depot.ID}, repo, cache, cfg.Coordinator.ReservoirConcurrency).WithMetrics(reg)
		coord.Register(spawner.NewDepotSpawner(depot.ID, depot.ID, configs, store, res, newRNG(), log))
	}

	geoSvc := geoservice.New(store)
	geoHandler := geoservice.NewHandler(geoSvc)

	enricher := manifest.New(geoSvc, cfg.Manifest.GeocodeConcurrency).WithMetrics(reg)
	manifestSvc := manifest.NewService(repo, store, enricher)
	manifestHandler := manifest.NewHandler(manifestSvc)

	telStore := telemetry.New()
	telHandler := telemetry.NewHandler(telStore)
	janitor := telemetry.NewJanitor(telStore, repo, cfg.HTTP.StaleAfter, log, reg)

	srv := httpserver.NewServer(httpserver.Config{
		Addr:        cfg.HTTP.Addr,
		AuthToken:   cfg.HTTP.AuthToken,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		ReadTimeout: cfg.HTTP.ReadTimeout,
	}, geoHandler, manifestHandler, telHandler, reg, janitor, coord, log)

	srv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	if err := coord.RunContinuous(ctx, cfg.Coordinator.ContinuousInterval, cfg.Coordinator.ContinuousInterval, func(summary coordinator.CycleSummary) {
		log.WithField("persisted", summary.Persisted).WithField("errors", len(summary.Errors)).
			Info("spawn cycle complete")
	}); err != nil {
		log.WithError(err).Fatal("start continuous spawn loop")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()
	coord.Stop()
	coord.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}
}

// rngSeedCounter spreads per-spawner seeds apart even when newRNG is called
// repeatedly within the same nanosecond tick.
var rngSeedCounter atomic.Int64

// newRNG builds an independent *rand.Rand; math/rand's generator is not
// safe for concurrent use, so every spawner must own one.
func newRNG() *rand.Rand {
	seed := time.Now().UnixNano() + rngSeedCounter.Add(1)
	return rand.New(rand.NewSource(seed))
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	base := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		base.SetLevel(level)
	}
	if cfg.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	return logrus.NewEntry(base)
}
