// Command seed is the Fleet Seeding CLI (spec §4.10 / C10): a one-shot
// driver over the route and depot spawners that iterates a full day and
// produces a static passenger manifest, generalizing the teacher's
// sim.WriteCSVReport to a per-spawner, per-hour spawn-count report.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/cachekit"
	"github.com/jwmdev/transitspawn/internal/config"
	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/fixtures"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/repository"
	"github.com/jwmdev/transitspawn/internal/reservoir"
	"github.com/jwmdev/transitspawn/internal/spawner"
	"github.com/jwmdev/transitspawn/internal/spawnconfig"
)

var weekdayOrder = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func main() {
	day := flag.String("day", "monday", "day of week to seed (monday..sunday)")
	routeFlag := flag.String("route", "all", "route short name to seed, or \"all\"")
	depotSpawning := flag.Bool("depot-spawning", false, "also run depot spawners for the day")
	reportPath := flag.String("report", "", "if set, write a CSV spawn report to this file or directory")
	fixturePath := flag.String("fixtures", fixtures.DefaultPath, "path to the city dataset JSON")
	flag.Parse()

	weekday, ok := weekdayOrder[strings.ToLower(*day)]
	if !ok {
		fmt.Fprintf(os.Stderr, "seed: invalid -day %q, want monday..sunday\n", *day)
		os.Exit(1)
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	store := geostore.New()
	ds, err := fixtures.Load(*fixturePath)
	if err != nil {
		log.WithError(err).Error("load fixtures")
		os.Exit(1)
	}
	store.Load(ds)

	routes := store.Routes()
	if *routeFlag != "all" {
		filtered := routes[:0]
		for _, r := range routes {
			if r.ShortName == *routeFlag {
				filtered = append(filtered, r)
			}
		}
		routes = filtered
		if len(routes) == 0 {
			fmt.Fprintf(os.Stderr, "seed: no route with short name %q\n", *routeFlag)
			os.Exit(1)
		}
	}

	client := contentapi.New(cfg.ContentAPI.BaseURL, cfg.ContentAPI.Token, cfg.ContentAPI.Timeout)
	repo := repository.New(client, log)
	cache, err := cachekit.New(cachekit.Options{Enabled: false})
	if err != nil {
		log.WithError(err).Error("build cache")
		os.Exit(1)
	}
	configs := spawnconfig.New(client.SpawnConfig, 5*time.Minute, 256)
	defer configs.Close()

	type spawnerEntry struct {
		name string
		s    spawner.Spawner
	}
	var entries []spawnerEntry
	for _, r := range routes {
		res := reservoir.New(reservoir.Scope{Kind: "route", ID: r.ID}, repo, cache, cfg.Coordinator.ReservoirConcurrency)
		entries = append(entries, spawnerEntry{name: r.ShortName, s: spawner.NewRouteSpawner(r.ID, r.ID, configs, store, res, newRNG(), log)})
	}
	if *depotSpawning {
		for _, d := range store.Depots() {
			res := reservoir.New(reservoir.Scope{Kind: "depot", ID: d.ID}, repo, cache, cfg.Coordinator.ReservoirConcurrency)
			entries = append(entries, spawnerEntry{name: d.Name, s: spawner.NewDepotSpawner(d.ID, d.ID, configs, store, res, newRNG(), log)})
		}
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "seed: no spawners selected")
		os.Exit(1)
	}

	ctx := context.Background()
	dayStart := nextOccurrence(time.Now(), weekday)
	report := make(map[string]map[int]int, len(entries)) // spawner name -> hour -> count
	total := 0

	for hour := 0; hour < 24; hour++ {
		t := dayStart.Add(time.Duration(hour) * time.Hour)
		for _, e := range entries {
			n, err := e.s.SpawnAndStore(ctx, t, time.Hour)
			if err != nil {
				log.WithError(err).WithField("spawner", e.name).WithField("hour", hour).
					Warn("seed: spawn cycle failed, continuing with remaining hours")
			}
			if report[e.name] == nil {
				report[e.name] = make(map[int]int, 24)
			}
			report[e.name][hour] += n
			total += n
		}
	}

	log.WithField("total_spawned", total).WithField("day", weekday.String()).Info("seed: complete")

	if *reportPath != "" {
		path, err := writeCSVReport(*reportPath, report)
		if err != nil {
			log.WithError(err).Error("seed: write report")
			os.Exit(1)
		}
		log.WithField("path", path).Info("seed: report written")
	}
}

// rngSeedCounter spreads per-spawner seeds apart even when newRNG is
// called repeatedly within the same nanosecond tick.
var rngSeedCounter atomic.Int64

// newRNG builds an independent *rand.Rand; math/rand's generator is not
// safe for concurrent use, so every spawner must own one.
func newRNG() *rand.Rand {
	seed := time.Now().UnixNano() + rngSeedCounter.Add(1)
	return rand.New(rand.NewSource(seed))
}

// nextOccurrence returns the start of day of the next (or current) date
// matching weekday, at midnight.
func nextOccurrence(from time.Time, weekday time.Weekday) time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	delta := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}

// writeCSVReport writes a per-spawner, per-hour spawn-count CSV, mirroring
// the teacher's timestamp-suffixed file/directory convention
// (sim.WriteCSVReport).
func writeCSVReport(reportPath string, report map[string]map[int]int) (string, error) {
	ts := time.Now().Format("20060102-150405")
	outPath := reportPath
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, fmt.Sprintf("seed-report-%s.csv", ts))
	} else {
		ext := filepath.Ext(outPath)
		base := outPath[:len(outPath)-len(ext)]
		outPath = fmt.Sprintf("%s-%s%s", base, ts, ext)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fmt.Fprintln(f, "spawner,hour,count")
	for name, hours := range report {
		for hour := 0; hour < 24; hour++ {
			fmt.Fprintf(f, "%s,%d,%d\n", name, hour, hours[hour])
		}
	}
	return outPath, nil
}
