// Package httpserver is the Unified Backend Facade (spec §4.9 / C9): a
// single chi router mounting the geospatial query service, the manifest
// enrichment API, and the device-telemetry endpoints behind shared
// middleware, grounded on tokenhub's app.NewServer/SetHTTPServer/Close
// lifecycle (internal/app/server.go).
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/geoservice"
	"github.com/jwmdev/transitspawn/internal/manifest"
	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/telemetry"
)

// Config configures the facade. AuthToken empty disables bearer-token
// enforcement. CORSOrigins empty defaults to "*".
type Config struct {
	Addr        string
	AuthToken   string
	CORSOrigins []string
	ReadTimeout time.Duration
}

// Server is the unified backend facade: one chi.Mux plus the background
// janitor that shares its lifecycle.
type Server struct {
	cfg     Config
	log     *logrus.Entry
	router  *chi.Mux
	janitor *telemetry.Janitor

	httpServer *http.Server // set by Start; used by Close to drain in-flight requests
}

// NewServer builds the router, mounting every subsystem behind request-id,
// real-IP, panic-recovery and CORS middleware (spec §4.9 "a unified
// facade exposing every external operation behind one process").
// auth-protected routes sit behind BearerAuth; /healthz and /metrics never
// require a token, matching standard liveness/scrape conventions. coord
// resolves route ids for the spawner streaming endpoint and may be nil,
// in which case that endpoint is not mounted.
func NewServer(cfg Config, geo *geoservice.Handler, mf *manifest.Handler, tel *telemetry.Handler, reg *metrics.Registry, janitor *telemetry.Janitor, coord SpawnerLookup, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handleHealthz)
	if reg != nil {
		r.Handle("/metrics", reg.Handler())
	}

	r.Group(func(protected chi.Router) {
		protected.Use(BearerAuth(cfg.AuthToken))
		if geo != nil {
			geo.Mount(protected)
		}
		if mf != nil {
			mf.Mount(protected)
		}
		if tel != nil {
			tel.Mount(protected)
		}
		if coord != nil {
			(&spawnStreamHandler{coord: coord}).mount(protected)
		}
	})

	return &Server{cfg: cfg, log: log, router: r, janitor: janitor}
}

// Router exposes the built handler, mainly for tests that want to drive
// it with httptest without going through Start/Close.
func (s *Server) Router() http.Handler { return s.router }

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Start begins serving HTTP on cfg.Addr and the telemetry janitor's cron
// schedule; it returns immediately, leaving ListenAndServe running in its
// own goroutine.
func (s *Server) Start() {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: readTimeout,
	}
	if s.janitor != nil {
		s.janitor.Start()
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	s.log.WithField("addr", addr).Info("unified backend facade listening")
}

// Close drains in-flight requests, then stops the janitor's cron schedule.
func (s *Server) Close(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.janitor != nil {
		s.janitor.Stop()
	}
	return err
}
