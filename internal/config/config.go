// Package config loads process-level configuration with a
// defaults -> file -> environment precedence, the way
// github.com/knadh/koanf is wired across the rest of the corpus.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRANSITSPAWN_"

// Config is the process-wide configuration for the unified backend facade
// and the standalone CLIs (spec §6 "external interfaces" callers and §9
// env vars).
type Config struct {
	Environment string            `koanf:"environment"`
	ContentAPI  ContentAPIConfig  `koanf:"content_api"`
	Upstream    UpstreamConfig    `koanf:"upstream"`
	HTTP        HTTPConfig        `koanf:"http"`
	Cache       CacheConfig       `koanf:"cache"`
	Manifest    ManifestConfig    `koanf:"manifest"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Log         LogConfig         `koanf:"log"`
}

// IsProduction reports whether Environment names the production
// deployment tier (case-insensitive).
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// UpstreamConfig points at the geospatial and geofence services when they
// run outside the unified facade (spec §9: deployments may split C2 and
// C8 into their own processes instead of mounting them under C9).
type UpstreamConfig struct {
	GeoURL        string `koanf:"geo_url"`
	GeospatialURL string `koanf:"geospatial_url"`
}

// ContentAPIConfig points at the external content-backed store (spec §1:
// "the content API and its underlying store are external systems").
type ContentAPIConfig struct {
	BaseURL string        `koanf:"url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// HTTPConfig configures the unified facade (spec §4.9 / C9).
type HTTPConfig struct {
	Addr        string        `koanf:"addr"`
	AuthToken   string        `koanf:"auth_token"`
	CORSOrigins []string      `koanf:"cors_origins"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
	StaleAfter  time.Duration `koanf:"stale_after"`
}

// CacheConfig selects the optional distributed cache backend (spec §5:
// "strictly optional; correctness must not depend on the cache").
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	RedisAddr  string        `koanf:"redis_addr"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// ManifestConfig tunes manifest enrichment (spec §4.8).
type ManifestConfig struct {
	GeocodeConcurrency int `koanf:"geocode_concurrency"`
}

// CoordinatorConfig tunes the spawn coordinator (spec §4.7).
type CoordinatorConfig struct {
	ReservoirConcurrency int           `koanf:"reservoir_concurrency"`
	ContinuousInterval   time.Duration `koanf:"continuous_interval"`
}

// LogConfig configures logrus (spec §2 ambient logging).
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Loader loads Config from layered sources, highest precedence last:
// defaults, then an optional YAML file, then environment variables.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// Option customizes a Loader.
type Option func(*Loader)

// WithConfigPaths overrides the list of YAML file locations searched.
func WithConfigPaths(paths ...string) Option {
	return func(l *Loader) { l.configPaths = paths }
}

// NewLoader builds a Loader with the module's conventional search paths.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/transitspawn/config.yaml",
		},
		envPrefix: envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves defaults, an optional file, then environment overrides, in
// that order, and unmarshals into a Config.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := l.findConfigFile(); path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) findConfigFile() string {
	if path := os.Getenv("TRANSITSPAWN_CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, p := range l.configPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

// loadEnv maps STRAPI_URL, STRAPI_TOKEN, GEO_URL, GEOSPATIAL_URL,
// MANIFEST_URL, AUTH_TOKEN, STALE_AFTER_SEC, CORS_ORIGINS and
// GEOCODE_CONCURRENCY (spec §6/§9, the unprefixed legacy names) in
// addition to the TRANSITSPAWN_ prefixed form, since every corpus service
// this was modeled on exposes a small set of bare-named overrides ahead of
// its normal env prefix.
func (l *Loader) loadEnv() error {
	// Known keys map back exactly (TRANSITSPAWN_HTTP_AUTH_TOKEN ->
	// http.auth_token); other names turn every "_" into ".".
	known := make(map[string]string)
	for key := range defaults() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil); err != nil {
		return err
	}

	legacy := map[string]string{
		"STRAPI_URL":          "content_api.url",
		"STRAPI_TOKEN":        "content_api.token",
		"GEO_URL":             "upstream.geo_url",
		"GEOSPATIAL_URL":      "upstream.geospatial_url",
		"MANIFEST_URL":        "http.addr",
		"AUTH_TOKEN":          "http.auth_token",
		"STALE_AFTER_SEC":     "", // handled below (numeric -> duration)
		"CORS_ORIGINS":        "", // handled below (comma list -> slice)
		"GEOCODE_CONCURRENCY": "", // handled below (numeric)
		"ENVIRONMENT":         "environment",
	}
	flat := map[string]any{}
	for envVar, key := range legacy {
		v, ok := os.LookupEnv(envVar)
		if !ok || v == "" {
			continue
		}
		switch envVar {
		case "STALE_AFTER_SEC":
			if n, err := strconv.Atoi(v); err == nil {
				flat["http.stale_after"] = time.Duration(n) * time.Second
			}
		case "CORS_ORIGINS":
			flat["http.cors_origins"] = strings.Split(v, ",")
		case "GEOCODE_CONCURRENCY":
			if n, err := strconv.Atoi(v); err == nil {
				flat["manifest.geocode_concurrency"] = n
			}
		default:
			flat[key] = v
		}
	}
	if len(flat) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(flat, "."), nil)
}

func defaults() map[string]any {
	return map[string]any{
		"environment": "development",

		"content_api.url":     "http://localhost:1337",
		"content_api.token":   "",
		"content_api.timeout": 10 * time.Second,

		"http.addr":         ":8080",
		"http.auth_token":   "",
		"http.cors_origins": []string{"*"},
		"http.read_timeout": 15 * time.Second,
		"http.stale_after":  120 * time.Second,

		"cache.enabled":     false,
		"cache.redis_addr":  "localhost:6379",
		"cache.default_ttl": 5 * time.Minute,

		"manifest.geocode_concurrency": 5,

		"coordinator.reservoir_concurrency": 10,
		"coordinator.continuous_interval":   1 * time.Minute,

		"log.level":  "info",
		"log.format": "text",
	}
}

// Validate reports configuration values that would make the process unsafe
// to start.
func (c *Config) Validate() error {
	var errs []string
	if c.ContentAPI.BaseURL == "" {
		errs = append(errs, "content_api.url is required")
	}
	if c.Manifest.GeocodeConcurrency <= 0 {
		errs = append(errs, "manifest.geocode_concurrency must be positive")
	}
	if c.Coordinator.ReservoirConcurrency <= 0 {
		errs = append(errs, "coordinator.reservoir_concurrency must be positive")
	}
	if c.IsProduction() && c.HTTP.AuthToken == "" {
		errs = append(errs, "http.auth_token (AUTH_TOKEN) is required when environment=production")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load is a convenience wrapper around NewLoader().Load().
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}
