package config

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				ContentAPI:  ContentAPIConfig{BaseURL: "http://localhost:1337"},
				Manifest:    ManifestConfig{GeocodeConcurrency: 5},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "missing content api url",
			cfg: Config{
				Manifest:    ManifestConfig{GeocodeConcurrency: 5},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "zero geocode concurrency",
			cfg: Config{
				ContentAPI:  ContentAPIConfig{BaseURL: "http://x"},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: Config{
				ContentAPI:  ContentAPIConfig{BaseURL: "http://x"},
				Manifest:    ManifestConfig{GeocodeConcurrency: 5},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "verbose"},
			},
			wantErr: true,
		},
		{
			name: "production without auth token is fatal",
			cfg: Config{
				Environment: "production",
				ContentAPI:  ContentAPIConfig{BaseURL: "http://x"},
				Manifest:    ManifestConfig{GeocodeConcurrency: 5},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "production with auth token is valid",
			cfg: Config{
				Environment: "production",
				ContentAPI:  ContentAPIConfig{BaseURL: "http://x"},
				HTTP:        HTTPConfig{AuthToken: "secret"},
				Manifest:    ManifestConfig{GeocodeConcurrency: 5},
				Coordinator: CoordinatorConfig{ReservoirConcurrency: 10},
				Log:         LogConfig{Level: "info"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_DefaultsApplyWithoutFileOrEnv(t *testing.T) {
	l := NewLoader(WithConfigPaths("/nonexistent/config.yaml"))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.StaleAfter != 120*time.Second {
		t.Fatalf("expected default stale_after 120s, got %v", cfg.HTTP.StaleAfter)
	}
	if cfg.Manifest.GeocodeConcurrency != 5 {
		t.Fatalf("expected default geocode concurrency 5, got %d", cfg.Manifest.GeocodeConcurrency)
	}
}

func TestLoad_LegacyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("STRAPI_URL", "http://content.example.com")
	t.Setenv("GEOCODE_CONCURRENCY", "9")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	l := NewLoader(WithConfigPaths("/nonexistent/config.yaml"))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContentAPI.BaseURL != "http://content.example.com" {
		t.Fatalf("STRAPI_URL not applied: %+v", cfg.ContentAPI)
	}
	if cfg.Manifest.GeocodeConcurrency != 9 {
		t.Fatalf("GEOCODE_CONCURRENCY not applied: %d", cfg.Manifest.GeocodeConcurrency)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Fatalf("CORS_ORIGINS not split: %+v", cfg.HTTP.CORSOrigins)
	}
}
