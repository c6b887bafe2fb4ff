package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("ogcview-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OGC.RowLimit != 10000 {
		t.Errorf("expected row limit 10000, got %d", cfg.OGC.RowLimit)
	}
	if cfg.Refresh.Debounce() != time.Second {
		t.Errorf("expected 1s debounce, got %s", cfg.Refresh.Debounce())
	}
	if cfg.Viewport.Longitude != -98.5795 || cfg.Viewport.Zoom != 3 {
		t.Errorf("unexpected initial view %+v", cfg.Viewport)
	}
	if !cfg.Columnar.DecodeGeometry || cfg.Columnar.GeometryColumn != "geometry" {
		t.Errorf("unexpected columnar defaults %+v", cfg.Columnar)
	}
	if cfg.Telemetry.ServiceName != "ogcview-test" {
		t.Errorf("expected service name default, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OGCVIEW_OGC_ROW_LIMIT", "500")
	t.Setenv("OGCVIEW_REFRESH_DEBOUNCE_MS", "250")

	cfg, err := Load("ogcview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OGC.RowLimit != 500 {
		t.Errorf("expected env override 500, got %d", cfg.OGC.RowLimit)
	}
	if cfg.Refresh.Debounce() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.Refresh.Debounce())
	}
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		OGC:      OGCConfig{RequestTimeout: 30, RowLimit: 10000, MaxRowLimit: 10000},
		Refresh:  RefreshConfig{DebounceMS: 1000},
		Viewport: ViewportConfig{Width: 1280, Height: 800, Longitude: -98.5795, Latitude: 39.8283, Zoom: 3},
		Columnar: ColumnarConfig{DecodeGeometry: true, GeometryColumn: "geometry"},
		NATS:     NATSConfig{URL: "nats://localhost:4222", Enabled: true},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"row limit above max", func(c *Config) { c.OGC.RowLimit = 20000 }, "ogc.max_row_limit"},
		{"zero debounce", func(c *Config) { c.Refresh.DebounceMS = 0 }, "refresh.debounce_ms"},
		{"latitude", func(c *Config) { c.Viewport.Latitude = 95 }, "viewport.latitude"},
		{"nats disabled needs no url", func(c *Config) { c.NATS = NATSConfig{} }, ""},
		{"geometry column", func(c *Config) { c.Columnar.GeometryColumn = "" }, "columnar.geometry_column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
