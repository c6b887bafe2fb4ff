package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OGC       OGCConfig       `mapstructure:"ogc"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Columnar  ColumnarConfig  `mapstructure:"columnar"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type OGCConfig struct {
	RequestTimeout  int    `mapstructure:"request_timeout"`
	RowLimit        int    `mapstructure:"row_limit"`
	MaxRowLimit     int    `mapstructure:"max_row_limit"`
	DefaultEndpoint string `mapstructure:"default_endpoint"`
}

// Timeout returns RequestTimeout as a duration.
func (o OGCConfig) Timeout() time.Duration {
	return time.Duration(o.RequestTimeout) * time.Second
}

type RefreshConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Debounce returns DebounceMS as a duration.
func (r RefreshConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

type ViewportConfig struct {
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	Longitude float64 `mapstructure:"longitude"`
	Latitude  float64 `mapstructure:"latitude"`
	Zoom      float64 `mapstructure:"zoom"`
}

type ColumnarConfig struct {
	DecodeGeometry bool   `mapstructure:"decode_geometry"`
	GeometryColumn string `mapstructure:"geometry_column"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr        string `mapstructure:"addr"`
	EndpointTTL int    `mapstructure:"endpoint_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("ogc.request_timeout", 30)
	v.SetDefault("ogc.row_limit", 10000)
	v.SetDefault("ogc.max_row_limit", 10000)
	v.SetDefault("ogc.default_endpoint", "")
	v.SetDefault("refresh.debounce_ms", 1000)
	v.SetDefault("viewport.width", 1280)
	v.SetDefault("viewport.height", 800)
	v.SetDefault("viewport.longitude", -98.5795)
	v.SetDefault("viewport.latitude", 39.8283)
	v.SetDefault("viewport.zoom", 3)
	v.SetDefault("columnar.decode_geometry", true)
	v.SetDefault("columnar.geometry_column", "geometry")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.endpoint_ttl", 0)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: OGCVIEW_OGC_ROW_LIMIT → ogc.row_limit
	v.SetEnvPrefix("OGCVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.OGC.RequestTimeout <= 0 {
		errs = append(errs, "ogc.request_timeout must be positive")
	}
	if c.OGC.RowLimit <= 0 {
		errs = append(errs, "ogc.row_limit must be positive")
	}
	if c.OGC.MaxRowLimit < c.OGC.RowLimit {
		errs = append(errs, fmt.Sprintf("ogc.max_row_limit (%d) must be >= ogc.row_limit (%d)", c.OGC.MaxRowLimit, c.OGC.RowLimit))
	}
	if c.Refresh.DebounceMS <= 0 {
		errs = append(errs, "refresh.debounce_ms must be positive")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, "viewport.width and viewport.height must be positive")
	}
	if c.Viewport.Longitude < -180 || c.Viewport.Longitude > 180 {
		errs = append(errs, "viewport.longitude must be within [-180, 180]")
	}
	if c.Viewport.Latitude < -90 || c.Viewport.Latitude > 90 {
		errs = append(errs, "viewport.latitude must be within [-90, 90]")
	}
	if c.Viewport.Zoom < 0 {
		errs = append(errs, "viewport.zoom must be >= 0")
	}
	if c.Columnar.DecodeGeometry && c.Columnar.GeometryColumn == "" {
		errs = append(errs, "columnar.geometry_column is required when decode_geometry is on")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.EndpointTTL < 0 {
		errs = append(errs, "valkey.endpoint_ttl must be >= 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPAddr == "" {
		errs = append(errs, "telemetry.otlp_addr is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
