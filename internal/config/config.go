// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Load layers a YAML file and LOKA_ environment variables on top.
// - External errors must be wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Supported store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Supported data file codecs.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// LogFile, when set, also writes logs to a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// StoreBackend selects where location records live: memory, file or postgres.
	StoreBackend string `koanf:"store_backend"`

	// DataFile is the flat file used by the file backend.
	DataFile string `koanf:"data_file"`

	// DataCodec encodes the flat file: json (pretty printed) or msgpack (zstd compressed).
	DataCodec string `koanf:"data_codec"`

	// DataWriteThrough rewrites the data file on every write instead of on
	// the flush interval.
	DataWriteThrough bool `koanf:"data_write_through"`

	// DatabaseURL is the postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// ProfileCacheSize bounds the LRU cache in front of per-user lookups. Zero disables it.
	ProfileCacheSize int `koanf:"profile_cache_size"`

	// FlushIntervalMS controls how often dirty records are flushed to the data file.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// MetricsIntervalMS controls how often gauges are refreshed.
	MetricsIntervalMS int `koanf:"metrics_interval_ms"`

	// Metrics naming and recording.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsLabels are constant labels as key=value pairs, comma separated in env.
	MetricsLabels []string `koanf:"metrics_labels"`

	// MetricsLatencyBucketsMS overrides the latency histogram buckets.
	MetricsLatencyBucketsMS []float64 `koanf:"metrics_latency_buckets_ms"`

	// DefaultRadiusM is used by nearby queries that omit a radius.
	DefaultRadiusM float64 `koanf:"default_radius_m"`

	// MaxRadiusM caps the radius accepted by nearby queries.
	MaxRadiusM float64 `koanf:"max_radius_m"`

	// Radar placement parameters.
	RadarMaxRangeM     float64 `koanf:"radar_max_range_m"`
	RadarMinMarkerPx   float64 `koanf:"radar_min_marker_px"`
	RadarMarkerSizePx  float64 `koanf:"radar_marker_size_px"`
	RadarDisplayRatio  float64 `koanf:"radar_display_ratio"`
	RadarViewportWidth float64 `koanf:"radar_viewport_width"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":5000",
		StoreBackend:       BackendFile,
		DataFile:           "data/locations.json",
		DataCodec:          CodecJSON,
		ProfileCacheSize:   1024,
		FlushIntervalMS:    1000,
		MetricsIntervalMS:  5000,
		MetricsEnabled:     true,
		MetricsNamespace:   "loka",
		MetricsSubsystem:   "location",
		DefaultRadiusM:     1000,
		MaxRadiusM:         50_000,
		RadarMaxRangeM:     50,
		RadarMinMarkerPx:   30,
		RadarMarkerSizePx:  40,
		RadarDisplayRatio:  0.8,
		RadarViewportWidth: 400,
	}
}

// FlushInterval returns FlushIntervalMS as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// MetricsInterval returns MetricsIntervalMS as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalMS) * time.Millisecond
}

// MetricsLabelMap parses MetricsLabels into a label set.
func (c *Config) MetricsLabelMap() (map[string]string, error) {
	labels := make(map[string]string, len(c.MetricsLabels))
	for _, pair := range c.MetricsLabels {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: metrics_labels entry %q is not key=value", ErrInvalidConfig, pair)
		}
		labels[key] = value
	}
	return labels, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("%w: data_file is required for the file backend", ErrInvalidConfig)
		}
		if c.DataCodec != CodecJSON && c.DataCodec != CodecMsgpack {
			return fmt.Errorf("%w: unknown data_codec %q", ErrInvalidConfig, c.DataCodec)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	positive := map[string]float64{
		"default_radius_m":     c.DefaultRadiusM,
		"max_radius_m":         c.MaxRadiusM,
		"radar_max_range_m":    c.RadarMaxRangeM,
		"radar_marker_size_px": c.RadarMarkerSizePx,
		"radar_display_ratio":  c.RadarDisplayRatio,
		"radar_viewport_width": c.RadarViewportWidth,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
		}
	}
	if c.RadarMinMarkerPx < 0 {
		return fmt.Errorf("%w: radar_min_marker_px must not be negative", ErrInvalidConfig)
	}
	if c.DefaultRadiusM > c.MaxRadiusM {
		return fmt.Errorf("%w: default_radius_m exceeds max_radius_m", ErrInvalidConfig)
	}
	if c.FlushIntervalMS <= 0 || c.MetricsIntervalMS <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if c.MetricsNamespace == "" {
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	}
	if _, err := c.MetricsLabelMap(); err != nil {
		return err
	}
	for i := 1; i < len(c.MetricsLatencyBucketsMS); i++ {
		if c.MetricsLatencyBucketsMS[i] <= c.MetricsLatencyBucketsMS[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets_ms must increase strictly", ErrInvalidConfig)
		}
	}
	return nil
}
