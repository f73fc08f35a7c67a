package repository

import (
	"time"

	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/schedule"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithClock sets the clock driving background metrics updates.
func WithClock(c schedule.Clock) Option {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// FileOption applies a configuration option to the FileStore.
type FileOption func(*FileStore)

// WithCodec selects how the data file is encoded.
func WithCodec(c Codec) FileOption {
	return func(s *FileStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithFileLogger sets the logger used by the FileStore.
func WithFileLogger(l logger.Logger) FileOption {
	return func(s *FileStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMemoryOptions forwards options to the in-memory index of a FileStore.
func WithMemoryOptions(opts ...Option) FileOption {
	return func(s *FileStore) {
		s.memOpts = append(s.memOpts, opts...)
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTable overrides the table used by the PostgresStore.
func WithTable(name string) PostgresOption {
	return func(s *PostgresStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithPool sets the connection pool limits of the PostgresStore.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if maxOpen > 0 {
			s.maxOpen = maxOpen
		}
		if maxIdle > 0 {
			s.maxIdle = maxIdle
		}
		if maxLifetime > 0 {
			s.maxLifetime = maxLifetime
		}
	}
}
