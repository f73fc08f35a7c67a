// Package simulator drives a running location service with synthetic users
// and checks the proximity answers it gets back.
package simulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/loka/internal/domain/geo"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid simulator config")
	ErrVerification  = errors.New("verification failed")
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string         // Base URL of the service
	Users        int            // Number of users to generate
	Center       geo.Coordinate // Point the users are scattered around
	SpreadMeters float64        // Users are placed up to this far from Center
	QueryRadius  float64        // Radius of the verification query
	Rounds       int            // Extra rounds of jittered updates
	JitterMeters float64        // Maximum move per round
	Interval     time.Duration  // Delay between rounds
	Workers      int            // Number of concurrent requests
	Timeout      time.Duration  // HTTP request timeout
	Seed         uint64         // Seed for positions; zero picks one
	OutputFile   string         // Output file for generated users
	Verbose      bool           // Enable verbose logging
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	case c.Users <= 0:
		return fmt.Errorf("%w: users must be positive, got %d", ErrInvalidConfig, c.Users)
	case c.SpreadMeters <= 0 || c.QueryRadius <= 0:
		return fmt.Errorf("%w: spread and radius must be positive", ErrInvalidConfig)
	case c.Rounds < 0 || c.JitterMeters < 0:
		return fmt.Errorf("%w: rounds and jitter must not be negative", ErrInvalidConfig)
	case c.Rounds > 0 && c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive when rounds are set", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	return c.Center.Validate()
}

// Stats holds run statistics.
type Stats struct {
	UsersGenerated int
	Created        int
	Updated        int
	Failed         int
	Rounds         int
	Matched        int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
