package simulator

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/loka/pkg/logger"
)

// SetupLogging initialises the global logger, teeing output to logFile when
// one is given.
func SetupLogging(logFile string, verbose bool) error {
	var opts []logger.Option
	if logFile != "" {
		opts = append(opts, logger.WithFile(logFile))
	}
	if err := logger.Init(opts...); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Loka Location Simulator
=======================

Reports synthetic users to a running location service, moves them around
and checks the nearby answer from the centre point.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:5000")
  -users int
        Number of users to generate (default 500)
  -lat, -lon float
        Centre of the simulated crowd (default 52.52, 13.405)
  -spread float
        Users are placed up to this many meters from the centre (default 2000)
  -radius float
        Radius of the verification query in meters (default 1000)
  -rounds int
        Extra rounds of jittered updates (default 0)
  -jitter float
        Maximum move per round in meters (default 25)
  -interval duration
        Delay between rounds (default 1s)
  -workers int
        Number of concurrent requests (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Seed for positions, 0 picks one (default 0)
  -output string
        Output file for generated users
  -log string
        Log file for run output
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # 1000 users around the default centre
  go run ./cmd/simulate -users 1000

  # Three rounds of movement against a local server
  go run ./cmd/simulate -url http://localhost:8080 -rounds 3 -interval 2s
`)
}
