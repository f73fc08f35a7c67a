package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/simulator"
	"github.com/okian/loka/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers       = 500
	defaultLat         = 52.52
	defaultLon         = 13.405
	defaultSpread      = 2000.0
	defaultRadius      = 1000.0
	defaultJitter      = 25.0
	defaultInterval    = time.Second
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:5000", "Base URL of the service")
		users    = flag.Int("users", defaultUsers, "Number of users to generate")
		lat      = flag.Float64("lat", defaultLat, "Latitude of the centre")
		lon      = flag.Float64("lon", defaultLon, "Longitude of the centre")
		spread   = flag.Float64("spread", defaultSpread, "Maximum distance of users from the centre in meters")
		radius   = flag.Float64("radius", defaultRadius, "Radius of the verification query in meters")
		rounds   = flag.Int("rounds", 0, "Extra rounds of jittered updates")
		jitter   = flag.Float64("jitter", defaultJitter, "Maximum move per round in meters")
		interval = flag.Duration("interval", defaultInterval, "Delay between rounds")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed     = flag.Uint64("seed", 0, "Seed for positions, 0 picks one")
		output   = flag.String("output", "", "Output file for generated users")
		logFile  = flag.String("log", "", "Log file for run output")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := simulator.NewRunner(simulator.Config{
		BaseURL:      *baseURL,
		Users:        *users,
		Center:       geo.Coordinate{Latitude: *lat, Longitude: *lon},
		SpreadMeters: *spread,
		QueryRadius:  *radius,
		Rounds:       *rounds,
		JitterMeters: *jitter,
		Interval:     *interval,
		Workers:      *workers,
		Timeout:      *timeout,
		Seed:         *seed,
		OutputFile:   *output,
		Verbose:      *verbose,
	}, simulator.WithLogger(logger.Named("simulator")))
	if err != nil {
		os.Stderr.WriteString("Invalid configuration: " + err.Error() + "\n")
		os.Exit(2)
	}

	if _, err := runner.Run(ctx); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
