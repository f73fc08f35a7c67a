package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/loka/internal/client"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/schedule"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

var errRoundsDone = errors.New("rounds done")

// Runner executes a simulation against one service.
type Runner struct {
	cfg    Config
	client *client.Client
	clock  schedule.Clock
	rng    *rand.Rand
	log    logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock that paces update rounds.
func WithClock(c schedule.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		client: client.New(cfg.BaseURL, cfg.Timeout),
		clock:  schedule.RealClock{},
		rng:    newRand(cfg.Seed),
		log:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the complete simulation.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	cfg := r.cfg

	r.log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.String("center", cfg.Center.String()),
		logger.Float64("spread", cfg.SpreadMeters),
		logger.Float64("radius", cfg.QueryRadius),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
	)

	// Step 1: Check service health
	if err := r.client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate users
	users := generateUsers(r.rng, cfg.Users, cfg.Center, cfg.SpreadMeters)
	stats.UsersGenerated = len(users)

	// Step 3: Report initial positions
	if err := r.submit(ctx, users, stats); err != nil {
		return stats, fmt.Errorf("initial submission failed: %w", err)
	}

	// Step 4: Move users around
	if cfg.Rounds > 0 {
		err := schedule.Every(ctx, r.clock, cfg.Interval, func(ctx context.Context) error {
			users = jitter(r.rng, users, cfg.JitterMeters)
			if err := r.submit(ctx, users, stats); err != nil {
				return err
			}
			stats.Rounds++
			r.log.Debug(ctx, "round completed", logger.Int("round", stats.Rounds))
			if stats.Rounds == cfg.Rounds {
				return errRoundsDone
			}
			return nil
		})
		if !errors.Is(err, errRoundsDone) {
			return stats, fmt.Errorf("update rounds failed: %w", err)
		}
	}

	// Step 5: Query from the centre
	order, err := r.client.All(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing users failed: %w", err)
	}
	results, err := r.client.Nearby(ctx, cfg.Center, cfg.QueryRadius)
	if err != nil {
		return stats, fmt.Errorf("nearby query failed: %w", err)
	}
	stats.Matched = countMatched(users, results)

	// Step 6: Save users to file
	if cfg.OutputFile != "" {
		if err := saveUsers(cfg.OutputFile, users); err != nil {
			r.log.Warn(ctx, "failed to save users to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	r.logStats(ctx, stats)

	// Step 7: Verify results
	if err := Verify(cfg.Center, cfg.QueryRadius, users, order, results); err != nil {
		return stats, err
	}
	r.log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// submit reports every user concurrently. Individual failures are counted,
// not returned; only cancellation stops the batch.
func (r *Runner) submit(ctx context.Context, users []model.LocationUpdate, stats *Stats) error {
	var created, updated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, u := range users {
		g.Go(func() error {
			isNew, err := r.client.UpdateLocation(gctx, u)
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				if r.cfg.Verbose {
					r.log.Warn(gctx, "update failed", logger.String("userId", u.UserID), logger.Error(err))
				}
			case isNew:
				created.Add(1)
			default:
				updated.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Created += int(created.Load())
	stats.Updated += int(updated.Load())
	stats.Failed += int(failed.Load())
	return err
}

// saveUsers writes the final user positions to a JSON file.
func saveUsers(filename string, users []model.LocationUpdate) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	return os.WriteFile(filename, append(data, '\n'), filePermission)
}

// logStats prints the final run statistics.
func (r *Runner) logStats(ctx context.Context, stats *Stats) {
	var updatesPerSecond float64
	total := stats.Created + stats.Updated + stats.Failed
	if stats.Duration > 0 {
		updatesPerSecond = float64(total) / stats.Duration.Seconds()
	}

	r.log.Info(ctx, "final statistics",
		logger.Int("usersGenerated", stats.UsersGenerated),
		logger.Int("created", stats.Created),
		logger.Int("updated", stats.Updated),
		logger.Int("failed", stats.Failed),
		logger.Int("rounds", stats.Rounds),
		logger.Int("matched", stats.Matched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("updatesPerSecond", updatesPerSecond),
	)
}
