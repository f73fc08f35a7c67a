// Package schedule runs periodic tasks that stop with their context.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/metrics"
)

// Sentinel errors.
var (
	ErrInvalidTask    = errors.New("invalid task")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Task is a unit of periodic work. Immediate runs the task once before the
// first tick.
type Task struct {
	Name      string
	Interval  time.Duration
	Immediate bool
	Run       func(ctx context.Context) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for ticking.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used to report task failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler owns a set of tasks, each running on its own ticker.
type Scheduler struct {
	clock Clock
	log   logger.Logger

	mu      sync.Mutex
	tasks   []Task
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: RealClock{}, log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Tasks must be added before Start.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Interval <= 0 || t.Run == nil {
		return fmt.Errorf("%w: %q needs a name, a positive interval and a function", ErrInvalidTask, t.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start launches every task. Tasks stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	return nil
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until every task has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, t Task) {
	if t.Immediate {
		s.runOnce(ctx, t)
	}
	_ = Every(ctx, s.clock, t.Interval, func(ctx context.Context) error {
		s.runOnce(ctx, t)
		return nil
	})
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	err := t.Run(ctx)
	metrics.RecordTaskRun(t.Name, err == nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn(ctx, "scheduled task failed", logger.String("task", t.Name), logger.Error(err))
	}
}

// Every calls fn on each tick of interval until ctx is done or fn returns
// an error. It returns ctx.Err() on cancellation.
func Every(ctx context.Context, clock Clock, interval time.Duration, fn func(ctx context.Context) error) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}
