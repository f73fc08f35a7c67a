package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brunoga/deep"

	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/metrics"
	"github.com/okian/loka/pkg/schedule"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore keeps records in memory, in first-seen order.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.LocationRecord
	index   map[string]int
	// version increases on every write; FileStore uses it to detect changes.
	version uint64
	closed  bool

	metricsUpdateInterval time.Duration
	clock                 schedule.Clock

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		index:                 make(map[string]int),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		clock:                 schedule.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.startMetricsUpdater(ctx)
	return s
}

// startMetricsUpdater publishes the record count until the store is closed.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = schedule.Every(ctx, s.clock, s.metricsUpdateInterval, func(ctx context.Context) error {
			metrics.UpdateStoreRecords(s.Count(ctx))
			return nil
		})
	}()
}

// Close stops the background updater.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert.
func (s *MemoryStore) Upsert(ctx context.Context, rec model.LocationRecord) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation(backendMemory, "upsert", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := validateRecord(rec); err != nil {
		return false, err
	}
	rec.LastUpdated = rec.LastUpdated.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	s.version++
	if i, ok := s.index[rec.UserID]; ok {
		rec.Tag = s.records[i].Tag
		s.records[i] = rec
		return false, nil
	}
	s.index[rec.UserID] = len(s.records)
	s.records = append(s.records, rec)
	return true, nil
}

// UpdateTag implements Store.UpdateTag.
func (s *MemoryStore) UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.LocationRecord{}, ErrClosed
	}

	i, ok := s.index[userID]
	if !ok {
		return model.LocationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	s.version++
	s.records[i].Tag = tag
	return s.records[i], nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, userID string) (model.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[userID]
	if !ok {
		return model.LocationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return s.records[i], nil
}

// List implements Store.List. The returned slice is a copy owned by the caller.
func (s *MemoryStore) List(ctx context.Context) ([]model.LocationRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation(backendMemory, "list", float64(time.Since(start).Microseconds())/1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return []model.LocationRecord{}, nil
	}
	return deep.MustCopy(s.records), nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version returns a counter that changes on every write.
func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// snapshot returns the records and the version they correspond to.
func (s *MemoryStore) snapshot() ([]model.LocationRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deep.MustCopy(s.records), s.version
}

// replace swaps the whole content. Later duplicates of a user win.
func (s *MemoryStore) replace(records []model.LocationRecord) error {
	index := make(map[string]int, len(records))
	out := make([]model.LocationRecord, 0, len(records))
	for _, r := range records {
		if err := validateRecord(r); err != nil {
			return err
		}
		r.LastUpdated = r.LastUpdated.UTC()
		if i, ok := index[r.UserID]; ok {
			out[i] = r
			continue
		}
		index[r.UserID] = len(out)
		out = append(out, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = out
	s.index = index
	return nil
}

func validateRecord(rec model.LocationRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return fmt.Errorf("%w: userId must not be empty", ErrInvalidRecord)
	}
	if err := rec.Coordinate().Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, rec.UserID, err)
	}
	return nil
}
