package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/metrics"
)

// FileStore keeps every record in memory and persists the whole set to a
// single data file. Writes land in memory first; Flush writes the file
// atomically when something changed since the last flush.
type FileStore struct {
	path         string
	codec        Codec
	log          logger.Logger
	writeThrough bool
	memOpts      []Option

	mem *MemoryStore

	flushMu        sync.Mutex
	flushedVersion uint64
}

var (
	_ Store   = (*FileStore)(nil)
	_ Flusher = (*FileStore)(nil)
)

// WithWriteThrough flushes the file after every write.
func WithWriteThrough() FileOption {
	return func(s *FileStore) {
		s.writeThrough = true
	}
}

// NewFileStore loads path (if it exists) and returns a store backed by it.
func NewFileStore(ctx context.Context, path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		codec: JSONCodec{},
		log:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mem = NewMemoryStore(ctx, s.memOpts...)

	records, err := s.read()
	if err != nil {
		_ = s.mem.Close()
		return nil, err
	}
	if err := s.mem.replace(records); err != nil {
		_ = s.mem.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptData, path, err)
	}
	s.flushedVersion = s.mem.Version()

	s.log.Info(ctx, "data file loaded",
		logger.String("path", path),
		logger.String("codec", s.codec.Name()),
		logger.Int("records", len(records)),
	)
	return s, nil
}

func (s *FileStore) read() ([]model.LocationRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	records, err := s.codec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// Upsert implements Store.Upsert.
func (s *FileStore) Upsert(ctx context.Context, rec model.LocationRecord) (bool, error) {
	created, err := s.mem.Upsert(ctx, rec)
	if err != nil {
		return false, err
	}
	return created, s.afterWrite(ctx)
}

// UpdateTag implements Store.UpdateTag.
func (s *FileStore) UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error) {
	rec, err := s.mem.UpdateTag(ctx, userID, tag)
	if err != nil {
		return model.LocationRecord{}, err
	}
	return rec, s.afterWrite(ctx)
}

func (s *FileStore) afterWrite(ctx context.Context) error {
	if !s.writeThrough {
		return nil
	}
	return s.Flush(ctx)
}

// Get implements Store.Get.
func (s *FileStore) Get(ctx context.Context, userID string) (model.LocationRecord, error) {
	return s.mem.Get(ctx, userID)
}

// List implements Store.List.
func (s *FileStore) List(ctx context.Context) ([]model.LocationRecord, error) {
	return s.mem.List(ctx)
}

// Count implements Store.Count.
func (s *FileStore) Count(ctx context.Context) int {
	return s.mem.Count(ctx)
}

// Dirty reports whether there are writes not yet flushed.
func (s *FileStore) Dirty() bool {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.mem.Version() != s.flushedVersion
}

// Flush writes the records to disk when they changed since the last flush.
func (s *FileStore) Flush(ctx context.Context) (err error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	records, version := s.mem.snapshot()
	if version == s.flushedVersion {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreFlush(err == nil)
		metrics.RecordStoreOperation(backendFile, "flush", float64(time.Since(start).Microseconds())/1000)
	}()

	if err = s.write(records); err != nil {
		s.log.Error(ctx, "data file flush failed", logger.String("path", s.path), logger.Error(err))
		return err
	}
	s.flushedVersion = version
	s.log.Debug(ctx, "data file flushed", logger.String("path", s.path), logger.Int("records", len(records)))
	return nil
}

// write replaces the data file through a temporary file and a rename.
func (s *FileStore) write(records []model.LocationRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := s.codec.Encode(tmp, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// Close flushes pending writes and stops background work.
func (s *FileStore) Close() error {
	flushErr := s.Flush(context.Background())
	closeErr := s.mem.Close()
	return errors.Join(flushErr, closeErr)
}
