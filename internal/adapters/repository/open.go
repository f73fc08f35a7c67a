package repository

import (
	"context"
	"fmt"

	"github.com/okian/loka/pkg/logger"
)

// Settings selects and configures a backend for Open.
type Settings struct {
	Backend      string // memory, file or postgres
	DataFile     string
	Codec        string
	DatabaseURL  string
	CacheSize    int // zero disables the LRU cache
	WriteThrough bool
}

// Open builds the store described by st, wrapped in a CachedStore when a
// cache size is set.
func Open(ctx context.Context, st Settings, log logger.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch st.Backend {
	case backendMemory:
		store = NewMemoryStore(ctx)
	case backendFile:
		codec, cerr := CodecByName(st.Codec)
		if cerr != nil {
			return nil, cerr
		}
		opts := []FileOption{WithCodec(codec), WithFileLogger(log)}
		if st.WriteThrough {
			opts = append(opts, WithWriteThrough())
		}
		store, err = NewFileStore(ctx, st.DataFile, opts...)
	case backendPostgres:
		store, err = OpenPostgres(ctx, st.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", st.Backend)
	}
	if err != nil {
		return nil, err
	}

	if st.CacheSize <= 0 {
		return store, nil
	}
	cached, err := NewCachedStore(store, st.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}
