// Package repository defines the location store interface and its backends.
package repository

import (
	"context"

	"github.com/okian/loka/internal/domain/model"
)

// Store provides read/write access to the last known user locations.
// Implementations keep one record per user ("last write wins") and never
// delete records.
type Store interface {
	// Upsert creates or replaces the record for rec.UserID. An existing tag is
	// preserved; the tag of rec is only used when the user is new.
	// Returns true when the user was created.
	Upsert(ctx context.Context, rec model.LocationRecord) (bool, error)

	// UpdateTag changes the tag of an existing user.
	// Returns ErrNotFound if the user is unknown.
	UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error)

	// Get returns a single user. Returns ErrNotFound if the user is unknown.
	Get(ctx context.Context, userID string) (model.LocationRecord, error)

	// List returns a consistent snapshot of every record in first-seen order.
	List(ctx context.Context) ([]model.LocationRecord, error)

	// Count returns the number of users tracked.
	Count(ctx context.Context) int

	// Close releases resources held by the store.
	Close() error
}

// Flusher is implemented by stores that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Backend names reported in metrics.
const (
	backendMemory   = "memory"
	backendFile     = "file"
	backendPostgres = "postgres"
)
