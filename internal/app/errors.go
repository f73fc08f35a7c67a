package service

import (
	"errors"

	"github.com/okian/loka/internal/adapters/repository"
	"github.com/okian/loka/internal/domain/geo"
)

// Errors returned by the service. They alias the domain and store sentinels
// so callers can match them with errors.Is without importing those packages.
var (
	ErrInvalidArgument = geo.ErrInvalidArgument
	ErrNotFound        = repository.ErrNotFound
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("service stopped")
