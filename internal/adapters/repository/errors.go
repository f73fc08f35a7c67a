package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("user not found")
	ErrInvalidRecord = errors.New("invalid location record")
	ErrClosed        = errors.New("store closed")
	ErrCorruptData   = errors.New("corrupt data file")
)
