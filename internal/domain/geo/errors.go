package geo

import "errors"

// ErrInvalidArgument is returned for out-of-range or non-finite inputs.
var ErrInvalidArgument = errors.New("invalid argument")
