package chandb

import "errors"

// Channel database errors
var (
	// ErrNotFound indicates no channel has the requested name
	ErrNotFound = errors.New("channel not found")

	// ErrInvalidChannel indicates a channel without a name or valid tuning
	ErrInvalidChannel = errors.New("invalid channel")
)
