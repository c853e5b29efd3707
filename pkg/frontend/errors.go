package frontend

import (
	"errors"

	"github.com/herlein/godvb/pkg/transport"
)

// Frontend errors
var (
	// ErrInvalidParameter indicates an out-of-range frequency, symbol rate or delivery system
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotReady indicates the device is not initialized or not active
	ErrNotReady = errors.New("device not ready")

	// ErrNoLock indicates the caller's retry budget ran out without lock
	ErrNoLock = errors.New("no lock")
)

// Transport errors, re-exported so callers need a single import
var (
	ErrIO       = transport.ErrIO
	ErrTimeout  = transport.ErrTimeout
	ErrErrorBit = transport.ErrErrorBit
)
