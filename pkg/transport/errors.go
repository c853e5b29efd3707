package transport

import (
	"errors"
	"fmt"
)

// Transport errors
var (
	// ErrIO indicates a bus-level failure (NACK, short transfer, USB error)
	ErrIO = errors.New("i/o error")

	// ErrTimeout indicates a polling deadline passed without the ready bit
	ErrTimeout = errors.New("timeout")

	// ErrErrorBit indicates the chip reported an error in its status byte
	ErrErrorBit = errors.New("chip reported error")
)

// wrapIO marks err as a bus failure unless it already carries a transport error.
func wrapIO(err error, what string) error {
	if errors.Is(err, ErrIO) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrErrorBit) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, what, err)
}
