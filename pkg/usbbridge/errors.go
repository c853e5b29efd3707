package usbbridge

import "errors"

var (
	// ErrNoDevice is returned when no bridge matches the selector
	ErrNoDevice = errors.New("no USB bridge found")

	// ErrTooLong is returned for a transaction that does not fit one control
	// transfer
	ErrTooLong = errors.New("transfer exceeds bridge buffer")

	// ErrAmbiguous is returned when a selector matches more than one bridge
	ErrAmbiguous = errors.New("selector matches several bridges")
)
