package r848

import (
	"errors"
	"fmt"

	"github.com/herlein/godvb/pkg/frontend"
)

// R848 errors
var (
	// ErrInvalidFrequency indicates an LO outside the synthesizer range or an
	// RF frequency outside the standard's band plan
	ErrInvalidFrequency = fmt.Errorf("%w: frequency out of range", frontend.ErrInvalidParameter)

	// ErrXtalCheck indicates the crystal oscillator never locked at any drive level
	ErrXtalCheck = errors.New("crystal check failed")

	// ErrUnknownChip indicates an unexpected id in R0
	ErrUnknownChip = errors.New("unknown chip id")
)
