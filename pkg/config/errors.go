package config

import "errors"

// ErrInvalidBoard is returned for a board description that cannot be built
var ErrInvalidBoard = errors.New("invalid board config")
