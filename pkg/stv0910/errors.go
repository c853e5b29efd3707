package stv0910

import "errors"

// ErrUnknownChip indicates the MID register did not identify an STV0910
var ErrUnknownChip = errors.New("not an STV0910")
