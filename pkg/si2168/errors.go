package si2168

import "errors"

// ErrUnknownRevision indicates PART_INFO named silicon with no init list
var ErrUnknownRevision = errors.New("unsupported silicon revision")
