// Package scanner tunes lists of transponders and monitors a locked one.
package scanner

import "time"

// Monitor defaults
const (
	// DefaultMonitorInterval is the delay between stats samples
	DefaultMonitorInterval = 500 * time.Millisecond

	// DefaultLogInterval throttles the monitor's periodic stats log
	DefaultLogInterval = 10 * time.Second
)

// Lock tracking defaults
const (
	// DefaultHoldMax is the maximum hold counter value
	DefaultHoldMax = 6

	// DefaultLostThreshold is when a transponder is considered lost
	DefaultLostThreshold = 3

	// DefaultFrequencyResolution groups transponders for tracking (Hz)
	DefaultFrequencyResolution uint32 = 1_000_000
)

// SNR smoothing defaults
const (
	// DefaultSmoothThreshold is the step for fast adaptation (0.1 dB)
	DefaultSmoothThreshold float64 = 30

	// DefaultKFast is the adaptation coefficient for large changes
	DefaultKFast float64 = 0.9

	// DefaultKSlow is the adaptation coefficient for small changes
	DefaultKSlow float64 = 0.1
)
