package scanner

import (
	"fmt"
	"time"

	"github.com/herlein/godvb/pkg/frontend"
)

// ScanConfig defines runtime scanning parameters
type ScanConfig struct {
	Transponders []frontend.Properties

	// Monitor timing
	MonitorInterval time.Duration
	LogInterval     time.Duration

	// Lock tracking
	HoldMax             int    // Maximum hold counter value
	LostThreshold       int    // Counter value when lock is considered lost
	FrequencyResolution uint32 // Hz - grouping resolution for transponders

	// SNR smoothing
	SmoothingEnabled bool
	SmoothThreshold  float64
	SmoothKFast      float64
	SmoothKSlow      float64

	// Callbacks (optional)
	OnLocked func(info *TransponderInfo)
	OnLost   func(info *TransponderInfo)
}

// DefaultConfig returns a ScanConfig with default values
func DefaultConfig() *ScanConfig {
	return &ScanConfig{
		MonitorInterval:     DefaultMonitorInterval,
		LogInterval:         DefaultLogInterval,
		HoldMax:             DefaultHoldMax,
		LostThreshold:       DefaultLostThreshold,
		FrequencyResolution: DefaultFrequencyResolution,
		SmoothingEnabled:    true,
		SmoothThreshold:     DefaultSmoothThreshold,
		SmoothKFast:         DefaultKFast,
		SmoothKSlow:         DefaultKSlow,
	}
}

// Validate checks the configuration for errors
func (c *ScanConfig) Validate() error {
	for i := range c.Transponders {
		if err := c.Transponders[i].Validate(); err != nil {
			return fmt.Errorf("transponder %d: %w", i, err)
		}
	}
	if c.MonitorInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.HoldMax < 1 || c.LostThreshold < 0 || c.LostThreshold >= c.HoldMax {
		return fmt.Errorf("%w: hold %d lost %d", ErrInvalidHold, c.HoldMax, c.LostThreshold)
	}
	return nil
}
