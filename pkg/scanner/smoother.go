package scanner

import "math"

// Smoother implements adaptive smoothing of a noisy reading so that a display
// stays steady while still following real changes.
type Smoother struct {
	value     float64 // Current smoothed value
	primed    bool
	threshold float64 // above this difference, use fast adaptation
	kFast     float64 // Adaptation coefficient for large changes (0-1)
	kSlow     float64 // Adaptation coefficient for small changes (0-1)
}

// NewSmoother creates a smoother with default parameters
func NewSmoother() *Smoother {
	return NewSmootherWithParams(DefaultSmoothThreshold, DefaultKFast, DefaultKSlow)
}

// NewSmootherWithParams creates a smoother with custom parameters
func NewSmootherWithParams(threshold, kFast, kSlow float64) *Smoother {
	return &Smoother{
		threshold: threshold,
		kFast:     kFast,
		kSlow:     kSlow,
	}
}

// Update applies adaptive smoothing to a new value and returns the smoothed
// value
func (s *Smoother) Update(newValue float64) float64 {
	// First value is returned as-is
	if !s.primed {
		s.value = newValue
		s.primed = true
		return newValue
	}

	diff := math.Abs(newValue - s.value)

	var k float64
	if diff > s.threshold {
		k = s.kFast
	} else {
		k = s.kSlow
	}

	// exponential moving average
	s.value += (newValue - s.value) * k
	return s.value
}

// Value returns the current smoothed value
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset clears the smoother state
func (s *Smoother) Reset() {
	s.value = 0
	s.primed = false
}
