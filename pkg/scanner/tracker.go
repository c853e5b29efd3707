package scanner

import (
	"sync"
	"time"
)

// LockTracker manages locked transponders with hysteresis
type LockTracker struct {
	transponders map[uint32]*TransponderInfo // Key: rounded frequency
	mu           sync.RWMutex
	holdCounter  int    // Counts down while unlocked
	holdMax      int    // Maximum hold count
	lostAt       int    // Counter value when "lost" callback fires
	resolution   uint32 // Frequency resolution for grouping (Hz)

	// Current active transponder
	activeFrequency uint32
	active          *TransponderInfo

	// Callbacks
	onLocked func(*TransponderInfo)
	onLost   func(*TransponderInfo)
}

// NewLockTracker creates a tracker with the given parameters
func NewLockTracker(holdMax, lostAt int, resolution uint32) *LockTracker {
	return &LockTracker{
		transponders: make(map[uint32]*TransponderInfo),
		holdMax:      holdMax,
		lostAt:       lostAt,
		resolution:   resolution,
	}
}

// SetCallbacks sets the lock callbacks. They run on their own goroutine with
// a copy of the transponder info.
func (t *LockTracker) SetCallbacks(onLocked, onLost func(*TransponderInfo)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLocked = onLocked
	t.onLost = onLost
}

// Update processes a result; snr is the smoothed SNR to record
func (t *LockTracker) Update(result *ScanResult, snr float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !result.Locked {
		t.miss()
		return
	}

	t.holdCounter = t.holdMax
	key := t.roundFrequency(result.Transponder.FrequencyHz)

	info, exists := t.transponders[key]
	if !exists {
		info = &TransponderInfo{
			Transponder: result.Transponder,
			MaxSNR:      result.Stats.SNR,
			FirstLocked: result.Timestamp,
		}
		t.transponders[key] = info
	}
	info.Transponder = result.Transponder
	info.SNR = snr
	info.RawSNR = result.Stats.SNR
	info.Strength = result.Stats.Strength
	info.BER = result.Stats.BER
	info.LastLocked = result.Timestamp
	info.LockCount++
	if result.Stats.SNR > info.MaxSNR {
		info.MaxSNR = result.Stats.SNR
	}

	if t.active == nil || key != t.activeFrequency {
		t.activeFrequency = key
		t.active = info
		if t.onLocked != nil {
			infoCopy := *info
			go t.onLocked(&infoCopy)
		}
	}
}

// miss counts down the hold counter on an unlocked sample
func (t *LockTracker) miss() {
	if t.holdCounter == 0 {
		return
	}
	t.holdCounter--

	if t.holdCounter == t.lostAt && t.active != nil && t.onLost != nil {
		infoCopy := *t.active
		go t.onLost(&infoCopy)
	}
	if t.holdCounter == 0 {
		t.active = nil
		t.activeFrequency = 0
	}
}

// roundFrequency rounds a frequency to the configured resolution
func (t *LockTracker) roundFrequency(freq uint32) uint32 {
	if t.resolution == 0 {
		return freq
	}
	return (freq / t.resolution) * t.resolution
}

// Active returns the transponder currently held, if any
func (t *LockTracker) Active() *TransponderInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.active == nil {
		return nil
	}
	info := *t.active
	return &info
}

// All returns every transponder that has locked
func (t *LockTracker) All() []*TransponderInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*TransponderInfo, 0, len(t.transponders))
	for _, info := range t.transponders {
		infoCopy := *info
		out = append(out, &infoCopy)
	}
	return out
}

// Count returns the number of tracked transponders
func (t *LockTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.transponders)
}

// Clear removes all tracked transponders
func (t *LockTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transponders = make(map[uint32]*TransponderInfo)
	t.active = nil
	t.activeFrequency = 0
	t.holdCounter = 0
}

// PruneOld removes transponders not locked since the given time
func (t *LockTracker) PruneOld(since time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for key, info := range t.transponders {
		if info.LastLocked.Before(since) {
			delete(t.transponders, key)
			count++
		}
	}
	return count
}

// IsActive returns true while a transponder is held
func (t *LockTracker) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active != nil && t.holdCounter > 0
}

// HoldCounter returns the current hold counter value
func (t *LockTracker) HoldCounter() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holdCounter
}
