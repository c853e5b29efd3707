package scanner

import (
	"fmt"
	"time"

	"github.com/herlein/godvb/pkg/frontend"
)

// ScanResult holds the outcome of tuning one transponder
type ScanResult struct {
	Transponder frontend.Properties
	Status      frontend.Status
	Locked      bool
	Stats       frontend.Stats

	// Err is the tune or lock failure, nil when locked
	Err error

	Timestamp time.Time
	Elapsed   time.Duration
}

// TransponderInfo represents a tracked transponder with history
type TransponderInfo struct {
	Transponder frontend.Properties
	SNR         float64 // 0.1 dB, smoothed
	RawSNR      int32   // 0.1 dB, last sample
	MaxSNR      int32
	Strength    uint16
	BER         frontend.BER
	FirstLocked time.Time
	LastLocked  time.Time
	LockCount   uint32
}

// FrequencyMHz formats a frequency for display
func FrequencyMHz(hz uint32) string {
	return fmt.Sprintf("%.3f MHz", float64(hz)/1e6)
}

// SNRdB formats a 0.1 dB value
func SNRdB(snr float64) string {
	return fmt.Sprintf("%.1f dB", snr/10)
}
