package config

import (
	"time"

	"github.com/herlein/godvb/pkg/r848"
)

// Calibration is what tuner bring-up measured on one board
type Calibration struct {
	Board       string           `yaml:"board"`
	Timestamp   time.Time        `yaml:"timestamp"`
	XtalHz      uint32           `yaml:"xtal_hz"`
	XtalDrive   uint8            `yaml:"xtal_drive"`
	IMR         []r848.Point     `yaml:"imr"`
	FilterCodes map[string]uint8 `yaml:"filter_codes,omitempty"`
}

// DumpFromTuner captures the calibration of an initialized tuner
func DumpFromTuner(board string, xtalHz uint32, t *r848.Tuner, now time.Time) *Calibration {
	table := t.CalibrationTable()
	c := &Calibration{
		Board:     board,
		Timestamp: now,
		XtalHz:    xtalHz,
		XtalDrive: t.XtalDrive(),
		IMR:       table[:],
	}
	for std := r848.Standard(0); std.Valid(); std++ {
		if code, ok := t.FilterCode(std); ok {
			if c.FilterCodes == nil {
				c.FilterCodes = make(map[string]uint8)
			}
			c.FilterCodes[std.String()] = code
		}
	}
	return c
}

// Table returns the IMR points as a calibration table
func (c *Calibration) Table() (r848.CalibrationTable, bool) {
	var table r848.CalibrationTable
	if len(c.IMR) != len(table) {
		return table, false
	}
	copy(table[:], c.IMR)
	return table, true
}
