// Package frontend defines the contract between DVB tuner/demodulator drivers
// and the frontend core that drives them.
package frontend

import (
	"fmt"
	"strings"
	"time"
)

// DeliverySystem identifies a broadcast standard
type DeliverySystem uint8

const (
	SysUndefined DeliverySystem = iota
	SysDVBS
	SysDVBS2
	SysDVBT
	SysDVBT2
	SysDVBC
	SysDVBCB // ITU J.83 Annex B
	SysISDBT
	SysATSC
	SysDTMB
)

var systemNames = map[DeliverySystem]string{
	SysUndefined: "UNDEFINED",
	SysDVBS:      "DVB-S",
	SysDVBS2:     "DVB-S2",
	SysDVBT:      "DVB-T",
	SysDVBT2:     "DVB-T2",
	SysDVBC:      "DVB-C",
	SysDVBCB:     "DVB-C/B",
	SysISDBT:     "ISDB-T",
	SysATSC:      "ATSC",
	SysDTMB:      "DTMB",
}

func (s DeliverySystem) String() string {
	if name, ok := systemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SYS(%d)", uint8(s))
}

// ParseDeliverySystem accepts names like "dvb-s2", "DVBT2" or "atsc"
func ParseDeliverySystem(name string) (DeliverySystem, error) {
	norm := strings.ToUpper(strings.ReplaceAll(name, "-", ""))
	for sys, n := range systemNames {
		if sys != SysUndefined && strings.ReplaceAll(n, "-", "") == norm {
			return sys, nil
		}
	}
	return SysUndefined, fmt.Errorf("%w: unknown delivery system %q", ErrInvalidParameter, name)
}

// MarshalText writes the system name
func (s DeliverySystem) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseDeliverySystem does
func (s *DeliverySystem) UnmarshalText(b []byte) error {
	sys, err := ParseDeliverySystem(string(b))
	if err != nil {
		return err
	}
	*s = sys
	return nil
}

// IsSatellite reports whether s is tuned by symbol rate on the L-band
func (s DeliverySystem) IsSatellite() bool {
	return s == SysDVBS || s == SysDVBS2
}

// Inversion is the spectral inversion setting
type Inversion uint8

const (
	InversionOff Inversion = iota
	InversionOn
	InversionAuto
)

// Properties are the tune request parameters read from the frontend core
type Properties struct {
	DeliverySystem DeliverySystem `yaml:"delivery_system"`
	FrequencyHz    uint32         `yaml:"frequency_hz"`
	BandwidthHz    uint32         `yaml:"bandwidth_hz,omitempty"`
	SymbolRate     uint32         `yaml:"symbol_rate,omitempty"`
	Modulation     uint8          `yaml:"modulation,omitempty"`
	Inversion      Inversion      `yaml:"inversion,omitempty"`

	// StreamID selects the DVB-S2 ISI or T2 PLP. Zero is stream 0 and turns
	// filtering on; set NoStreamID to receive every stream.
	StreamID int32 `yaml:"stream_id"`

	Hierarchy uint8 `yaml:"hierarchy,omitempty"`
	FECInner  uint8 `yaml:"fec_inner,omitempty"`
}

// NoStreamID disables multistream/PLP filtering
const NoStreamID int32 = -1

// Validate checks the fields every driver relies on
func (p *Properties) Validate() error {
	if p.DeliverySystem == SysUndefined {
		return fmt.Errorf("%w: delivery system not set", ErrInvalidParameter)
	}
	if _, ok := systemNames[p.DeliverySystem]; !ok {
		return fmt.Errorf("%w: delivery system %s", ErrInvalidParameter, p.DeliverySystem)
	}
	if p.FrequencyHz == 0 {
		return fmt.Errorf("%w: frequency not set", ErrInvalidParameter)
	}
	if p.DeliverySystem.IsSatellite() && p.SymbolRate == 0 {
		return fmt.Errorf("%w: symbol rate not set for %s", ErrInvalidParameter, p.DeliverySystem)
	}
	return nil
}

// TuneSettings tells the frontend core how often to poll status
type TuneSettings struct {
	MinDelay time.Duration
}

// Timeouts are the acquisition budgets a demodulator exposes to its caller
type Timeouts struct {
	Demod time.Duration
	FEC   time.Duration
}

// BER is a bit error ratio as numerator over denominator
type BER struct {
	Numerator   uint32
	Denominator uint32
}

// Ratio returns the BER as a float (0 when the denominator is 0)
func (b BER) Ratio() float64 {
	if b.Denominator == 0 {
		return 0
	}
	return float64(b.Numerator) / float64(b.Denominator)
}

func (b BER) String() string {
	return fmt.Sprintf("%d/%d (%.2e)", b.Numerator, b.Denominator, b.Ratio())
}
