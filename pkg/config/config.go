package config

import (
	"fmt"
	"time"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/r848"
	"github.com/herlein/godvb/pkg/si2168"
	"github.com/herlein/godvb/pkg/stv0910"
)

// Transport kinds
const (
	TransportHost = "host" // Linux /dev/i2c-N through periph.io
	TransportUSB  = "usb"  // TBS USB bridge
	TransportSim  = "sim"  // in-memory chip simulators
)

// Demodulator types
const (
	DemodSTV0910 = "stv0910"
	DemodSi2168  = "si2168"
)

// TunerR848 is the only supported tuner
const TunerR848 = "r848"

// BoardConfig describes how one frontend is wired
type BoardConfig struct {
	Name      string          `yaml:"name"`
	Transport TransportConfig `yaml:"transport"`
	Reset     *ResetConfig    `yaml:"reset,omitempty"`
	Demod     DemodConfig     `yaml:"demod"`
	Tuner     TunerConfig     `yaml:"tuner"`
	Frontend  FrontendConfig  `yaml:"frontend"`

	// Channels is the channel database path
	Channels string `yaml:"channels,omitempty"`
}

// TransportConfig selects the bus the chips sit on
type TransportConfig struct {
	Kind string `yaml:"kind"`

	// Bus names the host I2C bus ("1", "/dev/i2c-1")
	Bus string `yaml:"bus,omitempty"`

	// Device is a USB bridge selector ("#0", "1:10", serial)
	Device string `yaml:"device,omitempty"`
}

// ResetConfig is a GPIO line wired to the demodulator reset pin
type ResetConfig struct {
	Chip      string        `yaml:"chip"`
	Line      int           `yaml:"line"`
	ActiveLow bool          `yaml:"active_low,omitempty"`
	Pulse     time.Duration `yaml:"pulse,omitempty"`
}

// DemodConfig selects and parameterizes the demodulator
type DemodConfig struct {
	Type          string        `yaml:"type"`
	Addr          uint16        `yaml:"addr"`
	Path          int           `yaml:"path,omitempty"`
	MasterClockHz uint32        `yaml:"master_clock_hz,omitempty"`
	SearchRangeHz uint32        `yaml:"search_range_hz,omitempty"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty"`
}

// TunerConfig parameterizes the tuner
type TunerConfig struct {
	Type   string `yaml:"type"`
	Addr   uint16 `yaml:"addr"`
	XtalHz uint32 `yaml:"xtal_hz"`
}

// FrontendConfig holds the caller retry policies
type FrontendConfig struct {
	TunerLockAttempts int           `yaml:"tuner_lock_attempts"`
	TunerLockInterval time.Duration `yaml:"tuner_lock_interval"`
}

// DefaultBoard returns the STV0910 + R848 design on the first host bus
func DefaultBoard() *BoardConfig {
	sd := stv0910.DefaultConfig()
	td := r848.DefaultConfig()
	fd := frontend.DefaultConfig()
	return &BoardConfig{
		Name:      "default",
		Transport: TransportConfig{Kind: TransportHost},
		Demod: DemodConfig{
			Type:          DemodSTV0910,
			Addr:          sd.Addr,
			MasterClockHz: sd.MasterClockHz,
			SearchRangeHz: sd.SearchRangeHz,
			PollInterval:  sd.PollInterval,
		},
		Tuner: TunerConfig{Type: TunerR848, Addr: td.Addr, XtalHz: td.XtalHz},
		Frontend: FrontendConfig{
			TunerLockAttempts: fd.TunerLockAttempts,
			TunerLockInterval: fd.TunerLockInterval,
		},
	}
}

// Validate checks the board description and the driver configs it produces
func (b *BoardConfig) Validate() error {
	switch b.Transport.Kind {
	case TransportHost, TransportUSB, TransportSim:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalidBoard, b.Transport.Kind)
	}
	if b.Reset != nil && (b.Reset.Chip == "" || b.Reset.Line < 0) {
		return fmt.Errorf("%w: reset line %s/%d", ErrInvalidBoard, b.Reset.Chip, b.Reset.Line)
	}
	switch b.Demod.Type {
	case DemodSTV0910:
		cfg := b.STV0910()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("demod: %w", err)
		}
	case DemodSi2168:
		cfg := b.Si2168()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("demod: %w", err)
		}
	default:
		return fmt.Errorf("%w: demod %q", ErrInvalidBoard, b.Demod.Type)
	}
	if b.Tuner.Type != TunerR848 {
		return fmt.Errorf("%w: tuner %q", ErrInvalidBoard, b.Tuner.Type)
	}
	tc := b.R848()
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("tuner: %w", err)
	}
	fc := b.FrontendPolicy()
	return fc.Validate()
}

// STV0910 returns the demodulator config; zero fields keep the defaults
func (b *BoardConfig) STV0910() stv0910.Config {
	cfg := stv0910.DefaultConfig()
	cfg.Path = b.Demod.Path
	if b.Demod.Addr != 0 {
		cfg.Addr = b.Demod.Addr
	}
	if b.Demod.MasterClockHz != 0 {
		cfg.MasterClockHz = b.Demod.MasterClockHz
	}
	if b.Demod.SearchRangeHz != 0 {
		cfg.SearchRangeHz = b.Demod.SearchRangeHz
	}
	if b.Demod.PollInterval != 0 {
		cfg.PollInterval = b.Demod.PollInterval
	}
	return cfg
}

// Si2168 returns the demodulator config; zero fields keep the defaults
func (b *BoardConfig) Si2168() si2168.Config {
	cfg := si2168.DefaultConfig()
	if b.Demod.Addr != 0 {
		cfg.Addr = b.Demod.Addr
	}
	if b.Demod.PollInterval != 0 {
		cfg.PollInterval = b.Demod.PollInterval
	}
	return cfg
}

// R848 returns the tuner config; zero fields keep the defaults
func (b *BoardConfig) R848() r848.Config {
	cfg := r848.DefaultConfig()
	if b.Tuner.Addr != 0 {
		cfg.Addr = b.Tuner.Addr
	}
	if b.Tuner.XtalHz != 0 {
		cfg.XtalHz = b.Tuner.XtalHz
	}
	return cfg
}

// FrontendPolicy returns the caller policies; zero fields keep the defaults
func (b *BoardConfig) FrontendPolicy() frontend.Config {
	cfg := frontend.DefaultConfig()
	if b.Frontend.TunerLockAttempts != 0 {
		cfg.TunerLockAttempts = b.Frontend.TunerLockAttempts
	}
	if b.Frontend.TunerLockInterval != 0 {
		cfg.TunerLockInterval = b.Frontend.TunerLockInterval
	}
	return cfg
}
