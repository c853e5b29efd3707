package frontend

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/retry.v1"

	"github.com/herlein/godvb/pkg/transport"
)

// Tuner is the RF half of a frontend. Its registers sit behind the
// demodulator's I2C gate.
type Tuner interface {
	Init() error
	Sleep() error
	SetParams(p Properties) error

	// LockStatus is a single poll of the PLL lock indicator
	LockStatus() (bool, error)
}

// Demod is the demodulator half of a frontend
type Demod interface {
	Init() error
	Sleep() error
	SetFrontend(p Properties) error
	ReadStatus() (Status, error)

	// ReadSNR returns the signal to noise ratio in 0.1 dB units
	ReadSNR() (int32, error)
	ReadBER() (BER, error)
	ReadSignalStrength() (uint16, error)
	TuneSettings() TuneSettings

	// Timeouts returns the acquisition budgets for the last SetFrontend
	Timeouts() Timeouts

	// GateCtrl opens (true) or closes (false) the repeater to the tuner.
	// Calls must be paired; an open gate holds the shared bus lock.
	GateCtrl(enable bool) error
}

// Config holds the caller policies applied around the drivers
type Config struct {
	// TunerLockAttempts and TunerLockInterval bound the tuner lock poll
	TunerLockAttempts int
	TunerLockInterval time.Duration

	Clock  transport.Clock
	Logger *log.Logger
}

// DefaultConfig returns the standard caller policies
func DefaultConfig() Config {
	return Config{
		TunerLockAttempts: 5,
		TunerLockInterval: 20 * time.Millisecond,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.TunerLockAttempts < 1 {
		return fmt.Errorf("%w: tuner lock attempts must be at least 1", ErrInvalidParameter)
	}
	if c.TunerLockInterval < 0 {
		return fmt.Errorf("%w: negative tuner lock interval", ErrInvalidParameter)
	}
	return nil
}

// Stats is a snapshot of the channel quality
type Stats struct {
	Status   Status
	SNR      int32 // 0.1 dB
	BER      BER
	Strength uint16
}

// Frontend drives one demodulator and the tuner behind its gate
type Frontend struct {
	demod Demod
	tuner Tuner
	cfg   Config
	clock transport.Clock
	log   *log.Logger

	active bool
	props  Properties
}

// New composes a frontend. tuner may be nil for demodulators with an
// integrated tuner.
func New(demod Demod, tuner Tuner, cfg Config) (*Frontend, error) {
	if demod == nil {
		return nil, fmt.Errorf("%w: nil demodulator", ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Frontend{
		demod: demod,
		tuner: tuner,
		cfg:   cfg,
		clock: cfg.Clock,
		log:   cfg.Logger,
	}
	if f.clock == nil {
		f.clock = transport.SystemClock{}
	}
	if f.log == nil {
		f.log = log.Default().WithPrefix("frontend")
	}
	return f, nil
}

// withGate runs fn with the tuner gate open. The gate is closed again even
// when fn fails.
func (f *Frontend) withGate(fn func() error) error {
	if err := f.demod.GateCtrl(true); err != nil {
		return fmt.Errorf("failed to open gate: %w", err)
	}
	err := fn()
	if cerr := f.demod.GateCtrl(false); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close gate: %w", cerr)
	}
	return err
}

// Init brings up the demodulator, then the tuner
func (f *Frontend) Init() error {
	if err := f.demod.Init(); err != nil {
		return fmt.Errorf("failed to init demodulator: %w", err)
	}
	if f.tuner != nil {
		if err := f.withGate(f.tuner.Init); err != nil {
			return fmt.Errorf("failed to init tuner: %w", err)
		}
	}
	f.active = true
	f.log.Info("frontend ready")
	return nil
}

// Sleep powers down both chips. It applies in any state.
func (f *Frontend) Sleep() error {
	var err error
	if f.tuner != nil {
		err = f.withGate(f.tuner.Sleep)
	}
	if derr := f.demod.Sleep(); derr != nil && err == nil {
		err = derr
	}
	f.active = false
	return err
}

// Tune programs the tuner and starts acquisition on the demodulator
func (f *Frontend) Tune(ctx context.Context, p Properties) error {
	if !f.active {
		return ErrNotReady
	}
	if err := p.Validate(); err != nil {
		return err
	}
	f.log.Info("tune", "system", p.DeliverySystem, "freq", p.FrequencyHz, "sr", p.SymbolRate, "bw", p.BandwidthHz)

	if f.tuner != nil {
		err := f.withGate(func() error {
			if err := f.tuner.SetParams(p); err != nil {
				return err
			}
			return f.waitTunerLock(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to set tuner: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.demod.SetFrontend(p); err != nil {
		return fmt.Errorf("failed to set demodulator: %w", err)
	}
	f.props = p
	return nil
}

func (f *Frontend) waitTunerLock(ctx context.Context) error {
	strategy := retry.LimitCount(f.cfg.TunerLockAttempts, retry.Regular{
		Total: time.Duration(f.cfg.TunerLockAttempts) * f.cfg.TunerLockInterval,
		Delay: f.cfg.TunerLockInterval,
		Min:   f.cfg.TunerLockAttempts,
	})
	for a := retry.Start(strategy, f.clock); a.Next(); {
		locked, err := f.tuner.LockStatus()
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("tuner PLL: %w", ErrNoLock)
}

// WaitLock polls the demodulator status every TuneSettings.MinDelay until it
// reports lock or the demodulator's acquisition budget runs out.
func (f *Frontend) WaitLock(ctx context.Context) (Status, error) {
	if !f.active {
		return 0, ErrNotReady
	}
	budget := f.demod.Timeouts()
	interval := f.demod.TuneSettings().MinDelay
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	deadline := f.clock.Now().Add(budget.Demod + budget.FEC)
	for {
		st, err := f.demod.ReadStatus()
		if err != nil {
			return 0, err
		}
		if st.Locked() {
			f.log.Info("locked", "status", st)
			return st, nil
		}
		if !f.clock.Now().Before(deadline) {
			f.log.Warn("no lock", "status", st, "budget", budget.Demod+budget.FEC)
			return st | TimedOut, ErrNoLock
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}
		f.clock.Sleep(interval)
	}
}

// ReadStats samples status and the quality counters
func (f *Frontend) ReadStats() (Stats, error) {
	var s Stats
	var err error
	if s.Status, err = f.demod.ReadStatus(); err != nil {
		return s, err
	}
	if s.Strength, err = f.demod.ReadSignalStrength(); err != nil {
		return s, err
	}
	if !s.Status.Locked() {
		return s, nil
	}
	if s.SNR, err = f.demod.ReadSNR(); err != nil {
		return s, err
	}
	if s.BER, err = f.demod.ReadBER(); err != nil {
		return s, err
	}
	return s, nil
}

// Properties returns the last successfully tuned parameters
func (f *Frontend) Properties() Properties {
	return f.props
}
