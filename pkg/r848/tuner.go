// Package r848 drives the Rafael Micro R848 silicon tuner: PLL frequency
// planning, image rejection calibration, band plan selection and lock status.
package r848

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/registers"
	"github.com/herlein/godvb/pkg/transport"
)

// State is the tuner life cycle state
type State uint8

const (
	StateUninitialized State = iota
	StateCalibrating
	StateReady
	StateTuned
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCalibrating:
		return "calibrating"
	case StateReady:
		return "ready"
	case StateTuned:
		return "tuned"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Settling delays
const (
	pllSettle    = time.Millisecond
	xtalSettle   = 10 * time.Millisecond
	imrSettle    = 2 * time.Millisecond
	filterSettle = 5 * time.Millisecond
)

const pllLockAttempts = 3

// Config holds tuner parameters
type Config struct {
	Addr   uint16
	XtalHz uint32

	Clock  transport.Clock
	Logger *log.Logger
}

// DefaultConfig returns the configuration of the common 16 MHz design
func DefaultConfig() Config {
	return Config{
		Addr:   DefaultAddr,
		XtalHz: 16_000_000,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Addr == 0 || c.Addr > 0x7F {
		return fmt.Errorf("%w: I2C address 0x%02X", frontend.ErrInvalidParameter, c.Addr)
	}
	if c.XtalHz != 16_000_000 && c.XtalHz != 24_000_000 {
		return fmt.Errorf("%w: crystal must be 16 or 24 MHz, got %d Hz", frontend.ErrInvalidParameter, c.XtalHz)
	}
	return nil
}

// Tuner is an R848 instance. It is not safe for concurrent use; callers
// serialize access through the demodulator gate.
type Tuner struct {
	dev   *transport.Device
	cfg   Config
	clock transport.Clock
	log   *log.Logger

	regs  *registers.File
	state State

	table       CalibrationTable
	xtalDrive   uint8
	filterCodes map[Standard]uint8

	std     Standard
	stdSet  bool
	freqKHz uint32
	plan    FrequencyPlan
}

var _ frontend.Tuner = (*Tuner)(nil)

// New returns a tuner on bus. Nothing is written until Init.
func New(bus transport.Bus, cfg Config) (*Tuner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tuner{
		dev:   transport.NewDevice(bus, cfg.Addr),
		cfg:   cfg,
		clock: cfg.Clock,
		log:   cfg.Logger,
		regs:  newRegisterFile(),
	}
	if t.clock == nil {
		t.clock = transport.SystemClock{}
	}
	if t.log == nil {
		t.log = log.Default().WithPrefix("r848")
	}
	t.dev.Clock = t.clock
	return t, nil
}

func (t *Tuner) setState(s State) {
	if t.state != s {
		t.log.Debug("state", "from", t.state, "to", s)
		t.state = s
	}
}

func (t *Tuner) flush() error {
	return registers.Flush(t.dev, t.regs)
}

func (t *Tuner) readStatus(n int) ([]byte, error) {
	b, err := t.dev.ReadRaw(n)
	if err != nil {
		return nil, err
	}
	reverse(b)
	return b, nil
}

func (t *Tuner) pllLocked() (bool, error) {
	b, err := t.readStatus(readLen)
	if err != nil {
		return false, err
	}
	return b[rdPLL]&pllLockBit != 0, nil
}

// Init loads chip defaults, checks the crystal and calibrates image rejection
// for every bin. Any previous calibration is replaced.
func (t *Tuner) Init() error {
	t.setState(StateCalibrating)
	if err := t.init(); err != nil {
		t.setState(StateUninitialized)
		return err
	}
	t.setState(StateReady)
	return nil
}

func (t *Tuner) init() error {
	id, err := t.readStatus(1)
	if err != nil {
		return fmt.Errorf("failed to detect tuner: %w", err)
	}
	if id[rdChipID] != ChipID {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownChip, id[rdChipID])
	}

	t.regs = newRegisterFile()
	t.filterCodes = make(map[Standard]uint8)
	t.stdSet = false
	t.freqKHz = 0
	if err := t.flush(); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	drive, err := t.calibrateXtal()
	if err != nil {
		return err
	}
	t.xtalDrive = drive
	t.log.Info("crystal check", "xtal_hz", t.cfg.XtalHz, "drive", drive)

	table, err := t.calibrateIMR()
	if err != nil {
		return err
	}
	t.table = table
	return nil
}

// SetStandard loads the standard's register defaults. The filter is
// calibrated the first time each standard is selected after Init.
func (t *Tuner) SetStandard(std Standard) error {
	if !std.Valid() {
		return fmt.Errorf("%w: standard %d", frontend.ErrInvalidParameter, std)
	}
	if t.state < StateReady {
		return frontend.ErrNotReady
	}
	info := std.info()

	for _, w := range info.regs {
		t.regs.SetByte(uint8(w.Reg), w.Val)
	}
	t.regs.Set(fBandwidth, info.bandwidth)
	t.regs.Set(fHPFCorner, info.hpfCorner)
	t.regs.SetFlag(fSatMode, info.satellite)
	t.regs.SetFlag(fStandby, false)

	code, ok := t.filterCodes[std]
	if !ok {
		var err error
		if code, err = t.calibrateFilter(info); err != nil {
			return fmt.Errorf("failed to calibrate filter for %s: %w", std, err)
		}
		t.filterCodes[std] = code
		t.log.Info("filter calibrated", "standard", std, "code", code)
	}
	t.regs.Set(fFiltCode, code)
	if err := t.flush(); err != nil {
		return err
	}

	t.std = std
	t.stdSet = true
	t.freqKHz = 0
	t.setState(StateReady)
	return nil
}

// SetFrequency tunes to rfKHz under the current standard
func (t *Tuner) SetFrequency(rfKHz uint32) error {
	if t.state < StateReady {
		return frontend.ErrNotReady
	}
	if !t.stdSet {
		return fmt.Errorf("no standard selected: %w", frontend.ErrNotReady)
	}
	info := t.std.info()
	band, ok := info.plan.lookup(rfKHz)
	if !ok {
		return fmt.Errorf("%w: %d kHz outside %s band plan", ErrInvalidFrequency, rfKHz, info.plan.name)
	}
	lo := rfKHz + info.ifKHz
	plan, err := Plan(lo, t.cfg.XtalHz, HintNone)
	if err != nil {
		return err
	}
	bin := binForLO(lo)
	imr := t.table[bin]

	t.regs.Set(fLNABand, band.lnaBand)
	t.regs.Set(fRFPoly, band.rfPoly)
	t.regs.Set(fTFCode, band.tfCode)
	t.regs.Set(fIMRGain, imr.Gain)
	t.regs.Set(fIMRPhase, imr.Phase)
	t.regs.Set(fIQCap, imr.IQCap)
	t.regs.SetFlag(fStandby, false)

	if err := t.commit(plan); err != nil {
		t.setState(StateReady)
		return err
	}
	t.freqKHz = rfKHz
	t.setState(StateTuned)
	t.log.Info("tuned", "rf_khz", rfKHz, "lo_khz", lo, "bin", bin, "plan", plan)
	return nil
}

// commit programs a plan and waits for the PLL, raising the VCO bias after
// each failed poll
func (t *Tuner) commit(p FrequencyPlan) error {
	r := t.regs
	r.Set(fMixDiv, p.PostDividerStages())
	r.SetFlag(fXtalDiv, p.XtalDiv == 2)
	r.Set(fNi, p.ni())
	r.Set(fSi, p.si())
	r.SetFlag(fSDMPowerOff, !p.SDMEnabled())
	r.Set(fSDMLow, uint8(p.SDM))
	r.Set(fSDMHigh, uint8(p.SDM>>8))
	r.Set(fChargePump, p.ChargePump)
	r.Set(fVCOBias, p.VCOBias)
	if err := t.flush(); err != nil {
		return fmt.Errorf("failed to program PLL: %w", err)
	}

	bias := p.VCOBias
	for attempt := 1; attempt <= pllLockAttempts; attempt++ {
		t.clock.Sleep(pllSettle)
		locked, err := t.pllLocked()
		if err != nil {
			return err
		}
		if locked {
			p.VCOBias = bias
			t.plan = p
			return nil
		}
		if bias < maxVCOBias {
			bias++
		}
		t.log.Debug("PLL unlocked", "lo_khz", p.TargetLOKHz, "attempt", attempt, "vco_bias", bias)
		r.Set(fVCOBias, bias)
		if err := t.flush(); err != nil {
			return err
		}
	}
	return fmt.Errorf("PLL not locked at %d kHz: %w", p.TargetLOKHz, frontend.ErrTimeout)
}

// LockStatus reads the PLL lock indicator once
func (t *Tuner) LockStatus() (bool, error) {
	if t.state < StateReady {
		return false, frontend.ErrNotReady
	}
	return t.pllLocked()
}

// SetParams tunes for a frontend request
func (t *Tuner) SetParams(p frontend.Properties) error {
	std, err := StandardFor(p)
	if err != nil {
		return err
	}
	if !t.stdSet || t.std != std {
		if err := t.SetStandard(std); err != nil {
			return err
		}
	}
	if std.info().satellite {
		t.regs.Set(fSatLPF, satLPFCode(p.SymbolRate))
	}
	return t.SetFrequency(p.FrequencyHz / 1000)
}

// Sleep puts the tuner in standby. Calibration survives.
func (t *Tuner) Sleep() error {
	if t.state < StateReady {
		return nil
	}
	t.regs.SetFlag(fStandby, true)
	if err := t.flush(); err != nil {
		return err
	}
	t.freqKHz = 0
	t.setState(StateReady)
	return nil
}

// State returns the life cycle state
func (t *Tuner) State() State { return t.state }

// FrequencyKHz returns the tuned RF frequency, 0 when not tuned
func (t *Tuner) FrequencyKHz() uint32 { return t.freqKHz }

// Standard returns the selected standard
func (t *Tuner) Standard() (Standard, bool) { return t.std, t.stdSet }

// CalibrationTable returns the IMR results of the last Init
func (t *Tuner) CalibrationTable() CalibrationTable { return t.table }

// XtalDrive returns the crystal drive level chosen by Init
func (t *Tuner) XtalDrive() uint8 { return t.xtalDrive }

// FilterCode returns the cached filter calibration of std
func (t *Tuner) FilterCode(std Standard) (uint8, bool) {
	c, ok := t.filterCodes[std]
	return c, ok
}

// LastPlan returns the plan of the last successful commit
func (t *Tuner) LastPlan() FrequencyPlan { return t.plan }
