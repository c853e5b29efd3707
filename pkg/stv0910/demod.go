// Package stv0910 drives the ST STV0910 dual DVB-S/S2 demodulator: the
// acquisition state machine, tracking optimization, quality counters and the
// I2C repeater in front of the tuner.
package stv0910

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/registers"
	"github.com/herlein/godvb/pkg/registry"
	"github.com/herlein/godvb/pkg/transport"
)

// Registry maps a chip to the base shared by its two demodulators
type Registry = registry.Registry[registry.Key, *Base]

// NewRegistry returns an empty base registry
func NewRegistry() *Registry {
	return registry.New[registry.Key, *Base]()
}

var defaultRegistry = NewRegistry()

// Base is the per-chip state shared by both demodulator paths
type Base struct {
	dev *transport.Device
	log *log.Logger

	// gate is held while a path has its repeater open
	gate sync.Mutex

	mu          sync.Mutex
	initialized bool
}

// ReadChipID reads the MID register of the chip at addr
func ReadChipID(bus transport.Bus, addr uint16) (uint8, error) {
	dev := &transport.Device{Bus: bus, Addr: addr, RegWidth: 2}
	return dev.ReadReg(regMID)
}

// init identifies the chip and writes the shared registers once
func (b *Base) init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	id, err := b.dev.ReadReg(regMID)
	if err != nil {
		return fmt.Errorf("failed to read chip id: %w", err)
	}
	if id != ChipID {
		return fmt.Errorf("%w: MID 0x%02X at %s", ErrUnknownChip, id, b.dev)
	}
	if err := registers.WriteAll(b.dev, baseInit); err != nil {
		return fmt.Errorf("failed to init chip: %w", err)
	}
	b.initialized = true
	b.log.Info("chip ready", "dev", b.dev, "mid", fmt.Sprintf("0x%02X", id))
	return nil
}

// Close puts the chip in standby. The registry calls it when the last path
// detaches.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil
	}
	b.initialized = false
	if err := registers.WriteAll(b.dev, standby); err != nil {
		return fmt.Errorf("failed to enter standby: %w", err)
	}
	b.log.Debug("standby", "dev", b.dev)
	return nil
}

// Config holds demodulator parameters
type Config struct {
	Addr uint16

	// Path selects the demodulator: 0 is P1, 1 is P2
	Path int

	MasterClockHz uint32
	SearchRangeHz uint32

	// PollInterval is the status poll period suggested to the caller
	PollInterval time.Duration

	// Registry shares the chip base; nil uses the process-wide registry
	Registry *Registry

	Clock  transport.Clock
	Logger *log.Logger
}

// DefaultConfig returns the configuration of the common 135 MHz design
func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		MasterClockHz: 135_000_000,
		SearchRangeHz: 16_000_000,
		PollInterval:  50 * time.Millisecond,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Addr == 0 || c.Addr > 0x7F {
		return fmt.Errorf("%w: I2C address 0x%02X", frontend.ErrInvalidParameter, c.Addr)
	}
	if c.Path != 0 && c.Path != 1 {
		return fmt.Errorf("%w: demod path %d", frontend.ErrInvalidParameter, c.Path)
	}
	if c.MasterClockHz < 1_000_000 {
		return fmt.Errorf("%w: master clock %d Hz", frontend.ErrInvalidParameter, c.MasterClockHz)
	}
	if c.SearchRangeHz == 0 || c.SearchRangeHz > MaxSymbolRate {
		return fmt.Errorf("%w: search range %d Hz", frontend.ErrInvalidParameter, c.SearchRangeHz)
	}
	return nil
}

// Demod is one demodulator path. It implements frontend.Demod.
type Demod struct {
	cfg     Config
	base    *Base
	release func() error
	io      regIO
	acq     *Acquisition
	log     *log.Logger
	active  bool

	// gateOpen is set while this path holds the gate lock
	gateOpen bool
}

var _ frontend.Demod = (*Demod)(nil)

// New attaches to the chip at cfg.Addr on bus. Both paths of one chip share
// a Base; Close detaches.
func New(bus transport.Bus, cfg Config) (*Demod, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = transport.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("stv0910")
	}
	reg := cfg.Registry
	if reg == nil {
		reg = defaultRegistry
	}

	key := registry.Key{Bus: bus.String(), Addr: cfg.Addr}
	base, release, err := reg.Attach(key, func() (*Base, error) {
		dev := &transport.Device{Bus: bus, Addr: cfg.Addr, RegWidth: 2, Clock: clock}
		return &Base{dev: dev, log: logger}, nil
	})
	if err != nil {
		return nil, err
	}

	io := regIO{dev: base.dev}
	if cfg.Path == 0 {
		io.off = p1Offset
	}
	d := &Demod{
		cfg:     cfg,
		base:    base,
		release: release,
		io:      io,
		log:     logger.With("path", cfg.Path+1),
	}
	d.acq = newAcquisition(io, cfg.Path, cfg, clock, d.log)
	return d, nil
}

// Close detaches from the shared base
func (d *Demod) Close() error {
	return d.release()
}

// Init brings up the chip (once per base) and this path
func (d *Demod) Init() error {
	if err := d.base.init(); err != nil {
		return err
	}
	if err := d.io.writeList(demodInit); err != nil {
		return fmt.Errorf("failed to init demod: %w", err)
	}
	d.acq.setState(Stopped{})
	d.active = true
	return nil
}

// Sleep stops acquisition
func (d *Demod) Sleep() error {
	d.active = false
	return d.acq.Sleep()
}

// SetFrontend programs stream filtering and starts a search
func (d *Demod) SetFrontend(p frontend.Properties) error {
	if !d.active {
		return frontend.ErrNotReady
	}
	if !p.DeliverySystem.IsSatellite() {
		return fmt.Errorf("%w: %s is not a satellite system", frontend.ErrInvalidParameter, p.DeliverySystem)
	}
	if p.SymbolRate < MinSymbolRate || p.SymbolRate > MaxSymbolRate {
		return fmt.Errorf("%w: symbol rate %d", frontend.ErrInvalidParameter, p.SymbolRate)
	}
	if err := d.setStream(p.StreamID); err != nil {
		return fmt.Errorf("failed to set stream filter: %w", err)
	}
	return d.acq.Start(p.SymbolRate)
}

// setStream enables input stream filtering for multistream carriers
func (d *Demod) setStream(id int32) error {
	if id < 0 || id > 255 {
		if err := d.io.write(regISIBITENA, 0x00); err != nil {
			return err
		}
		return d.io.update(regPDELCTRL1, 0x20, 0x00)
	}
	err := d.io.writeList(registers.List{
		{Reg: regISIENTRY, Val: uint8(id)},
		{Reg: regISIBITENA, Val: 0xFF},
	})
	if err != nil {
		return err
	}
	return d.io.update(regPDELCTRL1, 0x20, 0x20)
}

// ReadStatus polls the acquisition state machine
func (d *Demod) ReadStatus() (frontend.Status, error) {
	return d.acq.Poll()
}

// ReadSNR returns C/N in 0.1 dB
func (d *Demod) ReadSNR() (int32, error) {
	return d.acq.ReadSNR()
}

// ReadBER polls the error counter
func (d *Demod) ReadBER() (frontend.BER, error) {
	return d.acq.PollBER()
}

// ReadSignalStrength returns the scaled input power
func (d *Demod) ReadSignalStrength() (uint16, error) {
	return d.acq.ReadSignalStrength()
}

// TuneSettings returns the suggested poll period
func (d *Demod) TuneSettings() frontend.TuneSettings {
	return frontend.TuneSettings{MinDelay: d.cfg.PollInterval}
}

// Timeouts returns the acquisition budgets of the running search
func (d *Demod) Timeouts() frontend.Timeouts {
	return d.acq.Timeouts()
}

// GateCtrl opens or closes the repeater to the tuner. Opening takes the
// chip's gate lock and closing releases it. A failed open releases it too.
// An open while open, or a close while closed, returns ErrNotReady.
func (d *Demod) GateCtrl(enable bool) error {
	if enable == d.gateOpen {
		return fmt.Errorf("%w: gate already %s", frontend.ErrNotReady, gateState(enable))
	}
	reg := uint16(regI2CRPT2)
	if d.cfg.Path == 0 {
		reg = regI2CRPT1
	}
	v := uint8(rptDefault &^ rptMask)
	if enable {
		d.base.gate.Lock()
		d.gateOpen = true
		v |= rptEnable
	} else {
		v |= rptDisable
	}
	err := d.base.dev.WriteReg(reg, v)
	if !enable || err != nil {
		d.gateOpen = false
		d.base.gate.Unlock()
	}
	if err != nil {
		return fmt.Errorf("failed to switch repeater: %w", err)
	}
	return nil
}

func gateState(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

// State returns the acquisition state
func (d *Demod) State() State {
	return d.acq.State()
}

// Signal returns what was found at the last lock
func (d *Demod) Signal() Signal {
	return d.acq.Signal()
}

// SignalLevel returns the input power in 0.01 dBm
func (d *Demod) SignalLevel() (int32, error) {
	return d.acq.SignalLevel()
}

// TrackingOptimizations counts tracking passes
func (d *Demod) TrackingOptimizations() int {
	return d.acq.TrackingOptimizations()
}
