// Package si2168 drives the Silicon Labs Si2168/Si2183 demodulators. Both
// speak a command protocol: each command is written as a byte string and the
// reply is polled until the chip sets the ready bit.
package si2168

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/registry"
	"github.com/herlein/godvb/pkg/transport"
)

// DefaultAddr is the 7-bit I2C address with ADDR strapped low
const DefaultAddr = 0x64

// system describes how a delivery system is programmed and polled
type system struct {
	mode       byte // DD_MODE modulation field
	statusCmd  byte
	statusLen  int
	multistd   bool // needs an Si2183
	bandwidth  bool // requires a bandwidth
	timeouts   frontend.Timeouts
	symbolProp uint16
}

var systems = map[frontend.DeliverySystem]system{
	frontend.SysDVBT:  {mode: 0x20, statusCmd: 0xA0, statusLen: 13, bandwidth: true, timeouts: budget(1000, 500)},
	frontend.SysDVBT2: {mode: 0x70, statusCmd: 0x50, statusLen: 14, bandwidth: true, timeouts: budget(2000, 1500)},
	frontend.SysDVBC:  {mode: 0x30, statusCmd: 0x90, statusLen: 9, timeouts: budget(1000, 300), symbolProp: propDVBCSymbolRate},
	frontend.SysDVBCB: {mode: 0x10, statusCmd: 0x98, statusLen: 10, multistd: true, timeouts: budget(1000, 300)},
	frontend.SysISDBT: {mode: 0x40, statusCmd: 0xA4, statusLen: 14, multistd: true, bandwidth: true, timeouts: budget(1500, 800)},
	frontend.SysDVBS:  {mode: 0x80, statusCmd: 0x60, statusLen: 10, multistd: true, timeouts: budget(1000, 500), symbolProp: propDVBSSymbolRate},
	frontend.SysDVBS2: {mode: 0x90, statusCmd: 0x70, statusLen: 13, multistd: true, timeouts: budget(1000, 700), symbolProp: propDVBSSymbolRate},
}

func budget(demod, fec int) frontend.Timeouts {
	return frontend.Timeouts{Demod: time.Duration(demod) * time.Millisecond, FEC: time.Duration(fec) * time.Millisecond}
}

// bandwidthCode maps a channel bandwidth to the DD_MODE bandwidth field
func bandwidthCode(hz uint32) (byte, error) {
	switch {
	case hz == 0:
		return 0, fmt.Errorf("%w: bandwidth not set", frontend.ErrInvalidParameter)
	case hz <= 2_000_000:
		return 0x02, nil
	case hz <= 5_000_000:
		return 0x05, nil
	case hz <= 6_000_000:
		return 0x06, nil
	case hz <= 7_000_000:
		return 0x07, nil
	case hz <= 8_000_000:
		return 0x08, nil
	case hz <= 9_000_000:
		return 0x09, nil
	case hz <= 10_000_000:
		return 0x0A, nil
	}
	return 0x0F, nil
}

// Registry maps a chip to its shared base
type Registry = registry.Registry[registry.Key, *Base]

// NewRegistry returns an empty base registry
func NewRegistry() *Registry {
	return registry.New[registry.Key, *Base]()
}

var defaultRegistry = NewRegistry()

// Base is the chip state shared by every frontend on one Si21xx
type Base struct {
	dev     *transport.Device
	log     *log.Logger
	timeout time.Duration

	gate sync.Mutex

	mu       sync.Mutex
	rev      HardwareRevision
	firmware string
	powered  bool

	// users counts the frontends between Init and Sleep
	users int
}

// join registers an active frontend, powering the chip up for the first one
func (b *Base) join() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.powered {
		if err := b.powerUp(); err != nil {
			return err
		}
	}
	b.users++
	return nil
}

// leave unregisters an active frontend and powers the chip down after the
// last one
func (b *Base) leave() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users > 0 {
		b.users--
	}
	if b.users > 0 || !b.powered {
		return nil
	}
	b.powered = false
	_, err := execute(b.dev, b.timeout, cmdPowerDown)
	return err
}

// powerUp identifies the part and runs its init list. b.mu is held.
func (b *Base) powerUp() error {
	if err := applyCommands(b.dev, b.timeout, []command{cmdPowerUpReset, cmdPowerUp}); err != nil {
		return err
	}
	r, err := execute(b.dev, b.timeout, cmdPartInfo)
	if err != nil {
		return err
	}
	rev, err := parsePartInfo(r)
	if err != nil {
		return err
	}
	if err := applyCommands(b.dev, b.timeout, revisionInit[rev]); err != nil {
		return fmt.Errorf("failed to init %s: %w", rev, err)
	}
	r, err = execute(b.dev, b.timeout, cmdGetRevision)
	if err != nil {
		return err
	}
	b.rev = rev
	b.firmware = fmt.Sprintf("%c %d.%d.%d", r[9]+'@', r[6]-'0', r[7]-'0', r[8])
	b.powered = true
	b.log.Info("chip ready", "dev", b.dev, "part", rev, "firmware", b.firmware)
	return nil
}

// Close powers the chip down when the last frontend detaches
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.powered {
		return nil
	}
	b.powered = false
	b.users = 0
	_, err := execute(b.dev, b.timeout, cmdPowerDown)
	return err
}

// Config holds demodulator parameters
type Config struct {
	Addr uint16

	// CommandTimeout bounds the ready-bit poll of one command
	CommandTimeout time.Duration

	// PollInterval is the status poll period suggested to the caller
	PollInterval time.Duration

	// Registry shares the chip base; nil uses the process-wide registry
	Registry *Registry

	Clock  transport.Clock
	Logger *log.Logger
}

// DefaultConfig returns the usual strapping and timings
func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		CommandTimeout: transport.DefaultCommandTimeout,
		PollInterval:   900 * time.Millisecond,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Addr == 0 || c.Addr > 0x7F {
		return fmt.Errorf("%w: I2C address 0x%02X", frontend.ErrInvalidParameter, c.Addr)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("%w: command timeout %v", frontend.ErrInvalidParameter, c.CommandTimeout)
	}
	return nil
}

// Demod is one frontend on an Si2168/Si2183. It implements frontend.Demod.
type Demod struct {
	cfg     Config
	base    *Base
	release func() error
	log     *log.Logger

	active bool
	tuned  bool
	sys    system
	props  frontend.Properties

	// gateOpen is set while this frontend holds the gate lock
	gateOpen bool
}

var _ frontend.Demod = (*Demod)(nil)

// New attaches to the chip at cfg.Addr on bus
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
		logger = log.Default().WithPrefix("si2168")
	}
	reg := cfg.Registry
	if reg == nil {
		reg = defaultRegistry
	}
	base, release, err := reg.Attach(registry.Key{Bus: bus.String(), Addr: cfg.Addr}, func() (*Base, error) {
		dev := &transport.Device{Bus: bus, Addr: cfg.Addr, RegWidth: 1, Clock: clock}
		return &Base{dev: dev, log: logger, timeout: cfg.CommandTimeout}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Demod{cfg: cfg, base: base, release: release, log: logger}, nil
}

// Close stops the demodulator and detaches from the shared base
func (d *Demod) Close() error {
	err := d.Sleep()
	if rerr := d.release(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (d *Demod) exec(c command) ([]byte, error) {
	return execute(d.base.dev, d.base.timeout, c)
}

// Revision returns the silicon found at Init
func (d *Demod) Revision() HardwareRevision {
	d.base.mu.Lock()
	defer d.base.mu.Unlock()
	return d.base.rev
}

// Init powers up and identifies the chip the first time any frontend on it
// starts
func (d *Demod) Init() error {
	if d.active {
		return nil
	}
	if err := d.base.join(); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Sleep stops the demodulator. The chip is powered down once no other
// frontend on it is active.
func (d *Demod) Sleep() error {
	if !d.active {
		return nil
	}
	d.active = false
	d.tuned = false
	return d.base.leave()
}

// SetFrontend programs the delivery system and restarts acquisition
func (d *Demod) SetFrontend(p frontend.Properties) error {
	if !d.active {
		return frontend.ErrNotReady
	}
	sys, ok := systems[p.DeliverySystem]
	if !ok {
		return fmt.Errorf("%w: %s not supported", frontend.ErrInvalidParameter, p.DeliverySystem)
	}
	if sys.multistd && !d.Revision().Multistandard() {
		return fmt.Errorf("%w: %s needs an Si2183, found %s", frontend.ErrInvalidParameter, p.DeliverySystem, d.Revision())
	}
	var bw byte
	if sys.bandwidth {
		var err error
		if bw, err = bandwidthCode(p.BandwidthHz); err != nil {
			return err
		}
	}
	if sys.symbolProp != 0 && (p.SymbolRate < 1000 || p.SymbolRate/1000 > 0xFFFF) {
		return fmt.Errorf("%w: symbol rate %d", frontend.ErrInvalidParameter, p.SymbolRate)
	}

	list := []command{cmdMPDefaults}
	if p.DeliverySystem == frontend.SysDVBT2 {
		enable := byte(1)
		if p.StreamID == frontend.NoStreamID {
			enable = 0
		}
		list = append(list, cmd("select plp", 1, 0x52, byte(p.StreamID), enable))
	}
	list = append(list, setProperty(propDDMode, uint16(sys.mode|bw)))
	if sys.symbolProp != 0 {
		list = append(list, setProperty(sys.symbolProp, uint16(p.SymbolRate/1000)))
	}
	if p.DeliverySystem == frontend.SysDVBT && p.Hierarchy != 0 {
		list = append(list, setProperty(propDVBTHierarchy, uint16(p.Hierarchy)))
	}
	if p.DeliverySystem == frontend.SysDVBCB {
		list = append(list, setProperty(propMCNSConstell, 0))
	}
	list = append(list, cmdRestart)

	if err := applyCommands(d.base.dev, d.base.timeout, list); err != nil {
		return err
	}
	d.sys = sys
	d.props = p
	d.tuned = true
	d.log.Debug("set frontend", "system", p.DeliverySystem, "mode", fmt.Sprintf("0x%02X", sys.mode|bw))
	return nil
}

// status runs the status command of the tuned system
func (d *Demod) status() (frontend.Status, []byte, error) {
	if !d.active || !d.tuned {
		return 0, nil, frontend.ErrNotReady
	}
	r, err := d.exec(cmd("status", d.sys.statusLen, d.sys.statusCmd, 0x01))
	if err != nil {
		return 0, nil, err
	}
	var st frontend.Status
	switch (r[2] >> 1) & 0x03 {
	case 0x01:
		st = frontend.HasSignal | frontend.HasCarrier
	case 0x03:
		st = frontend.HasSignal | frontend.HasCarrier | frontend.HasViterbi | frontend.HasSync | frontend.HasLock
	}
	return st, r, nil
}

// ReadStatus polls the lock state
func (d *Demod) ReadStatus() (frontend.Status, error) {
	st, _, err := d.status()
	return st, err
}

// ReadSNR returns the CNR in 0.1 dB; the chip reports quarter dB
func (d *Demod) ReadSNR() (int32, error) {
	st, r, err := d.status()
	if err != nil || !st.Has(frontend.HasViterbi) {
		return 0, err
	}
	return int32(r[3]) * 10 / 4, nil
}

// ReadBER returns mantissa / 10^exponent as reported by the chip
func (d *Demod) ReadBER() (frontend.BER, error) {
	if !d.active || !d.tuned {
		return frontend.BER{}, frontend.ErrNotReady
	}
	r, err := d.exec(cmdBER)
	if err != nil {
		return frontend.BER{}, err
	}
	den := uint32(1)
	for range min(r[1], 8) {
		den *= 10
	}
	return frontend.BER{Numerator: uint32(r[2]), Denominator: den}, nil
}

// ReadSignalStrength scales the chip's SSI percentage to 0..65535
func (d *Demod) ReadSignalStrength() (uint16, error) {
	if !d.active {
		return 0, frontend.ErrNotReady
	}
	r, err := d.exec(cmdSSISQI)
	if err != nil {
		return 0, err
	}
	ssi := uint32(min(r[1], 100))
	return uint16(ssi * 0xFFFF / 100), nil
}

// TuneSettings returns the suggested poll period
func (d *Demod) TuneSettings() frontend.TuneSettings {
	return frontend.TuneSettings{MinDelay: d.cfg.PollInterval}
}

// Timeouts returns the acquisition budget of the tuned system
func (d *Demod) Timeouts() frontend.Timeouts {
	return d.sys.timeouts
}

// GateCtrl opens or closes the tuner I2C pass-through. An unpaired call
// returns ErrNotReady.
func (d *Demod) GateCtrl(enable bool) error {
	if enable == d.gateOpen {
		if enable {
			return fmt.Errorf("%w: gate already open", frontend.ErrNotReady)
		}
		return fmt.Errorf("%w: gate already closed", frontend.ErrNotReady)
	}
	c := cmdGateClose
	if enable {
		d.base.gate.Lock()
		d.gateOpen = true
		c = cmdGateOpen
	}
	_, err := d.exec(c)
	if !enable || err != nil {
		d.gateOpen = false
		d.base.gate.Unlock()
	}
	return err
}
