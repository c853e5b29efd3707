package stv0910

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/registers"
	"github.com/herlein/godvb/pkg/transport"
)

// Symbol rate limits accepted by Start
const (
	MinSymbolRate = 100_000
	MaxSymbolRate = 70_000_000
)

// searchOffsetKHz widens the carrier search window on both sides
const searchOffsetKHz = 600

// Mode is the receive mode found at lock
type Mode uint8

const (
	ModeDVBS Mode = iota
	ModeDVBS2
)

func (m Mode) String() string {
	if m == ModeDVBS2 {
		return "DVB-S2"
	}
	return "DVB-S"
}

// State is the acquisition state: Stopped, Searching or Locked
type State interface {
	isState()
	String() string
}

// Stopped means the demodulator is idle
type Stopped struct{}

// Searching means the hardware search is running
type Searching struct {
	SymbolRate   uint32
	DemodTimeout time.Duration
	FECTimeout   time.Duration
	StartedAt    time.Time
}

// Locked means carrier and FEC are locked. Mode is fixed for the lock.
type Locked struct {
	Mode      Mode
	FirstLock bool
}

func (Stopped) isState()   {}
func (Searching) isState() {}
func (Locked) isState()    {}

func (Stopped) String() string { return "stopped" }

func (s Searching) String() string {
	return fmt.Sprintf("searching(sr=%d)", s.SymbolRate)
}

func (s Locked) String() string {
	return fmt.Sprintf("locked(%s)", s.Mode)
}

// Signal describes the locked transport stream
type Signal struct {
	Mode        Mode
	ModCod      ModCod // DVB-S2 only
	Pilots      bool
	ShortFrames bool
	Puncture    uint8 // DVB-S Viterbi rate code
}

// timeoutsFor returns the acquisition budgets for a symbol rate
func timeoutsFor(sr uint32) frontend.Timeouts {
	ms := func(demod, fec int) frontend.Timeouts {
		return frontend.Timeouts{
			Demod: time.Duration(demod) * time.Millisecond,
			FEC:   time.Duration(fec) * time.Millisecond,
		}
	}
	switch {
	case sr <= 1_000_000:
		return ms(3000, 2000)
	case sr <= 2_000_000:
		return ms(2500, 1300)
	case sr <= 5_000_000:
		return ms(1000, 650)
	case sr <= 10_000_000:
		return ms(700, 350)
	case sr < 20_000_000:
		return ms(400, 200)
	}
	return ms(300, 200)
}

// searchWindowKHz is the half width of the carrier search
func searchWindowKHz(searchRangeHz, sr uint32) uint32 {
	w := searchRangeHz/2000 + searchOffsetKHz
	if sr <= 5_000_000 {
		w += sr / 2000
	}
	return w
}

// regIO addresses the register block of one demod path
type regIO struct {
	dev *transport.Device
	off uint16
}

func (r regIO) read(reg uint16) (uint8, error) {
	return r.dev.ReadReg(reg + r.off)
}

func (r regIO) readN(reg uint16, n int) ([]byte, error) {
	return r.dev.Read(reg+r.off, n)
}

func (r regIO) write(reg uint16, v uint8) error {
	return r.dev.WriteReg(reg+r.off, v)
}

func (r regIO) writeList(list registers.List) error {
	return registers.WriteAll(r.dev, offset(list, r.off))
}

func (r regIO) update(reg uint16, mask, v uint8) error {
	cur, err := r.read(reg)
	if err != nil {
		return err
	}
	return r.write(reg, cur&^mask|v&mask)
}

// Acquisition runs the search/lock state machine of one demod path. Nothing
// runs in the background; the caller polls.
type Acquisition struct {
	io          regIO
	path        int
	clock       transport.Clock
	log         *log.Logger
	mclkHz      uint32
	searchRange uint32

	state         State
	sr            uint32
	ber           berCounter
	signal        Signal
	optimizations int
}

func newAcquisition(io regIO, path int, cfg Config, clock transport.Clock, logger *log.Logger) *Acquisition {
	a := &Acquisition{
		io:          io,
		path:        path,
		clock:       clock,
		log:         logger,
		mclkHz:      cfg.MasterClockHz,
		searchRange: cfg.SearchRangeHz,
		state:       Stopped{},
	}
	a.ber.reset()
	return a
}

func (a *Acquisition) setState(s State) {
	if a.state != s {
		a.log.Debug("acquisition", "from", a.state, "to", s)
	}
	a.state = s
}

// State returns the current state
func (a *Acquisition) State() State {
	return a.state
}

// Timeouts returns the budgets for the current symbol rate
func (a *Acquisition) Timeouts() frontend.Timeouts {
	if s, ok := a.state.(Searching); ok {
		return frontend.Timeouts{Demod: s.DemodTimeout, FEC: s.FECTimeout}
	}
	return timeoutsFor(a.sr)
}

// Signal returns what was found at the last lock
func (a *Acquisition) Signal() Signal {
	return a.signal
}

// TrackingOptimizations counts tracking passes since creation
func (a *Acquisition) TrackingOptimizations() int {
	return a.optimizations
}

// Start programs the symbol rate and carrier window and triggers a cold
// search. Out-of-range symbol rates fail before any register is written.
func (a *Acquisition) Start(sr uint32) error {
	if sr < MinSymbolRate || sr > MaxSymbolRate {
		return fmt.Errorf("%w: symbol rate %d outside %d..%d", frontend.ErrInvalidParameter, sr, MinSymbolRate, MaxSymbolRate)
	}
	to := timeoutsFor(sr)

	if err := a.io.write(regDMDISTATE, dmdStop); err != nil {
		return fmt.Errorf("failed to stop demod: %w", err)
	}
	a.setState(Stopped{})

	srw := uint16(uint64(sr) << 16 / uint64(a.mclkHz))
	win := searchWindowKHz(a.searchRange, sr)
	cfr := uint16(uint64(win) << 16 / uint64(a.mclkHz/1000))
	low := uint16(-int32(cfr))

	if err := a.io.update(regDMDCFGMD, cfgModeMask, cfgModeAuto); err != nil {
		return fmt.Errorf("failed to set search mode: %w", err)
	}
	err := a.io.writeList(registers.List{
		{Reg: regSFRINIT1, Val: uint8(srw >> 8)},
		{Reg: regSFRINIT0, Val: uint8(srw)},
		{Reg: regCFRUP1, Val: uint8(cfr >> 8)},
		{Reg: regCFRUP0, Val: uint8(cfr)},
		{Reg: regCFRLOW1, Val: uint8(low >> 8)},
		{Reg: regCFRLOW0, Val: uint8(low)},
		{Reg: regCFRINIT1, Val: 0},
		{Reg: regCFRINIT0, Val: 0},
		{Reg: regDMDISTATE, Val: dmdReset},
		{Reg: regDMDISTATE, Val: dmdColdStart},
	})
	if err != nil {
		return fmt.Errorf("failed to start search: %w", err)
	}

	a.sr = sr
	a.ber.reset()
	a.signal = Signal{}
	a.log.Debug("search", "sr", sr, "window_khz", win, "demod_timeout", to.Demod, "fec_timeout", to.FEC)
	a.setState(Searching{
		SymbolRate:   sr,
		DemodTimeout: to.Demod,
		FECTimeout:   to.FEC,
		StartedAt:    a.clock.Now(),
	})
	return nil
}

// readLock samples the lock indicators. known is the mode when locked;
// otherwise the mode comes from DMDSTATE.
func (a *Acquisition) readLock(known *Mode) (frontend.Status, Mode, error) {
	dmd, err := a.io.read(regDMDSTATE)
	if err != nil {
		return 0, 0, err
	}
	if dmd&dmdStateSearch == 0 {
		return 0, 0, nil
	}
	st := frontend.HasSignal
	ds, err := a.io.read(regDSTATUS)
	if err != nil {
		return 0, 0, err
	}
	if ds&dstatusLock == 0 {
		return st, 0, nil
	}
	st |= frontend.HasCarrier

	mode := ModeDVBS
	if dmd&dmdStateS2 != 0 {
		mode = ModeDVBS2
	}
	if known != nil {
		mode = *known
	}

	fecReg, fecBit := uint16(regVSTATUSVIT), uint8(vitLock)
	if mode == ModeDVBS2 {
		fecReg, fecBit = regPDELSTATUS1, pdelLock
	}
	fec, err := a.io.read(fecReg)
	if err != nil {
		return 0, 0, err
	}
	if fec&fecBit != 0 {
		st |= frontend.HasViterbi | frontend.HasSync | frontend.HasLock
	}
	return st, mode, nil
}

// Poll reports the current status and advances the state machine. It does
// not enforce the timeouts; that is the caller's job.
func (a *Acquisition) Poll() (frontend.Status, error) {
	switch s := a.state.(type) {
	case Stopped:
		return 0, frontend.ErrNotReady

	case Searching:
		st, mode, err := a.readLock(nil)
		if err != nil {
			return 0, err
		}
		if !st.Locked() {
			return st, nil
		}
		a.log.Info("lock", "mode", mode, "sr", s.SymbolRate, "after", a.clock.Now().Sub(s.StartedAt))
		a.setState(Locked{Mode: mode, FirstLock: true})
		return st, a.track()

	case Locked:
		st, _, err := a.readLock(&s.Mode)
		if err != nil {
			return 0, err
		}
		if !st.Locked() {
			a.log.Warn("lock lost", "mode", s.Mode, "status", st)
			if err := a.Start(a.sr); err != nil {
				return st, err
			}
			return st, nil
		}
		if s.FirstLock {
			return st, a.track()
		}
		return st, nil
	}
	return 0, fmt.Errorf("unknown state %v", a.state)
}

// track runs the tracking optimization once for a fresh lock. A failed pass
// leaves FirstLock set so the next poll retries it.
func (a *Acquisition) track() error {
	s, ok := a.state.(Locked)
	if !ok || !s.FirstLock {
		return nil
	}
	if err := a.optimize(s.Mode); err != nil {
		return fmt.Errorf("failed to optimize tracking: %w", err)
	}
	a.setState(Locked{Mode: s.Mode})
	return nil
}

func (a *Acquisition) errCtrl(mode Mode) uint8 {
	if mode == ModeDVBS2 {
		return errCtrlS2 | a.ber.scale
	}
	return errCtrlS | a.ber.scale
}

func (a *Acquisition) optimize(mode Mode) error {
	sig := Signal{Mode: mode}
	rsBypass := uint8(0x01)
	if a.path == 1 {
		rsBypass = 0x02
	}

	cfgMode := uint8(cfgModeS)
	if mode == ModeDVBS2 {
		cfgMode = cfgModeS2
	}
	if err := a.io.update(regDMDCFGMD, cfgModeMask, cfgMode); err != nil {
		return err
	}

	if mode == ModeDVBS2 {
		mc, err := a.io.read(regDMDMODCOD)
		if err != nil {
			return err
		}
		sig.ModCod = ModCod(mc&0x7C) >> 2
		sig.ShortFrames = mc&0x02 != 0
		sig.Pilots = mc&0x01 != 0

		// Reed-Solomon is not used in DVB-S2
		if err := a.updateShared(regTSTTSRS, rsBypass, rsBypass); err != nil {
			return err
		}
		if !sig.ShortFrames {
			aclc := carrierLoop(sig.ModCod, a.sr, sig.Pilots)
			reg := carrierLoopReg(sig.ModCod)
			if reg != regACLC2S2Q {
				if err := a.io.write(regACLC2S2Q, 0x2A); err != nil {
					return err
				}
			}
			if err := a.io.write(reg, aclc); err != nil {
				return err
			}
			a.log.Debug("carrier loop", "modcod", sig.ModCod, "pilots", sig.Pilots, "bucket", BucketFor(a.sr), "aclc", fmt.Sprintf("0x%02X", aclc))
		}
	} else {
		pun, err := a.io.read(regVITCURPUN)
		if err != nil {
			return err
		}
		sig.Puncture = pun & 0x1F
		if err := a.updateShared(regTSTTSRS, rsBypass, 0); err != nil {
			return err
		}
	}

	// restart the packet error counters and the BER window
	a.ber.reset()
	err := a.io.writeList(registers.List{
		{Reg: regPDELCTRL2, Val: 0x01},
		{Reg: regPDELCTRL2, Val: 0x00},
		{Reg: regFBERCPT4, Val: 0x00},
		{Reg: regERRCTRL1, Val: a.errCtrl(mode)},
	})
	if err != nil {
		return err
	}

	a.signal = sig
	a.optimizations++
	a.log.Info("tracking", "mode", mode, "modcod", sig.ModCod, "pilots", sig.Pilots, "short", sig.ShortFrames)
	return nil
}

func (a *Acquisition) updateShared(reg uint16, mask, v uint8) error {
	cur, err := a.io.dev.ReadReg(reg)
	if err != nil {
		return err
	}
	return a.io.dev.WriteReg(reg, cur&^mask|v&mask)
}

// Sleep stops the demodulator. It applies in every state.
func (a *Acquisition) Sleep() error {
	a.setState(Stopped{})
	if err := a.io.write(regDMDISTATE, dmdStop); err != nil {
		return fmt.Errorf("failed to stop demod: %w", err)
	}
	return nil
}

// PollBER reads the error counter. While it is still integrating the last
// value is returned unchanged.
func (a *Acquisition) PollBER() (frontend.BER, error) {
	var mode Mode
	switch s := a.state.(type) {
	case Stopped:
		return frontend.BER{}, frontend.ErrNotReady
	case Searching:
		return a.ber.value(), nil
	case Locked:
		mode = s.Mode
	}

	b, err := a.io.readN(regERRCNT12, 3)
	if err != nil {
		return frontend.BER{}, err
	}
	if b[0]&berNotReady != 0 {
		return a.ber.value(), nil
	}
	count := uint32(b[0]&0x7F)<<16 | uint32(b[1])<<8 | uint32(b[2])

	den := a.ber.bitWindow()
	if mode == ModeDVBS2 {
		den = a.ber.frameWindow(a.signal.ModCod, a.signal.ShortFrames)
	}
	if a.ber.update(count, den) {
		a.log.Debug("ber scale", "count", count, "scale", a.ber.scale)
		if err := a.io.write(regERRCTRL1, a.errCtrl(mode)); err != nil {
			return a.ber.value(), err
		}
	}
	return a.ber.value(), nil
}

// ReadSNR returns C/N in 0.1 dB. It is 0 until lock.
func (a *Acquisition) ReadSNR() (int32, error) {
	s, ok := a.state.(Locked)
	if !ok {
		if _, stopped := a.state.(Stopped); stopped {
			return 0, frontend.ErrNotReady
		}
		return 0, nil
	}
	reg, table := uint16(regNNOSDATAT1), snrS1
	if s.Mode == ModeDVBS2 {
		reg, table = regNNOSPLHT1, snrS2
	}
	b, err := a.io.readN(reg, 2)
	if err != nil {
		return 0, err
	}
	return lookup(table, uint32(b[0])<<8|uint32(b[1])), nil
}

// SignalLevel returns the input power in 0.01 dBm
func (a *Acquisition) SignalLevel() (int32, error) {
	if _, stopped := a.state.(Stopped); stopped {
		return 0, frontend.ErrNotReady
	}
	b, err := a.io.readN(regPOWERI, 2)
	if err != nil {
		return 0, err
	}
	i, q := uint32(b[0]), uint32(b[1])
	return lookup(padc, i*i+q*q) + padcOffset, nil
}

// ReadSignalStrength scales SignalLevel to 0..65535 across the table range
func (a *Acquisition) ReadSignalStrength() (uint16, error) {
	level, err := a.SignalLevel()
	if err != nil {
		return 0, err
	}
	floor := padc[len(padc)-1].value + padcOffset
	ceil := padc[0].value + padcOffset
	return uint16(int64(level-floor) * 0xFFFF / int64(ceil-floor)), nil
}
