package stv0910

import (
	"fmt"
	"sync"
)

// PathScript describes what one simulated demodulator path receives
type PathScript struct {
	// LockAfter is the number of DMDSTATE reads after a cold start before
	// the path locks by itself; negative waits for SetLocked
	LockAfter int

	Mode        Mode
	ModCod      ModCod
	Pilots      bool
	ShortFrames bool
	Puncture    uint8

	// Noise is the NNOS reading reported while locked
	Noise uint16

	// PowerI and PowerQ are the ADC power readings
	PowerI, PowerQ uint8
}

// Simulator is an in-memory STV0910 on a bus of its own. Registers read back
// what was written; the lock indicators follow the per-path scripts.
type Simulator struct {
	mu   sync.Mutex
	Addr uint16

	// Paths are indexed like Config.Path
	Paths [2]PathScript

	// Err fails every transaction when set
	Err error

	regs    map[uint16]uint8
	history map[uint16][]uint8
	polls   [2]int
	armed   [2]bool
	writes  int
}

// NewSimulator returns a simulator whose paths lock on the third poll after
// a search starts
func NewSimulator() *Simulator {
	s := &Simulator{
		Addr:    DefaultAddr,
		regs:    map[uint16]uint8{regMID: ChipID},
		history: make(map[uint16][]uint8),
	}
	for i := range s.Paths {
		s.Paths[i] = PathScript{
			LockAfter: 2,
			Mode:      ModeDVBS2,
			ModCod:    ModCod8PSK35 + 1,
			Pilots:    true,
			Noise:     2535,
			PowerI:    120,
			PowerQ:    110,
		}
	}
	return s
}

func (s *Simulator) String() string {
	return fmt.Sprintf("stv0910sim@0x%02X", s.Addr)
}

// Tx implements transport.Bus with 16-bit big-endian register addresses
func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if addr != s.Addr {
		return fmt.Errorf("no ack from 0x%02X", addr)
	}
	if len(w) < 2 {
		return fmt.Errorf("short register address (%d bytes)", len(w))
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	for i, v := range w[2:] {
		s.write(reg+uint16(i), v)
	}
	if len(w) > 2 {
		s.writes++
	}
	for i := range r {
		r[i] = s.read(reg + uint16(i))
	}
	return nil
}

// pathOf maps a register to its path and P2 address; ok is false for shared
// registers
func pathOf(reg uint16) (path int, p2 uint16, ok bool) {
	switch {
	case reg >= 0xF400 && reg < 0xF600:
		return 0, reg - p1Offset, true
	case reg >= 0xF200 && reg < 0xF400:
		return 1, reg, true
	}
	return 0, 0, false
}

func (s *Simulator) write(reg uint16, v uint8) {
	s.regs[reg] = v
	s.history[reg] = append(s.history[reg], v)

	path, p2, ok := pathOf(reg)
	if !ok || p2 != regDMDISTATE {
		return
	}
	switch v {
	case dmdColdStart:
		s.polls[path] = 0
		s.armed[path] = true
		s.setLocked(path, false)
	case dmdStop:
		s.armed[path] = false
		s.setLocked(path, false)
	}
}

func (s *Simulator) read(reg uint16) uint8 {
	path, p2, ok := pathOf(reg)
	if ok && p2 == regDMDSTATE && s.armed[path] {
		s.polls[path]++
		if after := s.Paths[path].LockAfter; after >= 0 && s.polls[path] > after {
			s.armed[path] = false
			s.setLocked(path, true)
		}
	}
	return s.regs[reg]
}

func (s *Simulator) off(path int) uint16 {
	if path == 0 {
		return p1Offset
	}
	return 0
}

func (s *Simulator) setLocked(path int, locked bool) {
	off := s.off(path)
	if !locked {
		for _, r := range []uint16{regDMDSTATE, regDSTATUS, regPDELSTATUS1, regVSTATUSVIT} {
			s.regs[r+off] = 0
		}
		return
	}
	p := s.Paths[path]
	dmd := uint8(dmdStateSearch)
	noiseReg := uint16(regNNOSDATAT1)
	if p.Mode == ModeDVBS2 {
		dmd |= dmdStateS2
		noiseReg = regNNOSPLHT1
		s.regs[regPDELSTATUS1+off] = pdelLock
	} else {
		s.regs[regVSTATUSVIT+off] = vitLock
	}
	s.regs[regDMDSTATE+off] = dmd
	s.regs[regDSTATUS+off] = dstatusLock

	mc := uint8(p.ModCod) << 2
	if p.ShortFrames {
		mc |= 0x02
	}
	if p.Pilots {
		mc |= 0x01
	}
	s.regs[regDMDMODCOD+off] = mc
	s.regs[regVITCURPUN+off] = p.Puncture
	s.regs[noiseReg+off] = uint8(p.Noise >> 8)
	s.regs[noiseReg+off+1] = uint8(p.Noise)
	s.regs[regPOWERI+off] = p.PowerI
	s.regs[regPOWERQ+off] = p.PowerQ
}

// SetLocked forces the lock indicators of a path
func (s *Simulator) SetLocked(path int, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(path, locked)
}

// SetCarrierOnly reports carrier lock without FEC lock
func (s *Simulator) SetCarrierOnly(path int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(path, true)
	off := s.off(path)
	s.regs[regPDELSTATUS1+off] = 0
	s.regs[regVSTATUSVIT+off] = 0
}

// SetErrorCount loads the error counter of a path. ready false sets the
// still-integrating flag.
func (s *Simulator) SetErrorCount(path int, count uint32, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := s.off(path)
	b0 := uint8(count>>16) & 0x7F
	if !ready {
		b0 |= berNotReady
	}
	s.regs[regERRCNT12+off] = b0
	s.regs[regERRCNT12+off+1] = uint8(count >> 8)
	s.regs[regERRCNT12+off+2] = uint8(count)
}

// Reg returns the current value of a register
func (s *Simulator) Reg(reg uint16) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// History returns every value written to a register, oldest first
func (s *Simulator) History(reg uint16) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.history[reg]...)
}

// Writes returns the number of write transactions seen
func (s *Simulator) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
