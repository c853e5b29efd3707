package r848

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/herlein/godvb/pkg/registers"
)

// Simulator is an in-memory R848 on a bus of its own. The PLL locks once the
// VCO bias is high enough, the IMR ADC reads a bowl around a hidden optimum
// per bin, and the filter ADC drops at a set code.
type Simulator struct {
	mu   sync.Mutex
	Addr uint16

	// XtalLockDrive is the lowest crystal drive that locks, one entry per
	// check run; the last entry repeats
	XtalLockDrive []uint8

	// PLLLockBias is the lowest VCO bias code at which the PLL locks
	PLLLockBias uint8

	// IMROptimum is the point of least image leakage per bin
	IMROptimum [NumIMRBins]Point

	// FilterDropCode is the first filter code reading low; 0 never drops
	FilterDropCode uint8

	// Err fails every transaction when set
	Err error

	regs     [regBase + regCount]uint8
	xtalRuns int
	writes   int
	reads    int
}

// NewSimulator returns a simulator with a healthy crystal and PLL
func NewSimulator() *Simulator {
	s := &Simulator{
		Addr:          DefaultAddr,
		XtalLockDrive: []uint8{3},
		IMROptimum: [NumIMRBins]Point{
			{Gain: 0x04, Phase: 0x22, IQCap: 1},
			{Gain: 0x03, Phase: 0x21, IQCap: 0},
			{Gain: 0x02, Phase: 0x22, IQCap: 1},
			{Gain: 0x03, Phase: 0x22, IQCap: 1},
			{Gain: 0x03, Phase: 0x23, IQCap: 2},
		},
		FilterDropCode: 7,
	}
	copy(s.regs[regBase:], chipDefaults[:])
	return s
}

func (s *Simulator) String() string {
	return fmt.Sprintf("r848sim@0x%02X", s.Addr)
}

// Tx implements transport.Bus. Writes carry the start register in w[0];
// reads always start at R0.
func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if addr != s.Addr {
		return fmt.Errorf("no ack from 0x%02X", addr)
	}
	if len(w) > 0 {
		reg := int(w[0])
		for i, v := range w[1:] {
			if reg+i >= len(s.regs) {
				return fmt.Errorf("write past R%d", len(s.regs)-1)
			}
			s.write(uint8(reg+i), v)
		}
		s.writes++
	}
	if len(r) > 0 {
		for i := range r {
			r[i] = bits.Reverse8(s.status(i))
		}
		s.reads++
	}
	return nil
}

func (s *Simulator) write(reg, v uint8) {
	if reg == fXtalCheck.Reg && s.regs[reg]&fXtalCheck.Mask == 0 && v&fXtalCheck.Mask != 0 {
		s.xtalRuns++
	}
	s.regs[reg] = v
}

func (s *Simulator) get(f registers.Field) uint8 {
	return (s.regs[f.Reg] & f.Mask) >> f.Shift
}

func (s *Simulator) status(i int) uint8 {
	switch i {
	case rdChipID:
		return ChipID
	case rdADC:
		return s.adc()
	case rdPLL:
		return s.pll()
	}
	return 0
}

func signedCoord(c uint8) int {
	m := int(c & imrMagMask)
	if c&imrPathI != 0 {
		return m
	}
	return -m
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (s *Simulator) adc() uint8 {
	switch {
	case s.get(fIMREnable) == 1 && s.get(fRingEnable) == 1:
		bin := int(s.get(fRingDiv))
		if bin >= NumIMRBins {
			return adcMask
		}
		opt := s.IMROptimum[bin]
		v := 2 +
			3*absInt(signedCoord(s.get(fIMRGain))-signedCoord(opt.Gain)) +
			3*absInt(signedCoord(s.get(fIMRPhase))-signedCoord(opt.Phase)) +
			2*absInt(int(s.get(fIQCap))-int(opt.IQCap))
		return uint8(min(v, adcMask))
	case s.get(fFiltCal) == 1:
		if s.FilterDropCode != 0 && s.get(fFiltCode) >= s.FilterDropCode {
			return 12
		}
		return 40
	}
	return 24
}

func (s *Simulator) pll() uint8 {
	const band = 0x28
	var locked bool
	if s.get(fXtalCheck) == 1 {
		idx := min(max(s.xtalRuns-1, 0), len(s.XtalLockDrive)-1)
		locked = idx >= 0 && s.get(fXtalDrive) >= s.XtalLockDrive[idx]
	} else {
		locked = s.get(fVCOBias) >= s.PLLLockBias
	}
	if locked {
		return band | pllLockBit
	}
	return band
}

// Reg returns the current value of a register
func (s *Simulator) Reg(reg uint8) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// field returns the current value of a named field
func (s *Simulator) field(f registers.Field) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(f)
}

// Counts returns the number of write and read transactions seen
func (s *Simulator) Counts() (writes, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes, s.reads
}
