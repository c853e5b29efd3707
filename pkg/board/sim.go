package board

import (
	"fmt"

	"github.com/herlein/godvb/pkg/config"
	"github.com/herlein/godvb/pkg/r848"
	"github.com/herlein/godvb/pkg/si2168"
	"github.com/herlein/godvb/pkg/stv0910"
	"github.com/herlein/godvb/pkg/transport"
)

// Sims is a simulated board: the chip simulators sharing one bus, routed by
// address. The tuner answers whether or not the gate is open.
type Sims struct {
	STV0910 *stv0910.Simulator
	Si2168  *si2168.Simulator
	R848    *r848.Simulator

	chips map[uint16]transport.Bus
}

// NewSims places simulators at the addresses cfg names
func NewSims(cfg *config.BoardConfig) *Sims {
	s := &Sims{chips: make(map[uint16]transport.Bus)}
	switch cfg.Demod.Type {
	case config.DemodSTV0910:
		s.STV0910 = stv0910.NewSimulator()
		s.STV0910.Addr = cfg.STV0910().Addr
		s.chips[s.STV0910.Addr] = s.STV0910
	case config.DemodSi2168:
		s.Si2168 = si2168.NewSimulator()
		s.Si2168.Addr = cfg.Si2168().Addr
		s.chips[s.Si2168.Addr] = s.Si2168
	}
	s.R848 = r848.NewSimulator()
	s.R848.Addr = cfg.R848().Addr
	s.chips[s.R848.Addr] = s.R848
	return s
}

func (s *Sims) String() string {
	return "sim"
}

// Tx implements transport.Bus
func (s *Sims) Tx(addr uint16, w, r []byte) error {
	chip, ok := s.chips[addr]
	if !ok {
		return fmt.Errorf("no ack from 0x%02X", addr)
	}
	return chip.Tx(addr, w, r)
}
