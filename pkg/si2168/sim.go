package si2168

import (
	"fmt"
	"sync"
)

// Simulator is an in-memory Si21xx answering the command protocol. Each write
// queues a command and reads return its reply.
type Simulator struct {
	mu   sync.Mutex
	Addr uint16

	Revision HardwareRevision

	// BusyPolls is how many reads of each reply come back without the ready bit
	BusyPolls int

	// FailCommand sets the error bit in replies to this command byte
	FailCommand byte

	Locked      bool
	CarrierOnly bool

	// CNR is in quarter dB
	CNR uint8

	BERMantissa uint8
	BERExponent uint8
	SSI         uint8

	// Err fails every transaction when set
	Err error

	pending  byte
	busy     int
	commands [][]byte
	props    map[uint16]uint16
	powered  bool
	gateOpen bool
}

// NewSimulator returns an Si2168-A20 at the default address with a locked
// signal
func NewSimulator() *Simulator {
	return &Simulator{
		Addr:        DefaultAddr,
		Revision:    RevA20,
		Locked:      true,
		CNR:         60,
		BERMantissa: 3,
		BERExponent: 7,
		SSI:         70,
		props:       make(map[uint16]uint16),
	}
}

func (s *Simulator) String() string {
	return fmt.Sprintf("si2168sim@0x%02X", s.Addr)
}

// Tx implements transport.Bus
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
		s.command(w)
	}
	if len(r) > 0 {
		s.reply(r)
	}
	return nil
}

func (s *Simulator) command(w []byte) {
	s.commands = append(s.commands, append([]byte(nil), w...))
	s.pending = w[0]
	s.busy = s.BusyPolls
	switch {
	case w[0] == 0x14 && len(w) >= 6:
		s.props[uint16(w[2])|uint16(w[3])<<8] = uint16(w[4]) | uint16(w[5])<<8
	case w[0] == 0xC0 && len(w) >= 3 && w[1] == 0x0D:
		s.gateOpen = w[2] == 0x01
	case w[0] == 0xC0 && len(w) >= 3 && w[1] == 0x06:
		s.powered = true
	case w[0] == 0xB0:
		s.powered = false
	}
}

func (s *Simulator) reply(r []byte) {
	clear(r)
	if s.busy > 0 {
		s.busy--
		return
	}
	r[0] = 0x80
	if s.FailCommand != 0 && s.pending == s.FailCommand {
		r[0] |= 0x40
	}
	set := func(i int, v byte) {
		if i < len(r) {
			r[i] = v
		}
	}
	switch s.pending {
	case 0x02:
		set(1, s.Revision.Letter)
		set(2, s.Revision.Part)
		set(3, s.Revision.Major)
		set(4, s.Revision.Minor)
	case 0x11:
		set(6, s.Revision.Major)
		set(7, s.Revision.Minor)
		set(8, 2)
		set(9, s.Revision.Letter-'@')
	case 0xA0, 0x50, 0x90, 0x98, 0xA4, 0x60, 0x70:
		switch {
		case s.Locked:
			set(2, 0x06)
			set(3, s.CNR)
		case s.CarrierOnly:
			set(2, 0x02)
		}
	case 0x82:
		set(1, s.BERExponent)
		set(2, s.BERMantissa)
	case 0x8B:
		set(1, s.SSI)
	}
}

// Commands returns every command written so far
func (s *Simulator) Commands() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.commands...)
}

// Property returns the last value set for a property
func (s *Simulator) Property(prop uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[prop]
	return v, ok
}

// Powered reports whether the chip has been powered up and not down since
func (s *Simulator) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// GateOpen reports the tuner pass-through state
func (s *Simulator) GateOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateOpen
}
