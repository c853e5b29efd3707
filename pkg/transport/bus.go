// Package transport provides register-level access to chips sitting on an I2C
// (or I2C-over-USB) bus.
package transport

import (
	"fmt"
	"sync"
)

// Bus performs one combined write-then-read transaction with the chip at addr.
// Either w or r may be empty. periph.io i2c.Bus implementations satisfy it.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
	String() string
}

// BusCloser is a Bus that owns an underlying handle
type BusCloser interface {
	Bus
	Close() error
}

// LockedBus serializes access to a bus shared by several chip instances
type LockedBus struct {
	mu  sync.Mutex
	bus Bus
}

// NewLocked wraps bus with a mutex
func NewLocked(bus Bus) *LockedBus {
	return &LockedBus{bus: bus}
}

// Tx runs a single transaction under the bus lock
func (l *LockedBus) Tx(addr uint16, w, r []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bus.Tx(addr, w, r)
}

func (l *LockedBus) String() string {
	return fmt.Sprintf("locked(%s)", l.bus)
}
