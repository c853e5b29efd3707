package transport

import (
	"fmt"
	"time"
)

// DefaultCommandTimeout bounds ExecuteCommand when no timeout is given
const DefaultCommandTimeout = 70 * time.Millisecond

// Device addresses one chip on a bus
type Device struct {
	Bus  Bus
	Addr uint16

	// RegWidth is the size of the register address in bytes (1 or 2).
	// 16-bit addresses go out big-endian.
	RegWidth int

	// Clock drives command polling; nil means SystemClock
	Clock Clock
}

// NewDevice returns a device with 8-bit register addressing
func NewDevice(bus Bus, addr uint16) *Device {
	return &Device{Bus: bus, Addr: addr, RegWidth: 1}
}

func (d *Device) clock() Clock {
	if d.Clock == nil {
		return SystemClock{}
	}
	return d.Clock
}

func (d *Device) regBytes(reg uint16) []byte {
	if d.RegWidth == 2 {
		return []byte{byte(reg >> 8), byte(reg)}
	}
	return []byte{byte(reg)}
}

// Write writes data starting at register reg
func (d *Device) Write(reg uint16, data []byte) error {
	w := append(d.regBytes(reg), data...)
	if err := d.Bus.Tx(d.Addr, w, nil); err != nil {
		return wrapIO(err, fmt.Sprintf("write reg 0x%04X at 0x%02X", reg, d.Addr))
	}
	return nil
}

// WriteReg writes a single register
func (d *Device) WriteReg(reg uint16, value uint8) error {
	return d.Write(reg, []byte{value})
}

// Read reads n bytes starting at register reg
func (d *Device) Read(reg uint16, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.Bus.Tx(d.Addr, d.regBytes(reg), r); err != nil {
		return nil, wrapIO(err, fmt.Sprintf("read reg 0x%04X at 0x%02X", reg, d.Addr))
	}
	return r, nil
}

// ReadReg reads a single register
func (d *Device) ReadReg(reg uint16) (uint8, error) {
	r, err := d.Read(reg, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteRaw sends bytes with no register prefix
func (d *Device) WriteRaw(data []byte) error {
	if err := d.Bus.Tx(d.Addr, data, nil); err != nil {
		return wrapIO(err, fmt.Sprintf("write at 0x%02X", d.Addr))
	}
	return nil
}

// ReadRaw reads n bytes with no register prefix
func (d *Device) ReadRaw(n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.Bus.Tx(d.Addr, nil, r); err != nil {
		return nil, wrapIO(err, fmt.Sprintf("read at 0x%02X", d.Addr))
	}
	return r, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("%s@0x%02X", d.Bus, d.Addr)
}
