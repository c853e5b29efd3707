// Package usbbridge talks to the I2C master inside TBS USB DVB adapters. Every
// I2C transaction is carried by vendor control transfers on EP0, so the chips
// behind the bridge can be driven with the same transport as a host bus.
package usbbridge

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/gousb"

	"github.com/herlein/godvb/pkg/transport"
)

// controller is the part of *gousb.Device the bridge needs
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// Bridge is an opened TBS adapter. It implements transport.BusCloser.
type Bridge struct {
	usbDevice *gousb.Device
	ctrl      controller
	clock     transport.Clock
	log       *log.Logger
	mu        sync.Mutex

	Serial       string
	Manufacturer string
	Product      string
	ProductID    uint16
	Bus          int
	Address      int
}

var _ transport.BusCloser = (*Bridge)(nil)

// FindAllDevices opens every connected bridge
func FindAllDevices(ctx *gousb.Context) ([]*Bridge, error) {
	usbDevices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := ProductNames[uint16(desc.Product)]
		return desc.Vendor == gousb.ID(VendorID) && ok
	})
	if err != nil && len(usbDevices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	bridges := make([]*Bridge, 0, len(usbDevices))
	for _, usbDev := range usbDevices {
		bridges = append(bridges, wrapDevice(usbDev))
	}
	return bridges, nil
}

func wrapDevice(usbDev *gousb.Device) *Bridge {
	manufacturer, _ := usbDev.Manufacturer()
	product, _ := usbDev.Product()
	serial, _ := usbDev.SerialNumber()

	desc := usbDev.Desc
	return &Bridge{
		usbDevice:    usbDev,
		ctrl:         usbDev,
		clock:        transport.SystemClock{},
		log:          log.Default().WithPrefix("usbbridge"),
		Serial:       serial,
		Manufacturer: manufacturer,
		Product:      product,
		ProductID:    uint16(desc.Product),
		Bus:          desc.Bus,
		Address:      desc.Address,
	}
}

// SetLogger replaces the bridge logger
func (b *Bridge) SetLogger(l *log.Logger) {
	b.log = l
}

// Close releases the USB device
func (b *Bridge) Close() error {
	if b.usbDevice != nil {
		return b.usbDevice.Close()
	}
	return nil
}

// Reset performs a USB port reset
func (b *Bridge) Reset() error {
	if b.usbDevice == nil {
		return nil
	}
	if err := b.usbDevice.Reset(); err != nil {
		return fmt.Errorf("failed to reset %s: %w", b, err)
	}
	return nil
}

// String returns the adapter name and its USB location
func (b *Bridge) String() string {
	name := ProductNames[b.ProductID]
	if name == "" {
		name = fmt.Sprintf("%04x:%04x", VendorID, b.ProductID)
	}
	return fmt.Sprintf("%s@%d:%d", name, b.Bus, b.Address)
}

func (b *Bridge) out(request uint8, data []byte) error {
	if _, err := b.ctrl.Control(RequestTypeVendorOut, request, 0, 0, data); err != nil {
		return fmt.Errorf("%w: request 0x%02X: %w", transport.ErrIO, request, err)
	}
	return nil
}

func (b *Bridge) in(request uint8, data []byte) error {
	n, err := b.ctrl.Control(RequestTypeVendorIn, request, 0, 0, data)
	if err != nil {
		return fmt.Errorf("%w: request 0x%02X: %w", transport.ErrIO, request, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: request 0x%02X: short read %d of %d", transport.ErrIO, request, n, len(data))
	}
	return nil
}

// Tx implements transport.Bus. A write-only transaction is one control
// transfer; a read sets up the transfer and then fetches the data.
func (b *Bridge) Tx(addr uint16, w, r []byte) error {
	if len(w)+2 > MaxTransfer || len(r) > MaxTransfer {
		return fmt.Errorf("%w: write %d read %d", ErrTooLong, len(w), len(r))
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(r) == 0 {
		buf := make([]byte, 0, len(w)+2)
		buf = append(buf, byte(len(w)+1), byte(addr<<1))
		buf = append(buf, w...)
		return b.out(ReqI2CWrite, buf)
	}

	buf := make([]byte, 0, len(w)+2)
	if len(w) == 0 {
		buf = append(buf, byte(len(r)), byte(addr<<1)|0x01)
	} else {
		buf = append(buf, byte(len(r)), byte(addr<<1))
		buf = append(buf, w...)
	}
	if err := b.out(ReqI2CReadSetup, buf); err != nil {
		return err
	}
	b.clock.Sleep(ReadSetupGap)
	return b.in(ReqI2CReadData, r)
}

// SetGPIO drives one of the bridge GPIO lines
func (b *Bridge) SetGPIO(pin uint8, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	level := byte(0)
	if high {
		level = 1
	}
	return b.out(ReqGPIO, []byte{pin, level})
}

// ResetDemod pulses the demodulator reset line
func (b *Bridge) ResetDemod() error {
	if err := b.SetGPIO(GPIODemodReset, false); err != nil {
		return fmt.Errorf("failed to assert reset: %w", err)
	}
	b.clock.Sleep(ResetPulse)
	if err := b.SetGPIO(GPIODemodReset, true); err != nil {
		return fmt.Errorf("failed to release reset: %w", err)
	}
	b.clock.Sleep(ResetSettle)
	b.log.Debug("demod reset", "bridge", b)
	return nil
}

// SetLNBPower switches the LNB supply
func (b *Bridge) SetLNBPower(on bool) error {
	return b.SetGPIO(GPIOLNBPower, on)
}
