package usbbridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// DeviceSelector specifies how to identify a bridge
// Supported formats:
//   - ""           : Use first available device
//   - "serial"     : Match by serial number
//   - "bus:addr"   : Match by USB bus and address (e.g., "1:10")
//   - "#N"         : Use Nth device, 0-indexed (e.g., "#0", "#1")
type DeviceSelector string

// selector is a parsed DeviceSelector
type selector struct {
	index     int // -1 when unused
	serial    string
	bus, addr int
	byLoc     bool
}

func (s DeviceSelector) parse() (selector, error) {
	sel := string(s)
	switch {
	case sel == "":
		return selector{index: 0}, nil
	case strings.HasPrefix(sel, "#"):
		index, err := strconv.Atoi(sel[1:])
		if err != nil || index < 0 {
			return selector{}, fmt.Errorf("invalid device index: %s", sel)
		}
		return selector{index: index}, nil
	case strings.Contains(sel, ":"):
		parts := strings.SplitN(sel, ":", 2)
		bus, err := strconv.Atoi(parts[0])
		if err != nil {
			return selector{}, fmt.Errorf("invalid bus number: %s", parts[0])
		}
		addr, err := strconv.Atoi(parts[1])
		if err != nil {
			return selector{}, fmt.Errorf("invalid address number: %s", parts[1])
		}
		return selector{index: -1, bus: bus, addr: addr, byLoc: true}, nil
	}
	return selector{index: -1, serial: sel}, nil
}

// pick returns the position of the bridge the selector names
func (s selector) pick(bridges []*Bridge) (int, error) {
	if len(bridges) == 0 {
		return -1, ErrNoDevice
	}
	if s.index >= 0 {
		if s.index >= len(bridges) {
			return -1, fmt.Errorf("%w: index %d out of range (found %d devices)", ErrNoDevice, s.index, len(bridges))
		}
		return s.index, nil
	}
	found := -1
	for i, b := range bridges {
		match := b.Serial == s.serial
		if s.byLoc {
			match = b.Bus == s.bus && b.Address == s.addr
		}
		if !match {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("%w: serial %s; use bus:addr format (e.g., 1:10) or index format (e.g., #0)", ErrAmbiguous, s.serial)
		}
		found = i
	}
	if found < 0 {
		if s.byLoc {
			return -1, fmt.Errorf("%w: at bus %d address %d", ErrNoDevice, s.bus, s.addr)
		}
		return -1, fmt.Errorf("%w: with serial %s", ErrNoDevice, s.serial)
	}
	return found, nil
}

// SelectDevice opens the bridge matching the selector and closes the others
func SelectDevice(ctx *gousb.Context, sel DeviceSelector) (*Bridge, error) {
	parsed, err := sel.parse()
	if err != nil {
		return nil, err
	}
	bridges, err := FindAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	i, err := parsed.pick(bridges)
	for j, b := range bridges {
		if j != i {
			b.Close()
		}
	}
	if err != nil {
		return nil, err
	}
	return bridges[i], nil
}

// DeviceFlagUsage returns usage text for a device selector flag
func DeviceFlagUsage() string {
	return `Bridge selector. Formats:
    ""        - Use first available device
    "serial"  - Match by serial number
    "bus:addr"- Match by USB location (e.g., "1:10")
    "#N"      - Use Nth device, 0-indexed (e.g., "#0", "#1")`
}
