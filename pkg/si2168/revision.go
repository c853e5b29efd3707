package si2168

import (
	"fmt"
	"time"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/transport"
)

// Parts reported by PART_INFO
const (
	PartSi2168 = 68
	PartSi2183 = 83
)

// HardwareRevision identifies the silicon as reported by PART_INFO
type HardwareRevision struct {
	Part   uint8
	Letter byte
	Major  byte
	Minor  byte
}

// Known revisions
var (
	RevA20 = HardwareRevision{Part: PartSi2168, Letter: 'A', Major: '2', Minor: '0'}
	RevA30 = HardwareRevision{Part: PartSi2168, Letter: 'A', Major: '3', Minor: '0'}
	RevB40 = HardwareRevision{Part: PartSi2168, Letter: 'B', Major: '4', Minor: '0'}
	RevD60 = HardwareRevision{Part: PartSi2168, Letter: 'D', Major: '6', Minor: '0'}
	RevB60 = HardwareRevision{Part: PartSi2183, Letter: 'B', Major: '6', Minor: '0'}
)

func (r HardwareRevision) String() string {
	return fmt.Sprintf("Si21%02d-%c%c%c", r.Part, r.Letter, r.Major, r.Minor)
}

// ChipID packs the revision the way the part number is printed
func (r HardwareRevision) ChipID() uint32 {
	return uint32(r.Letter)<<24 | uint32(r.Part)<<16 | uint32(r.Major)<<8 | uint32(r.Minor)
}

// Multistandard reports whether the part also has the DVB-S/S2, ISDB-T and
// J.83B cores
func (r HardwareRevision) Multistandard() bool {
	return r.Part == PartSi2183
}

// parsePartInfo decodes a PART_INFO reply
func parsePartInfo(b []byte) (HardwareRevision, error) {
	if len(b) < 5 {
		return HardwareRevision{}, fmt.Errorf("%w: PART_INFO reply of %d bytes", frontend.ErrIO, len(b))
	}
	rev := HardwareRevision{Letter: b[1], Part: b[2], Major: b[3], Minor: b[4]}
	if _, ok := revisionInit[rev]; !ok {
		return rev, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
	}
	return rev, nil
}

// command is one entry of a command list: the bytes to send and the reply
// length to wait for (0 sends without waiting)
type command struct {
	args  []byte
	rlen  int
	label string
}

func cmd(label string, rlen int, args ...byte) command {
	return command{args: args, rlen: rlen, label: label}
}

// setProperty builds SET_PROPERTY for a 16-bit property and value
func setProperty(prop, val uint16) command {
	return cmd(fmt.Sprintf("property 0x%04X", prop), 4,
		0x14, 0x00, byte(prop), byte(prop>>8), byte(val), byte(val>>8))
}

// Property numbers
const (
	propDDMode         = 0x100A
	propDDTSMode       = 0x1001
	propDDTSSetup      = 0x1009
	propDDTSSetup2     = 0x1008
	propDDTSFreq       = 0x100D
	propDVBCSymbolRate = 0x1102
	propDVBSSymbolRate = 0x1401
	propDVBTHierarchy  = 0x1201
	propMCNSConstell   = 0x1601
	propDDSSIRange     = 0x1007
	propEventConfig    = 0x0301
)

// Common commands
var (
	cmdPowerUpReset = cmd("power up reset", 0, 0xC0, 0x12, 0x00, 0x0C, 0x00, 0x0D, 0x16, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	cmdPowerUp      = cmd("power up", 1, 0xC0, 0x06, 0x01, 0x0F, 0x00, 0x20, 0x20, 0x01)
	cmdPartInfo     = cmd("part info", 13, 0x02)
	cmdStartFW      = cmd("start firmware", 1, 0x01, 0x01)
	cmdGetRevision  = cmd("get revision", 10, 0x11)
	cmdRestart      = cmd("restart", 1, 0x85)
	cmdPowerDown    = cmd("power down", 0, 0xB0)
	cmdGateOpen     = cmd("gate open", 0, 0xC0, 0x0D, 0x01)
	cmdGateClose    = cmd("gate close", 0, 0xC0, 0x0D, 0x00)
	cmdBER          = cmd("ber", 3, 0x82, 0x00)
	cmdSSISQI       = cmd("ssi sqi", 3, 0x8B, 0x00)
	cmdMPDefaults   = cmd("mp defaults", 5, 0x88, 0x02, 0x02, 0x02, 0x02)
)

// revisionInit is the bring-up list run after the part is identified. The
// ROM of every revision is started the same way; what differs is the TS and
// event setup the ROM firmware expects.
var revisionInit = map[HardwareRevision][]command{
	RevA20: {
		cmdStartFW,
		setProperty(propDDTSMode, 0x0010),
		setProperty(propDDTSSetup, 0x08E3),
		setProperty(propEventConfig, 0x000C),
	},
	RevA30: {
		cmdStartFW,
		setProperty(propDDTSMode, 0x0010),
		setProperty(propDDTSSetup, 0x08E3),
		setProperty(propDDTSSetup2, 0x05D7),
		setProperty(propEventConfig, 0x000C),
	},
	RevB40: {
		cmdStartFW,
		setProperty(propDDTSMode, 0x0010),
		setProperty(propDDTSSetup, 0x18E3),
		setProperty(propDDTSSetup2, 0x15D7),
		setProperty(propDDTSFreq, 0x0000),
		setProperty(propEventConfig, 0x000C),
	},
	RevD60: {
		cmdStartFW,
		setProperty(propDDTSMode, 0x0010),
		setProperty(propDDTSSetup, 0x18E3),
		setProperty(propDDTSSetup2, 0x15D7),
		setProperty(propDDTSFreq, 0x0000),
		setProperty(propEventConfig, 0x000C),
		setProperty(propDDSSIRange, 0x0000),
	},
	RevB60: {
		cmdStartFW,
		setProperty(propDDTSMode, 0x0010),
		setProperty(propDDTSSetup, 0x18E3),
		setProperty(propDDTSSetup2, 0x15D7),
		setProperty(propDDTSFreq, 0x0000),
		setProperty(propEventConfig, 0x000C),
		setProperty(propDDSSIRange, 0x0000),
	},
}

// applyCommands runs a command list in order and stops at the first error.
// The chip must answer each command with the ready bit set and the error bit
// clear.
func applyCommands(dev *transport.Device, timeout time.Duration, list []command) error {
	for _, c := range list {
		if _, err := execute(dev, timeout, c); err != nil {
			return err
		}
	}
	return nil
}

// commandPoll spaces the ready-bit polls of a running command
const commandPoll = time.Millisecond

func execute(dev *transport.Device, timeout time.Duration, c command) ([]byte, error) {
	opts := transport.CommandOptions{CheckErrorBit: true, PollInterval: commandPoll}
	r, err := dev.ExecuteCommand(c.args, c.rlen, timeout, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", c.label, err)
	}
	return r, nil
}
