package r848

import (
	"fmt"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/registers"
)

// Standard selects IF, filter and band plan settings
type Standard uint8

const (
	StdDVBT6 Standard = iota
	StdDVBT7
	StdDVBT8
	StdDVBT2_6
	StdDVBT2_7
	StdDVBT2_8
	StdDVBC8
	StdDVBC6
	StdJ83B
	StdISDBT
	StdATSC
	StdDTMB
	StdDVBS
	numStandards
)

type standardInfo struct {
	name           string
	ifKHz          uint32
	filterCalIFKHz uint32
	bandwidth      uint8 // LPF code
	hpfCorner      uint8
	filterGap      uint8
	satellite      bool
	plan           *bandPlan
	regs           registers.List
}

var terrestrialRegs = registers.List{{Reg: 13, Val: 0x00}, {Reg: 14, Val: 0x42}, {Reg: 15, Val: 0xC3}, {Reg: 30, Val: 0x48}, {Reg: 31, Val: 0x30}}
var cableRegs = registers.List{{Reg: 13, Val: 0x10}, {Reg: 14, Val: 0x52}, {Reg: 15, Val: 0xA3}, {Reg: 30, Val: 0x58}, {Reg: 31, Val: 0x34}}
var atscRegs = registers.List{{Reg: 13, Val: 0x00}, {Reg: 14, Val: 0x4A}, {Reg: 15, Val: 0xC3}, {Reg: 30, Val: 0x48}, {Reg: 31, Val: 0x38}}
var satRegs = registers.List{{Reg: 13, Val: 0x20}, {Reg: 14, Val: 0x02}, {Reg: 15, Val: 0x83}, {Reg: 30, Val: 0x08}, {Reg: 31, Val: 0x10}}

var standards = [numStandards]standardInfo{
	StdDVBT6:   {"DVB-T 6MHz", 3570, 7450, 2, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBT7:   {"DVB-T 7MHz", 4070, 8050, 1, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBT8:   {"DVB-T 8MHz", 4570, 8650, 0, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBT2_6: {"DVB-T2 6MHz", 3570, 7450, 2, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBT2_7: {"DVB-T2 7MHz", 4070, 8050, 1, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBT2_8: {"DVB-T2 8MHz", 4570, 8650, 0, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBC8:   {"DVB-C 8MHz", 5070, 9550, 0, 11, 6, false, &dtvPlan, cableRegs},
	StdDVBC6:   {"DVB-C 6MHz", 5070, 8100, 2, 11, 6, false, &dtvPlan, cableRegs},
	StdJ83B:    {"J.83B", 5070, 8100, 2, 11, 6, false, &dtvPlan, cableRegs},
	StdISDBT:   {"ISDB-T", 4063, 7200, 2, 9, 8, false, &dtvPlan, terrestrialRegs},
	StdATSC:    {"ATSC", 5070, 8100, 2, 10, 7, false, &atscPlan, atscRegs},
	StdDTMB:    {"DTMB", 4570, 8650, 0, 8, 8, false, &dtvPlan, terrestrialRegs},
	StdDVBS:    {"DVB-S", 0, 9550, 3, 0, 5, true, &satPlan, satRegs},
}

func (s Standard) info() *standardInfo {
	return &standards[s]
}

// Valid reports whether s names a known standard
func (s Standard) Valid() bool {
	return s < numStandards
}

func (s Standard) String() string {
	if !s.Valid() {
		return fmt.Sprintf("STD(%d)", uint8(s))
	}
	return standards[s].name
}

// IFKHz returns the IF the tuner delivers to the demodulator
func (s Standard) IFKHz() uint32 {
	return standards[s].ifKHz
}

// StandardFor maps a tune request to a tuner standard
func StandardFor(p frontend.Properties) (Standard, error) {
	bw := p.BandwidthHz
	pick := func(s6, s7, s8 Standard) (Standard, error) {
		switch bw {
		case 6_000_000:
			return s6, nil
		case 7_000_000:
			return s7, nil
		case 8_000_000, 0:
			return s8, nil
		}
		return 0, fmt.Errorf("%w: bandwidth %d Hz for %s", frontend.ErrInvalidParameter, bw, p.DeliverySystem)
	}

	switch p.DeliverySystem {
	case frontend.SysDVBT:
		return pick(StdDVBT6, StdDVBT7, StdDVBT8)
	case frontend.SysDVBT2:
		return pick(StdDVBT2_6, StdDVBT2_7, StdDVBT2_8)
	case frontend.SysDVBC:
		if bw == 6_000_000 {
			return StdDVBC6, nil
		}
		return StdDVBC8, nil
	case frontend.SysDVBCB:
		return StdJ83B, nil
	case frontend.SysISDBT:
		return StdISDBT, nil
	case frontend.SysATSC:
		return StdATSC, nil
	case frontend.SysDTMB:
		return StdDTMB, nil
	case frontend.SysDVBS, frontend.SysDVBS2:
		return StdDVBS, nil
	}
	return 0, fmt.Errorf("%w: delivery system %s", frontend.ErrInvalidParameter, p.DeliverySystem)
}

// satLPFCode picks the zero-IF channel filter for a symbol rate
func satLPFCode(symbolRate uint32) uint8 {
	switch {
	case symbolRate <= 10_000_000:
		return 0
	case symbolRate <= 20_000_000:
		return 1
	case symbolRate <= 30_000_000:
		return 2
	}
	return 3
}
