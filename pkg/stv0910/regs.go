package stv0910

import "github.com/herlein/godvb/pkg/registers"

// DefaultAddr is the 7-bit I2C address of the common board strapping
const DefaultAddr = 0x68

// ChipID is the content of MID on every STV0910 revision seen so far
const ChipID = 0x51

// Shared registers
const (
	regMID       = 0xF100
	regDACR1     = 0xF113
	regDACR2     = 0xF114
	regPADCFG    = 0xF11A
	regOUTCFG2   = 0xF11B
	regOUTCFG    = 0xF11C
	regI2CRPT1   = 0xF12A // P1 repeater
	regI2CRPT2   = 0xF12B // P2 repeater
	regNCOARSE1  = 0xF1B4
	regNCOARSE2  = 0xF1B5
	regSYNTCTRL  = 0xF1B6
	regFILTCTRL  = 0xF1B7
	regSTOPCLK1  = 0xF1C2
	regSTOPCLK2  = 0xF1C3
	regTSTTSRS   = 0xFF11
	regTSGENERAL = 0xF630
)

// Per-demodulator registers at their P2 address. P1 sits 0x200 above.
const (
	regPOWERI      = 0xF204
	regPOWERQ      = 0xF205
	regDMDISTATE   = 0xF216
	regDSTATUS     = 0xF211
	regDMDCFGMD    = 0xF214
	regDMDSTATE    = 0xF21B
	regDMDMODCOD   = 0xF21E
	regCFRUP1      = 0xF242
	regCFRUP0      = 0xF243
	regCFRLOW1     = 0xF246
	regCFRLOW0     = 0xF247
	regCFRINIT1    = 0xF248
	regCFRINIT0    = 0xF249
	regSFRINIT1    = 0xF25E
	regSFRINIT0    = 0xF25F
	regNNOSDATAT1  = 0xF284
	regNNOSPLHT1   = 0xF288
	regACLC2S2Q    = 0xF297
	regACLC2S28    = 0xF298
	regACLC2S216A  = 0xF299
	regACLC2S232A  = 0xF29A
	regVITCURPUN   = 0xF332
	regVSTATUSVIT  = 0xF33C
	regPDELSTATUS1 = 0xF394
	regPDELCTRL1   = 0xF396
	regPDELCTRL2   = 0xF397
	regISIENTRY    = 0xF39E
	regISIBITENA   = 0xF39F
	regFBERCPT4    = 0xF3A8
	regERRCTRL1    = 0xF398
	regERRCNT12    = 0xF399
)

const p1Offset = 0x200

// DMDISTATE commands
const (
	dmdStop      = 0x5C
	dmdReset     = 0x1F
	dmdColdStart = 0x15
)

// Status bits
const (
	dmdStateSearch = 0x40 // DMDSTATE: search finished on a carrier
	dmdStateS2     = 0x20 // DMDSTATE: header mode is DVB-S2
	dstatusLock    = 0x08 // DSTATUS: LOCK_DEFINITIF
	pdelLock       = 0x02 // PDELSTATUS1: packet delineator locked
	vitLock        = 0x08 // VSTATUSVIT: Viterbi locked
	berNotReady    = 0x80 // ERRCNT12: counter still integrating
)

// I2C repeater control
const (
	rptEnable  = 0x80
	rptDisable = 0x02
	rptMask    = 0x86
	rptDefault = 0x38
)

// errCtrlS2 selects the pre-BCH error source for the S2 counter; the low
// nibble is the window scale.
const (
	errCtrlS  = 0x20
	errCtrlS2 = 0x60
)

// DMDCFGMD header mode bits
const (
	cfgModeMask = 0xC0
	cfgModeS    = 0x40
	cfgModeS2   = 0x80
	cfgModeAuto = 0xC0
)

// baseInit is written once per chip regardless of which demod attaches first
var baseInit = registers.List{
	{Reg: regDACR1, Val: 0x00},
	{Reg: regDACR2, Val: 0x00},
	{Reg: regPADCFG, Val: 0x05},
	{Reg: regOUTCFG2, Val: 0x00},
	{Reg: regOUTCFG, Val: 0x00},
	{Reg: regSYNTCTRL, Val: 0xC2},
	{Reg: regFILTCTRL, Val: 0x01},
	{Reg: regNCOARSE1, Val: 0x12},
	{Reg: regNCOARSE2, Val: 0x02},
	{Reg: regSTOPCLK1, Val: 0x00},
	{Reg: regSTOPCLK2, Val: 0x00},
	{Reg: regTSGENERAL, Val: 0x00},
	{Reg: regI2CRPT1, Val: rptDefault | rptDisable},
	{Reg: regI2CRPT2, Val: rptDefault | rptDisable},
}

// demodInit is written for each demodulator path, at its own offset
var demodInit = registers.List{
	{Reg: regDMDISTATE, Val: dmdStop},
	{Reg: regDMDCFGMD, Val: 0xC8 | cfgModeAuto},
	{Reg: regPDELCTRL1, Val: 0x00},
	{Reg: regISIBITENA, Val: 0x00},
	{Reg: regERRCTRL1, Val: errCtrlS2 | 2},
}

// standby stops both demod clocks and powers down the synthesizer
var standby = registers.List{
	{Reg: regSTOPCLK1, Val: 0xFF},
	{Reg: regSTOPCLK2, Val: 0xFF},
	{Reg: regSYNTCTRL, Val: 0xC4},
}

// offset returns list shifted to the register block of a demod path
func offset(list registers.List, off uint16) registers.List {
	out := make(registers.List, len(list))
	for i, w := range list {
		out[i] = registers.Write{Reg: w.Reg + off, Val: w.Val}
	}
	return out
}
