package r848

import (
	"math/bits"

	"github.com/herlein/godvb/pkg/registers"
)

// Register block written by the driver (R8..R39). Reads always start at R0.
const (
	regBase  = 8
	regCount = 32
	readLen  = 3
)

// DefaultAddr is the 7-bit I2C address of the R848
const DefaultAddr = 0x7A

// ChipID is the value read back from R0
const ChipID = 0x96

// Register fields
var (
	fIMREnable   = registers.F("imr_enable", 8, 7, 7)
	fFiltCal     = registers.F("filt_cal_enable", 8, 6, 6)
	fStandby     = registers.F("standby", 8, 0, 0)
	fLNABand     = registers.F("lna_band", 9, 6, 5)
	fRFPoly      = registers.F("rf_poly", 10, 1, 0)
	fTFCode      = registers.F("tf_code", 11, 6, 0)
	fSatMode     = registers.F("sat_mode", 12, 7, 7)
	fSatLPF      = registers.F("sat_lpf", 12, 5, 4)
	fVCOBias     = registers.F("vco_bias", 18, 7, 5)
	fBandwidth   = registers.F("lpf_bw", 19, 6, 5)
	fHPFCorner   = registers.F("hpf_corner", 19, 3, 0)
	fIMRGain     = registers.F("imr_gain", 20, 5, 0)
	fIMRPhase    = registers.F("imr_phase", 21, 5, 0)
	fIQCap       = registers.F("iqcap", 22, 1, 0)
	fFiltCode    = registers.F("filt_code", 23, 3, 0)
	fMixDiv      = registers.F("mix_div", 24, 7, 5)
	fXtalDiv     = registers.F("xtal_div", 24, 4, 4)
	fChargePump  = registers.F("cp_current", 25, 5, 3)
	fNi          = registers.F("ni", 26, 6, 0)
	fSi          = registers.F("si", 27, 5, 4)
	fSDMPowerOff = registers.F("sdm_pwd", 27, 3, 3)
	fSDMLow      = registers.F("sdm_lo", 28, 7, 0)
	fSDMHigh     = registers.F("sdm_hi", 29, 7, 0)
	fXtalCheck   = registers.F("xtal_check", 34, 7, 7)
	fXtalDrive   = registers.F("xtal_drive", 34, 4, 1)
	fRingEnable  = registers.F("ring_enable", 35, 7, 7)
	fRingDiv     = registers.F("ring_div", 35, 2, 0)
)

// Read-back layout, after bit reversal
const (
	rdChipID = 0
	rdADC    = 1
	rdPLL    = 2

	adcMask     = 0x3F
	pllLockBit  = 0x40
	vcoBandMask = 0x3F
)

// chipDefaults is the power-on image of R8..R39
var chipDefaults = [regCount]uint8{
	0x00, 0x20, 0x02, 0x30, 0x00, 0x42, 0xC3, 0x6C, // R8-R15
	0x3A, 0x00, 0x40, 0x4C, 0x00, 0x00, 0x00, 0x00, // R16-R23
	0x20, 0x10, 0x2A, 0x00, 0x00, 0x00, 0x48, 0x30, // R24-R31
	0xCC, 0x02, 0x1E, 0x00, 0x62, 0x5C, 0x55, 0x00, // R32-R39
}

func newRegisterFile() *registers.File {
	return registers.NewFile(regBase, chipDefaults[:])
}

// The R848 shifts its read data out lsb first
func reverse(b []byte) {
	for i := range b {
		b[i] = bits.Reverse8(b[i])
	}
}
