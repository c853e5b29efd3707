package stv0910

import "fmt"

// ModCod is a DVB-S2 modulation and coding combination as reported in
// DMDMODCOD (1 = QPSK 1/4 ... 28 = 32APSK 9/10)
type ModCod uint8

const (
	ModCodDummy     ModCod = 0
	ModCodQPSK14    ModCod = 1
	ModCodQPSK910   ModCod = 11
	ModCod8PSK35    ModCod = 12
	ModCod8PSK910   ModCod = 17
	ModCod16APSK23  ModCod = 18
	ModCod16APSK910 ModCod = 23
	ModCod32APSK34  ModCod = 24
	ModCod32APSK910 ModCod = 28
)

var codeRates = [...]string{
	"", "1/4", "1/3", "2/5", "1/2", "3/5", "2/3", "3/4", "4/5", "5/6", "8/9", "9/10",
	"3/5", "2/3", "3/4", "5/6", "8/9", "9/10",
	"2/3", "3/4", "4/5", "5/6", "8/9", "9/10",
	"3/4", "4/5", "5/6", "8/9", "9/10",
}

// Constellation returns the modulation of m
func (m ModCod) Constellation() string {
	switch {
	case m >= ModCodQPSK14 && m <= ModCodQPSK910:
		return "QPSK"
	case m >= ModCod8PSK35 && m <= ModCod8PSK910:
		return "8PSK"
	case m >= ModCod16APSK23 && m <= ModCod16APSK910:
		return "16APSK"
	case m >= ModCod32APSK34 && m <= ModCod32APSK910:
		return "32APSK"
	}
	return ""
}

func (m ModCod) String() string {
	if c := m.Constellation(); c != "" {
		return c + " " + codeRates[m]
	}
	return fmt.Sprintf("modcod(%d)", uint8(m))
}

// SRBucket groups symbol rates for the carrier loop table
type SRBucket uint8

const (
	SR2M  SRBucket = iota // up to 3 Msps
	SR5M                  // up to 7 Msps
	SR10M                 // up to 15 Msps
	SR20M                 // up to 25 Msps
	SR30M                 // above
)

// BucketFor returns the carrier loop bucket of a symbol rate
func BucketFor(sr uint32) SRBucket {
	switch {
	case sr <= 3_000_000:
		return SR2M
	case sr <= 7_000_000:
		return SR5M
	case sr <= 15_000_000:
		return SR10M
	case sr <= 25_000_000:
		return SR20M
	}
	return SR30M
}

type cloopKey struct {
	ModCod ModCod
	Bucket SRBucket
	Pilots bool
}

// Carrier loop alpha/beta per modcod row. Columns are 2M/5M/10M/20M/30M,
// each with pilots on then off.
var cloopRows = [...][10]uint8{
	ModCodQPSK14:     {0x0C, 0x3C, 0x0B, 0x3C, 0x2A, 0x2C, 0x2A, 0x1C, 0x3A, 0x3B},
	ModCodQPSK14 + 1: {0x0C, 0x3C, 0x0B, 0x3C, 0x2A, 0x2C, 0x3A, 0x0C, 0x3A, 0x2B},
	ModCodQPSK14 + 2: {0x1C, 0x3C, 0x1B, 0x3C, 0x3A, 0x1C, 0x3A, 0x3B, 0x3A, 0x2B},
	ModCodQPSK14 + 3: {0x0C, 0x1C, 0x2B, 0x1C, 0x0B, 0x2C, 0x0B, 0x0C, 0x2A, 0x2B},
	ModCodQPSK14 + 4: {0x1C, 0x1C, 0x2B, 0x1C, 0x0B, 0x2C, 0x0B, 0x0C, 0x2A, 0x2B},
	ModCodQPSK14 + 5: {0x2C, 0x2C, 0x2B, 0x1C, 0x0B, 0x2C, 0x0B, 0x0C, 0x2A, 0x2B},
	ModCodQPSK14 + 6: {0x3C, 0x2C, 0x3B, 0x2C, 0x1B, 0x1C, 0x1B, 0x3B, 0x3A, 0x1B},
	ModCodQPSK14 + 7: {0x0D, 0x3C, 0x3B, 0x2C, 0x1B, 0x1C, 0x1B, 0x3B, 0x3A, 0x1B},
	ModCodQPSK14 + 8: {0x1D, 0x3C, 0x0C, 0x2C, 0x2B, 0x1C, 0x1B, 0x3B, 0x0B, 0x1B},
	ModCodQPSK14 + 9: {0x3D, 0x0D, 0x0C, 0x2C, 0x2B, 0x0C, 0x2B, 0x2B, 0x0B, 0x0B},
	ModCodQPSK910:    {0x1E, 0x0D, 0x1C, 0x2C, 0x3B, 0x0C, 0x2B, 0x2B, 0x1B, 0x0B},

	ModCod8PSK35:     {0x28, 0x09, 0x28, 0x09, 0x28, 0x09, 0x28, 0x08, 0x28, 0x27},
	ModCod8PSK35 + 1: {0x19, 0x29, 0x19, 0x29, 0x19, 0x29, 0x38, 0x19, 0x28, 0x09},
	ModCod8PSK35 + 2: {0x1A, 0x0B, 0x1A, 0x3A, 0x0A, 0x2A, 0x39, 0x2A, 0x39, 0x1A},
	ModCod8PSK35 + 3: {0x2B, 0x2B, 0x1B, 0x1B, 0x0B, 0x1B, 0x1A, 0x0B, 0x1A, 0x1A},
	ModCod8PSK35 + 4: {0x0C, 0x0C, 0x3B, 0x3B, 0x1B, 0x1B, 0x2A, 0x0B, 0x2A, 0x2A},
	ModCod8PSK910:    {0x0C, 0x1C, 0x0C, 0x3B, 0x2B, 0x1B, 0x3A, 0x0B, 0x2A, 0x2A},

	ModCod16APSK23:     {0x0A, 0x0A, 0x0A, 0x0A, 0x1A, 0x0A, 0x39, 0x0A, 0x29, 0x0A},
	ModCod16APSK23 + 1: {0x0A, 0x0A, 0x0A, 0x0A, 0x0B, 0x0A, 0x2A, 0x0A, 0x1A, 0x0A},
	ModCod16APSK23 + 2: {0x0A, 0x0A, 0x0A, 0x0A, 0x1B, 0x0A, 0x3A, 0x0A, 0x2A, 0x0A},
	ModCod16APSK23 + 3: {0x0A, 0x0A, 0x0A, 0x0A, 0x1B, 0x0A, 0x3A, 0x0A, 0x2A, 0x0A},
	ModCod16APSK23 + 4: {0x0A, 0x0A, 0x0A, 0x0A, 0x2B, 0x0A, 0x0B, 0x0A, 0x3A, 0x0A},
	ModCod16APSK910:    {0x0A, 0x0A, 0x0A, 0x0A, 0x2B, 0x0A, 0x0B, 0x0A, 0x3A, 0x0A},

	ModCod32APSK34:     {0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09},
	ModCod32APSK34 + 1: {0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09},
	ModCod32APSK34 + 2: {0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09},
	ModCod32APSK34 + 3: {0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09},
	ModCod32APSK910:    {0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09, 0x09},
}

var carrierLoopTable = buildCarrierLoop()

func buildCarrierLoop() map[cloopKey]uint8 {
	m := make(map[cloopKey]uint8)
	for mc := ModCodQPSK14; mc <= ModCod32APSK910; mc++ {
		row := cloopRows[mc]
		for b := SR2M; b <= SR30M; b++ {
			m[cloopKey{mc, b, true}] = row[2*int(b)]
			m[cloopKey{mc, b, false}] = row[2*int(b)+1]
		}
	}
	return m
}

// carrierLoop returns the tracking loop coefficient for a lock. Modcods below
// the table use its first row and those above use its last.
func carrierLoop(mc ModCod, sr uint32, pilots bool) uint8 {
	switch {
	case mc < ModCodQPSK14:
		mc = ModCodQPSK14
	case mc > ModCod32APSK910:
		mc = ModCod32APSK910
	}
	return carrierLoopTable[cloopKey{mc, BucketFor(sr), pilots}]
}

// carrierLoopReg returns the ACLC register that holds the coefficient for
// the constellation of mc
func carrierLoopReg(mc ModCod) uint16 {
	switch {
	case mc <= ModCodQPSK910:
		return regACLC2S2Q
	case mc <= ModCod8PSK910:
		return regACLC2S28
	case mc <= ModCod16APSK910:
		return regACLC2S216A
	}
	return regACLC2S232A
}
