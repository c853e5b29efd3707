package r848

import (
	"fmt"
	"math/bits"

	"github.com/herlein/godvb/pkg/frontend"
)

// Synthesizer limits, kHz
const (
	vcoMinKHz = 2_410_000
	vcoMaxKHz = 2 * vcoMinKHz

	minMixDiv = 2
	maxMixDiv = 64

	// MinLOKHz and MaxLOKHz bound the LO frequencies Plan accepts
	MinLOKHz = (vcoMinKHz + maxMixDiv - 1) / maxMixDiv
	MaxLOKHz = vcoMaxKHz/minMixDiv - 1

	sdmSteps = 1 << 16
)

// Hint alters reference divider selection
type Hint uint8

const (
	HintNone Hint = iota

	// HintCalibration forces the undivided crystal reference
	HintCalibration
)

// FrequencyPlan holds the divider and tuning words for one LO frequency.
// It is computed per tune and never modified.
type FrequencyPlan struct {
	RefClockHz  uint32
	TargetLOKHz uint32
	MixDiv      uint8 // 2, 4, ... 64
	XtalDiv     uint8 // 1 or 2
	Nint        uint16
	SDM         uint16 // sigma-delta numerator over 2^16
	ChargePump  uint8
	VCOBias     uint8
}

// PostDividerStages is the number of divide-by-2 stages after the first
func (p FrequencyPlan) PostDividerStages() uint8 {
	return uint8(bits.TrailingZeros8(p.MixDiv)) - 1
}

// RefKHz is the phase detector reference after the crystal divider
func (p FrequencyPlan) RefKHz() uint32 {
	return p.RefClockHz / 1000 / uint32(p.XtalDiv)
}

// VCOKHz is the VCO frequency the plan aims for
func (p FrequencyPlan) VCOKHz() uint32 {
	return p.TargetLOKHz * uint32(p.MixDiv)
}

// SDMEnabled reports whether the fractional modulator is needed
func (p FrequencyPlan) SDMEnabled() bool {
	return p.SDM != 0
}

// Reconstruct returns the LO frequency the plan actually synthesizes, kHz
func (p FrequencyPlan) Reconstruct() float64 {
	ref := float64(p.RefClockHz) / 1000 / float64(p.XtalDiv)
	n := float64(p.Nint) + float64(p.SDM)/sdmSteps
	return 2 * ref * n / float64(p.MixDiv)
}

// StepKHz is the worst-case LO error introduced by the spur clamp
func (p FrequencyPlan) StepKHz() float64 {
	return float64(p.RefClockHz) / 1000 / float64(p.XtalDiv) / 64 / float64(p.MixDiv)
}

// ni and si split Nint into the register encoding Nint = 4*Ni + Si + 13
func (p FrequencyPlan) ni() uint8 { return uint8((p.Nint - 13) / 4) }
func (p FrequencyPlan) si() uint8 { return uint8(p.Nint - 13 - 4*uint16(p.ni())) }

func (p FrequencyPlan) String() string {
	return fmt.Sprintf("lo=%dkHz div=%d xdiv=%d N=%d sdm=%d cp=%d bias=%d",
		p.TargetLOKHz, p.MixDiv, p.XtalDiv, p.Nint, p.SDM, p.ChargePump, p.VCOBias)
}

// Plan computes the synthesizer settings for loKHz from a crystal of refHz.
// Mixer dividers are tried smallest first and the first one that puts the
// VCO inside its window wins.
func Plan(loKHz uint32, refHz uint32, hint Hint) (FrequencyPlan, error) {
	if refHz < 1_000_000 || refHz%2000 != 0 {
		return FrequencyPlan{}, fmt.Errorf("%w: reference clock %d Hz", frontend.ErrInvalidParameter, refHz)
	}
	if loKHz < MinLOKHz || loKHz > MaxLOKHz {
		return FrequencyPlan{}, fmt.Errorf("%w: LO %d kHz not in [%d, %d]", ErrInvalidFrequency, loKHz, MinLOKHz, MaxLOKHz)
	}

	p := FrequencyPlan{RefClockHz: refHz, TargetLOKHz: loKHz}

	var vco uint64
	for div := uint64(minMixDiv); div <= maxMixDiv; div *= 2 {
		vco = uint64(loKHz) * div
		if vco >= vcoMinKHz && vco < vcoMaxKHz {
			p.MixDiv = uint8(div)
			break
		}
	}
	if p.MixDiv == 0 {
		return FrequencyPlan{}, fmt.Errorf("%w: no mixer divider for LO %d kHz", ErrInvalidFrequency, loKHz)
	}

	p.XtalDiv = 2
	if hint == HintCalibration || (loKHz/1000/8)%2 == 1 {
		p.XtalDiv = 1
	}
	ref := uint64(refHz) / 1000 / uint64(p.XtalDiv)

	nint := vco / (2 * ref)
	rem := vco - 2*ref*nint

	switch {
	case rem*64 < ref:
		// integer-N, modulator off
		rem = 0
	case rem*64 > ref*127:
		rem = 0
		nint++
	case rem*128 > ref*127 && rem < ref:
		rem = ref * 127 / 128
	case rem >= ref && rem*128 < ref*129:
		rem = (ref*129 + 127) / 128
	}

	p.Nint = uint16(nint)
	p.SDM = uint16(rem * sdmSteps / (2 * ref))
	p.ChargePump, p.VCOBias = pllBias(p.Nint)
	return p, nil
}

// pllBias looks up charge pump and VCO bias codes; both rise with N
func pllBias(nint uint16) (cp, bias uint8) {
	for _, e := range pllBiasTable {
		if nint <= e.maxNint {
			return e.cp, e.bias
		}
	}
	last := pllBiasTable[len(pllBiasTable)-1]
	return last.cp, last.bias
}
