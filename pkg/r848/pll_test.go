package r848

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/herlein/godvb/pkg/frontend"
)

func TestPlan650MHz(t *testing.T) {
	p, err := Plan(650_000, 16_000_000, HintNone)
	require.NoError(t, err)

	assert.Equal(t, uint8(4), p.MixDiv)
	assert.Equal(t, uint8(1), p.PostDividerStages())
	assert.Equal(t, uint8(1), p.XtalDiv)
	assert.Equal(t, uint16(81), p.Nint)
	assert.Equal(t, uint16(16384), p.SDM)
	assert.True(t, p.SDMEnabled())
	assert.Equal(t, uint32(2_600_000), p.VCOKHz())
	assert.InDelta(t, 650_000, p.Reconstruct(), 1e-6)
	assert.Equal(t, uint8(17), p.ni())
	assert.Equal(t, uint8(0), p.si())
}

func TestPlanXtalDivider(t *testing.T) {
	// 656000/1000/8 = 82, even
	p, err := Plan(656_000, 16_000_000, HintNone)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), p.XtalDiv)
	assert.Equal(t, uint32(8000), p.RefKHz())

	p, err = Plan(656_000, 16_000_000, HintCalibration)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), p.XtalDiv)
}

func TestPlanIntegerN(t *testing.T) {
	// VCO 2,592,000 = 81 * 32,000 exactly
	p, err := Plan(648_000, 16_000_000, HintCalibration)
	require.NoError(t, err)
	assert.Equal(t, uint16(81), p.Nint)
	assert.Zero(t, p.SDM)
	assert.False(t, p.SDMEnabled())
}

func TestPlanUpperEdgeBumpsN(t *testing.T) {
	// VCO 2,623,940: remainder 31,940 is within ref/64 of 2*ref
	p, err := Plan(655_985, 16_000_000, HintCalibration)
	require.NoError(t, err)
	assert.Equal(t, uint16(82), p.Nint)
	assert.Zero(t, p.SDM)
}

func TestPlanMidpointClamp(t *testing.T) {
	// VCO 2,608,000: remainder exactly ref
	p, err := Plan(652_000, 16_000_000, HintCalibration)
	require.NoError(t, err)
	assert.Equal(t, uint16(81), p.Nint)
	assert.Equal(t, uint16(16125*65536/32000), p.SDM)
}

func TestPlanOutOfRange(t *testing.T) {
	for _, lo := range []uint32{0, MinLOKHz - 1, MaxLOKHz + 1, 3_000_000} {
		_, err := Plan(lo, 16_000_000, HintNone)
		assert.ErrorIs(t, err, ErrInvalidFrequency, lo)
		assert.ErrorIs(t, err, frontend.ErrInvalidParameter, lo)
	}
	_, err := Plan(650_000, 0, HintNone)
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
}

func planInputs(t *rapid.T) (uint32, uint32, Hint) {
	lo := rapid.Uint32Range(MinLOKHz, MaxLOKHz).Draw(t, "lo")
	ref := rapid.SampledFrom([]uint32{16_000_000, 24_000_000}).Draw(t, "ref")
	hint := rapid.SampledFrom([]Hint{HintNone, HintCalibration}).Draw(t, "hint")
	return lo, ref, hint
}

func TestPlanSmallestDivider(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo, ref, hint := planInputs(t)
		p, err := Plan(lo, ref, hint)
		require.NoError(t, err)

		vco := uint64(lo) * uint64(p.MixDiv)
		assert.GreaterOrEqual(t, vco, uint64(vcoMinKHz))
		assert.Less(t, vco, uint64(vcoMaxKHz))
		if p.MixDiv > minMixDiv {
			assert.Less(t, vco/2, uint64(vcoMinKHz))
		}
	})
}

func TestPlanRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo, ref, hint := planInputs(t)
		p, err := Plan(lo, ref, hint)
		require.NoError(t, err)
		assert.InDelta(t, float64(lo), p.Reconstruct(), p.StepKHz())
	})
}

// The SDM word spans 2*ref, so ref/64 from either end is sdmSteps/128. The
// R848 clamp keeps the remainder ref/128 away from ref itself (ref*127/128 and
// ref*129/128), which is sdmSteps/256 around the midpoint. The midpoint band is
// half the width of the end bands; the clamp follows the vendor driver rather
// than a flat ref/64 exclusion around ref.
func TestPlanAvoidsBoundarySpurs(t *testing.T) {
	const half = sdmSteps / 2
	rapid.Check(t, func(t *rapid.T) {
		lo, ref, hint := planInputs(t)
		p, err := Plan(lo, ref, hint)
		require.NoError(t, err)

		if p.SDM == 0 {
			return
		}
		assert.GreaterOrEqual(t, p.SDM, uint16(sdmSteps/128))
		assert.LessOrEqual(t, p.SDM, uint16(sdmSteps-sdmSteps/128))
		assert.True(t, p.SDM <= half-sdmSteps/256 || p.SDM >= half+sdmSteps/256, "sdm %d next to midpoint", p.SDM)
	})
}

func TestPlanNiSiEncoding(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo, ref, hint := planInputs(t)
		p, err := Plan(lo, ref, hint)
		require.NoError(t, err)
		assert.Equal(t, p.Nint, 4*uint16(p.ni())+uint16(p.si())+13)
		assert.LessOrEqual(t, p.ni(), fNi.Max())
		assert.LessOrEqual(t, p.PostDividerStages(), fMixDiv.Max())
	})
}

func TestPLLBiasMonotonic(t *testing.T) {
	prevCP, prevBias := pllBias(13)
	for n := uint16(14); n < 600; n++ {
		cp, bias := pllBias(n)
		assert.GreaterOrEqual(t, cp, prevCP, "N=%d", n)
		assert.GreaterOrEqual(t, bias, prevBias, "N=%d", n)
		prevCP, prevBias = cp, bias
	}
}
