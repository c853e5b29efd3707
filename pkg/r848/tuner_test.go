package r848

import (
	"errors"
	"io"
	"math/bits"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/transport"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clock = transport.NewFakeClock()
	cfg.Logger = log.New(io.Discard)
	return cfg
}

func newSimTuner(t *testing.T, sim *Simulator) *Tuner {
	t.Helper()
	tu, err := New(sim, testConfig())
	require.NoError(t, err)
	return tu
}

func readyTuner(t *testing.T) (*Tuner, *Simulator) {
	t.Helper()
	sim := NewSimulator()
	tu := newSimTuner(t, sim)
	require.NoError(t, tu.Init())
	return tu, sim
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.XtalHz = 27_000_000
	_, err := New(NewSimulator(), cfg)
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.Addr = 0x80
	assert.ErrorIs(t, cfg.Validate(), frontend.ErrInvalidParameter)
}

func TestInitCalibratesEveryBin(t *testing.T) {
	tu, sim := readyTuner(t)

	assert.Equal(t, StateReady, tu.State())
	assert.Equal(t, uint8(3), tu.XtalDrive())
	table := tu.CalibrationTable()
	for bin, opt := range sim.IMROptimum {
		assert.Equal(t, opt.Gain, table[bin].Gain, "bin %d", bin)
		assert.Equal(t, opt.Phase, table[bin].Phase, "bin %d", bin)
		assert.Equal(t, opt.IQCap, table[bin].IQCap, "bin %d", bin)
		// four reads of 2, highest and lowest dropped
		assert.Equal(t, uint8(4), table[bin].Value, "bin %d", bin)
	}

	// calibration mode is left off
	assert.Zero(t, sim.field(fIMREnable))
	assert.Zero(t, sim.field(fRingEnable))
	assert.Zero(t, sim.field(fXtalCheck))
	assert.Equal(t, uint8(3), sim.field(fXtalDrive))
}

func TestInitIdempotent(t *testing.T) {
	tu, _ := readyTuner(t)
	first := tu.CalibrationTable()
	drive := tu.XtalDrive()

	require.NoError(t, tu.Init())
	assert.Equal(t, first, tu.CalibrationTable())
	assert.Equal(t, drive, tu.XtalDrive())
}

func TestXtalCheckKeepsHighestRun(t *testing.T) {
	sim := NewSimulator()
	sim.XtalLockDrive = []uint8{2, 5, 3}
	tu := newSimTuner(t, sim)

	require.NoError(t, tu.Init())
	assert.Equal(t, uint8(5), tu.XtalDrive())
}

func TestXtalCheck24MHz(t *testing.T) {
	sim := NewSimulator()
	sim.XtalLockDrive = []uint8{5}
	cfg := testConfig()
	cfg.XtalHz = 24_000_000
	tu, err := New(sim, cfg)
	require.NoError(t, err)

	// only five drive steps at 24 MHz
	err = tu.Init()
	assert.ErrorIs(t, err, ErrXtalCheck)
	assert.ErrorIs(t, err, frontend.ErrTimeout)
	assert.Equal(t, StateUninitialized, tu.State())
}

func TestInitFailsWhenPLLNeverLocks(t *testing.T) {
	sim := NewSimulator()
	sim.PLLLockBias = maxVCOBias + 1
	tu := newSimTuner(t, sim)

	err := tu.Init()
	assert.ErrorIs(t, err, frontend.ErrTimeout)
	assert.Equal(t, StateUninitialized, tu.State())
}

func TestInitUnknownChip(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: DefaultAddr, R: []byte{bits.Reverse8(0x11)}}},
		DontPanic: true,
	}
	tu, err := New(bus, testConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, tu.Init(), ErrUnknownChip)
	assert.NoError(t, bus.Close())
}

func TestOperationsBeforeInit(t *testing.T) {
	tu := newSimTuner(t, NewSimulator())

	assert.ErrorIs(t, tu.SetStandard(StdDVBT8), frontend.ErrNotReady)
	assert.ErrorIs(t, tu.SetFrequency(474_000), frontend.ErrNotReady)
	_, err := tu.LockStatus()
	assert.ErrorIs(t, err, frontend.ErrNotReady)
}

func TestSetFrequencyNeedsStandard(t *testing.T) {
	tu, _ := readyTuner(t)
	assert.ErrorIs(t, tu.SetFrequency(474_000), frontend.ErrNotReady)
}

func TestFilterCalibrationCachedPerStandard(t *testing.T) {
	tu, sim := readyTuner(t)

	require.NoError(t, tu.SetStandard(StdDVBT8))
	code, ok := tu.FilterCode(StdDVBT8)
	require.True(t, ok)
	assert.Equal(t, uint8(7), code)

	sim.FilterDropCode = 3
	require.NoError(t, tu.SetStandard(StdDVBC8))
	code, _ = tu.FilterCode(StdDVBC8)
	assert.Equal(t, uint8(3), code)

	require.NoError(t, tu.SetStandard(StdDVBT8))
	code, _ = tu.FilterCode(StdDVBT8)
	assert.Equal(t, uint8(7), code)
	assert.Equal(t, uint8(7), sim.field(fFiltCode))
	assert.Zero(t, sim.field(fFiltCal))
}

func TestFilterCalibrationWithoutDrop(t *testing.T) {
	tu, sim := readyTuner(t)
	sim.FilterDropCode = 0

	require.NoError(t, tu.SetStandard(StdATSC))
	code, _ := tu.FilterCode(StdATSC)
	assert.Equal(t, uint8(filterCodes-1), code)
}

func TestSetFrequencyProgramsPlan(t *testing.T) {
	tu, sim := readyTuner(t)
	require.NoError(t, tu.SetStandard(StdDVBT8))

	// LO = 645430 + 4570 = 650000 kHz
	require.NoError(t, tu.SetFrequency(645_430))
	assert.Equal(t, StateTuned, tu.State())
	assert.Equal(t, uint32(645_430), tu.FrequencyKHz())

	assert.Equal(t, uint8(1), sim.field(fMixDiv))
	assert.Zero(t, sim.field(fXtalDiv))
	assert.Equal(t, uint8(17), sim.field(fNi))
	assert.Zero(t, sim.field(fSi))
	assert.Equal(t, uint8(0x40), sim.field(fSDMHigh))
	assert.Zero(t, sim.field(fSDMLow))
	assert.Zero(t, sim.field(fSDMPowerOff))

	bin3 := tu.CalibrationTable()[3]
	assert.Equal(t, bin3.Gain, sim.field(fIMRGain))
	assert.Equal(t, bin3.Phase, sim.field(fIMRPhase))

	band, _ := dtvPlan.lookup(645_430)
	assert.Equal(t, band.tfCode, sim.field(fTFCode))

	locked, err := tu.LockStatus()
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSetFrequencyInvalidLeavesStateAlone(t *testing.T) {
	tu, sim := readyTuner(t)
	require.NoError(t, tu.SetStandard(StdDVBT8))
	require.NoError(t, tu.SetFrequency(474_000))
	table := tu.CalibrationTable()
	writes, _ := sim.Counts()

	for _, rf := range []uint32{10_000, 1_500_000} {
		err := tu.SetFrequency(rf)
		assert.ErrorIs(t, err, ErrInvalidFrequency)
		assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
	}

	after, _ := sim.Counts()
	assert.Equal(t, writes, after)
	assert.Equal(t, table, tu.CalibrationTable())
	assert.Equal(t, StateTuned, tu.State())
	assert.Equal(t, uint32(474_000), tu.FrequencyKHz())
}

func TestPLLBiasEscalation(t *testing.T) {
	tu, sim := readyTuner(t)
	require.NoError(t, tu.SetStandard(StdDVBT8))
	plan, err := Plan(650_000, 16_000_000, HintNone)
	require.NoError(t, err)

	sim.PLLLockBias = plan.VCOBias + 2
	require.NoError(t, tu.SetFrequency(645_430))
	assert.Equal(t, plan.VCOBias+2, tu.LastPlan().VCOBias)

	sim.PLLLockBias = plan.VCOBias + 3
	err = tu.SetFrequency(645_430)
	assert.ErrorIs(t, err, frontend.ErrTimeout)
	assert.Equal(t, StateReady, tu.State())
}

func TestSetParamsSatellite(t *testing.T) {
	tu, sim := readyTuner(t)

	err := tu.SetParams(frontend.Properties{
		DeliverySystem: frontend.SysDVBS2,
		FrequencyHz:    1_200_000_000,
		SymbolRate:     27_500_000,
	})
	require.NoError(t, err)
	std, ok := tu.Standard()
	require.True(t, ok)
	assert.Equal(t, StdDVBS, std)
	assert.Equal(t, uint8(1), sim.field(fSatMode))
	assert.Equal(t, uint8(2), sim.field(fSatLPF))
	assert.Equal(t, uint32(1_200_000), tu.FrequencyKHz())
}

func TestSetParamsRejectsBandwidth(t *testing.T) {
	tu, _ := readyTuner(t)
	err := tu.SetParams(frontend.Properties{DeliverySystem: frontend.SysDVBT, FrequencyHz: 474_000_000, BandwidthHz: 5_000_000})
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
}

func TestStandardFor(t *testing.T) {
	cases := []struct {
		p    frontend.Properties
		want Standard
	}{
		{frontend.Properties{DeliverySystem: frontend.SysDVBT, BandwidthHz: 7_000_000}, StdDVBT7},
		{frontend.Properties{DeliverySystem: frontend.SysDVBT2}, StdDVBT2_8},
		{frontend.Properties{DeliverySystem: frontend.SysDVBC, BandwidthHz: 6_000_000}, StdDVBC6},
		{frontend.Properties{DeliverySystem: frontend.SysDVBCB}, StdJ83B},
		{frontend.Properties{DeliverySystem: frontend.SysATSC}, StdATSC},
		{frontend.Properties{DeliverySystem: frontend.SysDVBS}, StdDVBS},
	}
	for _, c := range cases {
		got, err := StandardFor(c.p)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, c.p.DeliverySystem.String())
	}
	_, err := StandardFor(frontend.Properties{})
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
}

func TestSleepKeepsCalibration(t *testing.T) {
	tu, sim := readyTuner(t)
	require.NoError(t, tu.SetStandard(StdISDBT))
	require.NoError(t, tu.SetFrequency(557_143))
	table := tu.CalibrationTable()

	require.NoError(t, tu.Sleep())
	assert.Equal(t, uint8(1), sim.field(fStandby))
	assert.Equal(t, StateReady, tu.State())
	assert.Equal(t, table, tu.CalibrationTable())

	require.NoError(t, tu.SetFrequency(557_143))
	assert.Zero(t, sim.field(fStandby))
}

func TestBusErrorsPropagate(t *testing.T) {
	tu, sim := readyTuner(t)
	require.NoError(t, tu.SetStandard(StdDVBT8))
	sim.Err = errors.New("nack")

	err := tu.SetFrequency(474_000)
	assert.ErrorIs(t, err, frontend.ErrIO)
}

func TestBinForLO(t *testing.T) {
	assert.Equal(t, 0, binForLO(66_700))
	assert.Equal(t, 1, binForLO(210_700))
	assert.Equal(t, 2, binForLO(426_700))
	assert.Equal(t, 3, binForLO(650_000))
	assert.Equal(t, 4, binForLO(1_200_000))
}
