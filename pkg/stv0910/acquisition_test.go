package stv0910

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/transport"
)

func testConfig(path int) Config {
	cfg := DefaultConfig()
	cfg.Path = path
	cfg.Registry = NewRegistry()
	cfg.Clock = transport.NewFakeClock()
	cfg.Logger = log.New(io.Discard)
	return cfg
}

// manualDemod returns an initialized P2 demod whose lock is driven by hand
func manualDemod(t *testing.T, mode Mode) (*Demod, *Simulator) {
	t.Helper()
	sim := NewSimulator()
	sim.Paths[1].LockAfter = -1
	sim.Paths[1].Mode = mode
	d, err := New(sim, testConfig(1))
	require.NoError(t, err)
	require.NoError(t, d.Init())
	return d, sim
}

func satProps(sr uint32) frontend.Properties {
	return frontend.Properties{
		DeliverySystem: frontend.SysDVBS2,
		FrequencyHz:    1_210_000_000,
		SymbolRate:     sr,
		StreamID:       frontend.NoStreamID,
	}
}

func TestTimeoutTable(t *testing.T) {
	tests := []struct {
		sr         uint32
		demod, fec time.Duration
	}{
		{100_000, 3000, 2000},
		{1_000_000, 3000, 2000},
		{1_000_001, 2500, 1300},
		{2_000_000, 2500, 1300},
		{5_000_000, 1000, 650},
		{10_000_000, 700, 350},
		{19_999_999, 400, 200},
		{20_000_000, 300, 200},
		{70_000_000, 300, 200},
	}
	for _, tt := range tests {
		to := timeoutsFor(tt.sr)
		assert.Equal(t, tt.demod*time.Millisecond, to.Demod, "sr %d", tt.sr)
		assert.Equal(t, tt.fec*time.Millisecond, to.FEC, "sr %d", tt.sr)
	}
}

func TestTimeoutsShrinkWithSymbolRate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint32Range(MinSymbolRate, MaxSymbolRate).Draw(t, "a")
		b := rapid.Uint32Range(a, MaxSymbolRate).Draw(t, "b")
		ta, tb := timeoutsFor(a), timeoutsFor(b)
		if tb.Demod > ta.Demod || tb.FEC > ta.FEC {
			t.Fatalf("timeouts grew from %d (%v) to %d (%v)", a, ta, b, tb)
		}
	})
}

func TestStartRejectsSymbolRate(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	before := sim.Writes()

	for _, sr := range []uint32{0, MinSymbolRate - 1, MaxSymbolRate + 1} {
		err := d.SetFrontend(satProps(sr))
		assert.ErrorIs(t, err, frontend.ErrInvalidParameter, "sr %d", sr)
	}
	assert.Equal(t, before, sim.Writes())
	assert.IsType(t, Stopped{}, d.State())
}

func TestStartProgramsSearch(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))

	assert.Equal(t, uint8(0x34), sim.Reg(regSFRINIT1))
	assert.Equal(t, uint8(0x25), sim.Reg(regSFRINIT0))
	assert.Equal(t, uint8(0x10), sim.Reg(regCFRUP1))
	assert.Equal(t, uint8(0x4E), sim.Reg(regCFRUP0))
	assert.Equal(t, uint8(0xEF), sim.Reg(regCFRLOW1))
	assert.Equal(t, uint8(0xB2), sim.Reg(regCFRLOW0))
	assert.Equal(t, []uint8{dmdStop, dmdStop, dmdReset, dmdColdStart}, sim.History(regDMDISTATE))

	s, ok := d.State().(Searching)
	require.True(t, ok)
	assert.Equal(t, uint32(27_500_000), s.SymbolRate)
	assert.Equal(t, 300*time.Millisecond, s.DemodTimeout)
	assert.Equal(t, frontend.Timeouts{Demod: 300 * time.Millisecond, FEC: 200 * time.Millisecond}, d.Timeouts())
}

func TestSearchWindow(t *testing.T) {
	assert.Equal(t, uint32(8600), searchWindowKHz(16_000_000, 27_500_000))
	assert.Equal(t, uint32(9600), searchWindowKHz(16_000_000, 2_000_000))
	assert.Equal(t, uint32(11100), searchWindowKHz(16_000_000, 5_000_000))
	assert.Equal(t, uint32(8600), searchWindowKHz(16_000_000, 5_000_001))
}

func TestTrackingOptimizationOncePerLock(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))

	for range 4 {
		st, err := d.ReadStatus()
		require.NoError(t, err)
		assert.False(t, st.Locked())
	}

	sim.SetLocked(1, true)
	st, err := d.ReadStatus()
	require.NoError(t, err)
	assert.True(t, st.Locked())
	assert.Equal(t, Locked{Mode: ModeDVBS2}, d.State())
	assert.Equal(t, 1, d.TrackingOptimizations())

	for range 5 {
		st, err := d.ReadStatus()
		require.NoError(t, err)
		assert.True(t, st.Locked())
	}
	assert.Equal(t, 1, d.TrackingOptimizations())

	sim.SetLocked(1, false)
	st, err = d.ReadStatus()
	require.NoError(t, err)
	assert.False(t, st.Locked())
	assert.IsType(t, Searching{}, d.State())

	require.NoError(t, d.SetFrontend(satProps(27_500_000)))
	sim.SetLocked(1, true)
	st, err = d.ReadStatus()
	require.NoError(t, err)
	assert.True(t, st.Locked())
	assert.Equal(t, 2, d.TrackingOptimizations())
}

func TestLockReadsMode(t *testing.T) {
	for _, mode := range []Mode{ModeDVBS, ModeDVBS2} {
		d, sim := manualDemod(t, mode)
		require.NoError(t, d.SetFrontend(satProps(8_000_000)))
		sim.SetLocked(1, true)

		st, err := d.ReadStatus()
		require.NoError(t, err)
		assert.Equal(t, frontend.HasSignal|frontend.HasCarrier|frontend.HasViterbi|frontend.HasSync|frontend.HasLock, st)
		assert.Equal(t, mode, d.Signal().Mode)
		assert.Equal(t, Locked{Mode: mode}, d.State())
	}
}

func TestCarrierWithoutFECKeepsSearching(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	require.NoError(t, d.SetFrontend(satProps(8_000_000)))
	sim.SetCarrierOnly(1)

	st, err := d.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, frontend.HasSignal|frontend.HasCarrier, st)
	assert.IsType(t, Searching{}, d.State())
	assert.Zero(t, d.TrackingOptimizations())
}

func TestAutoLockAndRelock(t *testing.T) {
	sim := NewSimulator()
	d, err := New(sim, testConfig(0))
	require.NoError(t, err)
	require.NoError(t, d.Init())
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))

	var st frontend.Status
	for range 3 {
		st, err = d.ReadStatus()
		require.NoError(t, err)
	}
	assert.True(t, st.Locked())
	assert.Equal(t, 1, d.TrackingOptimizations())

	// a dropped lock restarts the search, which locks again on its own
	sim.SetLocked(0, false)
	st, err = d.ReadStatus()
	require.NoError(t, err)
	assert.False(t, st.Locked())
	for range 3 {
		st, err = d.ReadStatus()
		require.NoError(t, err)
	}
	assert.True(t, st.Locked())
	assert.Equal(t, 2, d.TrackingOptimizations())
}

func TestTrackingProgramsCarrierLoop(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	sim.Paths[1].ModCod = ModCod8PSK910
	sim.Paths[1].Pilots = false
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))
	sim.SetLocked(1, true)

	_, err := d.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x2A), sim.Reg(regACLC2S2Q))
	assert.Equal(t, uint8(0x2A), sim.Reg(regACLC2S28))
	assert.Equal(t, cfgModeS2, int(sim.Reg(regDMDCFGMD)&cfgModeMask))
	assert.Equal(t, uint8(0x02), sim.Reg(regTSTTSRS)&0x02)
	assert.Equal(t, uint8(errCtrlS2|minBERScale), sim.Reg(regERRCTRL1))

	sig := d.Signal()
	assert.Equal(t, ModCod8PSK910, sig.ModCod)
	assert.False(t, sig.Pilots)
	assert.Equal(t, "8PSK 9/10", sig.ModCod.String())
}

func TestShortFramesSkipCarrierLoop(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	sim.Paths[1].ShortFrames = true
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))
	sim.SetLocked(1, true)

	_, err := d.ReadStatus()
	require.NoError(t, err)
	assert.Empty(t, sim.History(regACLC2S28))
	assert.Empty(t, sim.History(regACLC2S2Q))
	assert.Equal(t, 1, d.TrackingOptimizations())
}

func TestSleepFromAnyState(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	require.NoError(t, d.Sleep())
	assert.IsType(t, Stopped{}, d.State())

	require.NoError(t, d.Init())
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))
	sim.SetLocked(1, true)
	_, err := d.ReadStatus()
	require.NoError(t, err)

	require.NoError(t, d.Sleep())
	assert.IsType(t, Stopped{}, d.State())
	assert.Equal(t, uint8(dmdStop), sim.Reg(regDMDISTATE))

	_, err = d.ReadStatus()
	assert.ErrorIs(t, err, frontend.ErrNotReady)
	assert.ErrorIs(t, d.SetFrontend(satProps(27_500_000)), frontend.ErrNotReady)
}

func TestIOErrorsPropagate(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS2)
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))

	sim.Err = errors.New("nack")
	_, err := d.ReadStatus()
	assert.ErrorIs(t, err, frontend.ErrIO)
	assert.ErrorIs(t, d.SetFrontend(satProps(27_500_000)), frontend.ErrIO)

	sim.Err = nil
	sim.SetLocked(1, true)
	_, err = d.ReadStatus()
	require.NoError(t, err)
}

func TestFailedTrackingRetriesOnNextPoll(t *testing.T) {
	d, sim := manualDemod(t, ModeDVBS)
	require.NoError(t, d.SetFrontend(satProps(27_500_000)))
	sim.SetLocked(1, true)

	// fail the status reads after the lock has been seen
	d.acq.io.dev.Bus = &failAfter{bus: sim, n: 3}
	_, err := d.ReadStatus()
	assert.ErrorIs(t, err, frontend.ErrIO)
	assert.Equal(t, Locked{Mode: ModeDVBS, FirstLock: true}, d.State())
	assert.Zero(t, d.TrackingOptimizations())

	d.acq.io.dev.Bus = sim
	_, err = d.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, d.TrackingOptimizations())
	assert.Equal(t, Locked{Mode: ModeDVBS}, d.State())
}

// failAfter passes n transactions through and fails the rest
type failAfter struct {
	bus transport.Bus
	n   int
}

func (f *failAfter) Tx(addr uint16, w, r []byte) error {
	if f.n == 0 {
		return errors.New("nack")
	}
	f.n--
	return f.bus.Tx(addr, w, r)
}

func (f *failAfter) String() string { return f.bus.String() }
