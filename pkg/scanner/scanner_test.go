package scanner

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/transport"
)

var errTune = errors.New("tune failed")

type fakeFrontend struct {
	mu      sync.Mutex
	locks   map[uint32]bool
	tuneErr map[uint32]error
	current uint32
	snr     int32
	statErr error
	tuned   []uint32
}

func newFakeFrontend() *fakeFrontend {
	return &fakeFrontend{
		locks:   make(map[uint32]bool),
		tuneErr: make(map[uint32]error),
		snr:     120,
	}
}

func (f *fakeFrontend) Tune(ctx context.Context, p frontend.Properties) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.tuned = append(f.tuned, p.FrequencyHz)
	f.current = p.FrequencyHz
	return f.tuneErr[p.FrequencyHz]
}

func (f *fakeFrontend) WaitLock(ctx context.Context) (frontend.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[f.current] {
		return frontend.HasSignal | frontend.HasCarrier | frontend.HasLock, nil
	}
	return frontend.HasSignal | frontend.TimedOut, frontend.ErrNoLock
}

func (f *fakeFrontend) ReadStats() (frontend.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return frontend.Stats{}, f.statErr
	}
	st := frontend.Stats{Strength: 0x8000, BER: frontend.BER{Numerator: 1, Denominator: 1000}}
	if f.locks[f.current] {
		st.Status = frontend.HasSignal | frontend.HasCarrier | frontend.HasLock
		st.SNR = f.snr
	}
	return st, nil
}

func (f *fakeFrontend) setLocked(hz uint32, locked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[hz] = locked
}

func sat(hz uint32) frontend.Properties {
	return frontend.Properties{
		DeliverySystem: frontend.SysDVBS2,
		FrequencyHz:    hz,
		SymbolRate:     27_500_000,
		StreamID:       frontend.NoStreamID,
	}
}

func newScanner(t *testing.T, fe Frontend, cfg *ScanConfig) *Scanner {
	t.Helper()
	s, err := New(fe, cfg, transport.NewFakeClock(), log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func TestScanRecordsOutcomes(t *testing.T) {
	fe := newFakeFrontend()
	fe.setLocked(1_210_000_000, true)
	fe.tuneErr[1_300_000_000] = errTune

	s := newScanner(t, fe, nil)
	results, err := s.Scan(context.Background(), []frontend.Properties{
		sat(1_210_000_000), sat(1_250_000_000), sat(1_300_000_000),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Locked)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(120), results[0].Stats.SNR)

	assert.False(t, results[1].Locked)
	assert.ErrorIs(t, results[1].Err, frontend.ErrNoLock)
	assert.True(t, results[1].Status.Has(frontend.TimedOut))

	assert.False(t, results[2].Locked)
	assert.ErrorIs(t, results[2].Err, errTune)

	all := s.Tracker().All()
	require.Len(t, all, 1)
	assert.Equal(t, uint32(1_210_000_000), all[0].Transponder.FrequencyHz)
	assert.Equal(t, uint32(1), all[0].LockCount)
}

func TestScanUsesConfiguredTransponders(t *testing.T) {
	fe := newFakeFrontend()
	cfg := DefaultConfig()
	cfg.Transponders = []frontend.Properties{sat(1_100_000_000), sat(1_200_000_000)}

	s := newScanner(t, fe, cfg)
	results, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []uint32{1_100_000_000, 1_200_000_000}, fe.tuned)
}

func TestScanWithoutTransponders(t *testing.T) {
	s := newScanner(t, newFakeFrontend(), nil)
	_, err := s.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTransponders)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScanner(t, newFakeFrontend(), nil)
	results, err := s.Scan(ctx, []frontend.Properties{sat(1_210_000_000)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorInterval = 0
	_, err := New(newFakeFrontend(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	cfg = DefaultConfig()
	cfg.LostThreshold = cfg.HoldMax
	_, err = New(newFakeFrontend(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidHold)

	cfg = DefaultConfig()
	cfg.Transponders = []frontend.Properties{{FrequencyHz: 1_000_000_000}}
	_, err = New(newFakeFrontend(), cfg, nil, nil)
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
}

func TestMonitorLifecycle(t *testing.T) {
	fe := newFakeFrontend()
	fe.setLocked(1_210_000_000, true)
	fe.current = 1_210_000_000

	locked := make(chan *TransponderInfo, 1)
	cfg := DefaultConfig()
	cfg.OnLocked = func(info *TransponderInfo) { locked <- info }

	s := newScanner(t, fe, cfg)
	assert.ErrorIs(t, s.Stop(), ErrMonitorNotRunning)

	require.NoError(t, s.Start(sat(1_210_000_000)))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(sat(1_210_000_000)), ErrMonitorRunning)

	select {
	case info := <-locked:
		assert.Equal(t, uint32(1_210_000_000), info.Transponder.FrequencyHz)
	case <-time.After(2 * time.Second):
		t.Fatal("no lock callback")
	}

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.NotNil(t, s.Tracker().Active())
}

func TestMonitorStatsErrorCountsAsMiss(t *testing.T) {
	fe := newFakeFrontend()
	fe.statErr = errors.New("bus gone")

	s := newScanner(t, fe, nil)
	require.NoError(t, s.Start(sat(1_210_000_000)))
	require.Eventually(t, func() bool {
		return s.Tracker().HoldCounter() == 0
	}, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Nil(t, s.Tracker().Active())
	assert.Zero(t, s.Tracker().Count())
}

func TestClearHistoryWhileMonitoring(t *testing.T) {
	fe := newFakeFrontend()
	fe.setLocked(1_210_000_000, true)
	fe.current = 1_210_000_000

	s := newScanner(t, fe, nil)
	require.NoError(t, s.Start(sat(1_210_000_000)))
	for i := 0; i < 100; i++ {
		s.ClearHistory()
	}
	require.Eventually(t, func() bool {
		return s.Tracker().Active() != nil
	}, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
}

func lockedResult(hz uint32, snr int32) *ScanResult {
	return &ScanResult{
		Transponder: sat(hz),
		Locked:      true,
		Stats:       frontend.Stats{SNR: snr},
		Timestamp:   time.Unix(1_700_000_000, 0),
	}
}

func TestTrackerHysteresis(t *testing.T) {
	tr := NewLockTracker(DefaultHoldMax, DefaultLostThreshold, DefaultFrequencyResolution)
	lost := make(chan *TransponderInfo, 1)
	tr.SetCallbacks(nil, func(info *TransponderInfo) { lost <- info })

	tr.Update(lockedResult(1_210_000_000, 100), 100)
	assert.True(t, tr.IsActive())
	assert.Equal(t, DefaultHoldMax, tr.HoldCounter())

	miss := &ScanResult{Transponder: sat(1_210_000_000)}
	for i := 0; i < DefaultHoldMax-DefaultLostThreshold; i++ {
		tr.Update(miss, 0)
	}
	assert.Equal(t, DefaultLostThreshold, tr.HoldCounter())
	select {
	case info := <-lost:
		assert.Equal(t, uint32(1_210_000_000), info.Transponder.FrequencyHz)
	case <-time.After(time.Second):
		t.Fatal("no lost callback")
	}
	assert.True(t, tr.IsActive())

	for i := 0; i < DefaultLostThreshold; i++ {
		tr.Update(miss, 0)
	}
	assert.False(t, tr.IsActive())
	assert.Nil(t, tr.Active())

	tr.Update(miss, 0)
	assert.Zero(t, tr.HoldCounter())
	assert.Equal(t, 1, tr.Count())
}

func TestTrackerGroupsByResolution(t *testing.T) {
	tr := NewLockTracker(DefaultHoldMax, DefaultLostThreshold, DefaultFrequencyResolution)
	tr.Update(lockedResult(1_210_000_100, 100), 100)
	tr.Update(lockedResult(1_210_000_900, 140), 120)
	tr.Update(lockedResult(1_250_000_000, 80), 80)

	assert.Equal(t, 2, tr.Count())
	for _, info := range tr.All() {
		if info.Transponder.FrequencyHz/DefaultFrequencyResolution == 1210 {
			assert.Equal(t, uint32(2), info.LockCount)
			assert.Equal(t, int32(140), info.MaxSNR)
			assert.Equal(t, 120.0, info.SNR)
		}
	}
	assert.Equal(t, uint32(1_250_000_000), tr.Active().Transponder.FrequencyHz)
}

func TestTrackerPruneOld(t *testing.T) {
	tr := NewLockTracker(DefaultHoldMax, DefaultLostThreshold, DefaultFrequencyResolution)
	old := lockedResult(1_100_000_000, 50)
	tr.Update(old, 50)
	recent := lockedResult(1_200_000_000, 50)
	recent.Timestamp = old.Timestamp.Add(time.Hour)
	tr.Update(recent, 50)

	assert.Equal(t, 1, tr.PruneOld(old.Timestamp.Add(time.Minute)))
	assert.Equal(t, 1, tr.Count())

	tr.Clear()
	assert.Zero(t, tr.Count())
	assert.False(t, tr.IsActive())
}

func TestSmoother(t *testing.T) {
	s := NewSmoother()
	assert.Equal(t, 0.0, s.Update(0))
	assert.InDelta(t, 90.0, s.Update(100), 1e-9)
	assert.InDelta(t, 90.5, s.Update(95), 1e-9)

	s.Reset()
	assert.Equal(t, 42.0, s.Update(42))
	assert.Equal(t, 42.0, s.Value())
}

func TestSmootherStaysWithinInputs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOfN(rapid.Float64Range(-500, 500), 1, 50).Draw(t, "in")
		s := NewSmoother()
		lo, hi := in[0], in[0]
		for _, v := range in {
			lo, hi = min(lo, v), max(hi, v)
			got := s.Update(v)
			if got < lo-1e-9 || got > hi+1e-9 {
				t.Fatalf("smoothed %v outside [%v, %v]", got, lo, hi)
			}
		}
	})
}
