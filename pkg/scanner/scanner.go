package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"

	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/transport"
)

// Frontend is what the scanner drives; *frontend.Frontend implements it
type Frontend interface {
	Tune(ctx context.Context, p frontend.Properties) error
	WaitLock(ctx context.Context) (frontend.Status, error)
	ReadStats() (frontend.Stats, error)
}

// Scanner tunes transponder lists and monitors one locked transponder
type Scanner struct {
	fe     Frontend
	config *ScanConfig
	clock  transport.Clock
	log    *log.Logger

	mu      sync.RWMutex
	monitor *tomb.Tomb

	tracker *LockTracker

	// smoothMu guards smoother, which the monitor updates
	smoothMu sync.Mutex
	smoother *Smoother
	logEvery *rate.Sometimes
}

// New creates a Scanner. A nil config uses DefaultConfig; a nil clock or
// logger uses the system ones.
func New(fe Frontend, config *ScanConfig, clock transport.Clock, logger *log.Logger) (*Scanner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = transport.SystemClock{}
	}
	if logger == nil {
		logger = log.Default().WithPrefix("scanner")
	}

	s := &Scanner{
		fe:     fe,
		config: config,
		clock:  clock,
		log:    logger,
		tracker: NewLockTracker(
			config.HoldMax,
			config.LostThreshold,
			config.FrequencyResolution,
		),
		logEvery: &rate.Sometimes{First: 1, Interval: config.LogInterval},
	}
	if config.SmoothingEnabled {
		s.smoother = NewSmootherWithParams(
			config.SmoothThreshold,
			config.SmoothKFast,
			config.SmoothKSlow,
		)
	}
	s.tracker.SetCallbacks(config.OnLocked, config.OnLost)
	return s, nil
}

// Config returns the current configuration
func (s *Scanner) Config() *ScanConfig {
	return s.config
}

// Tracker returns the lock tracker
func (s *Scanner) Tracker() *LockTracker {
	return s.tracker
}

// record smooths the SNR of a locked result and feeds the tracker
func (s *Scanner) record(result *ScanResult) {
	snr := float64(result.Stats.SNR)
	if s.smoother != nil && result.Locked {
		s.smoothMu.Lock()
		snr = s.smoother.Update(snr)
		s.smoothMu.Unlock()
	}
	s.tracker.Update(result, snr)
}

func (s *Scanner) resetSmoother() {
	if s.smoother == nil {
		return
	}
	s.smoothMu.Lock()
	s.smoother.Reset()
	s.smoothMu.Unlock()
}

// ScanOnce tunes one transponder and waits for lock. Tune and lock failures
// are reported in the result; only a cancelled context is returned as an
// error.
func (s *Scanner) ScanOnce(ctx context.Context, p frontend.Properties) (*ScanResult, error) {
	start := s.clock.Now()
	result := &ScanResult{Transponder: p, Timestamp: start}
	defer func() { result.Elapsed = s.clock.Now().Sub(start) }()

	s.log.Debug("scan", "freq", FrequencyMHz(p.FrequencyHz), "system", p.DeliverySystem, "sr", p.SymbolRate)

	if err := s.fe.Tune(ctx, p); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Err = err
		s.log.Warn("tune failed", "freq", FrequencyMHz(p.FrequencyHz), "err", err)
		return result, nil
	}

	st, err := s.fe.WaitLock(ctx)
	result.Status = st
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Err = err
		s.log.Info("no lock", "freq", FrequencyMHz(p.FrequencyHz), "status", st)
		return result, nil
	}

	result.Locked = true
	if result.Stats, err = s.fe.ReadStats(); err != nil {
		result.Err = fmt.Errorf("failed to read stats: %w", err)
	}
	s.log.Info("locked", "freq", FrequencyMHz(p.FrequencyHz), "snr", SNRdB(float64(result.Stats.SNR)), "ber", result.Stats.BER.Ratio())
	return result, nil
}

// Scan tries every transponder in list, or the configured ones when list is
// empty, and records each outcome in the tracker
func (s *Scanner) Scan(ctx context.Context, list []frontend.Properties) ([]*ScanResult, error) {
	if len(list) == 0 {
		list = s.config.Transponders
	}
	if len(list) == 0 {
		return nil, ErrNoTransponders
	}

	results := make([]*ScanResult, 0, len(list))
	for _, p := range list {
		result, err := s.ScanOnce(ctx, p)
		if err != nil {
			return results, err
		}
		s.resetSmoother()
		s.record(result)
		results = append(results, result)
	}
	return results, nil
}

// Start monitors the transponder the frontend is tuned to. Samples are taken
// every MonitorInterval until Stop.
func (s *Scanner) Start(p frontend.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitor != nil {
		return ErrMonitorRunning
	}
	t := &tomb.Tomb{}
	s.monitor = t
	s.resetSmoother()
	t.Go(func() error {
		return s.run(t, p)
	})
	s.log.Info("monitor started", "freq", FrequencyMHz(p.FrequencyHz))
	return nil
}

// Stop ends the monitor and waits for it
func (s *Scanner) Stop() error {
	s.mu.Lock()
	t := s.monitor
	s.monitor = nil
	s.mu.Unlock()

	if t == nil {
		return ErrMonitorNotRunning
	}
	t.Kill(nil)
	return t.Wait()
}

// IsRunning returns true while the monitor runs
func (s *Scanner) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor != nil
}

func (s *Scanner) run(t *tomb.Tomb, p frontend.Properties) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case <-s.clock.After(s.config.MonitorInterval):
		}
		s.sample(p)
	}
}

// sample reads stats once; a read failure counts as an unlocked sample
func (s *Scanner) sample(p frontend.Properties) {
	result := &ScanResult{Transponder: p, Timestamp: s.clock.Now()}
	stats, err := s.fe.ReadStats()
	if err != nil {
		result.Err = err
		s.log.Warn("stats failed", "err", err)
	} else {
		result.Stats = stats
		result.Status = stats.Status
		result.Locked = stats.Status.Locked()
	}
	s.record(result)

	s.logEvery.Do(func() {
		if info := s.tracker.Active(); info != nil {
			s.log.Info("monitor", "freq", FrequencyMHz(p.FrequencyHz), "snr", SNRdB(info.SNR),
				"strength", info.Strength, "ber", info.BER.Ratio(), "status", result.Status)
			return
		}
		s.log.Info("monitor", "freq", FrequencyMHz(p.FrequencyHz), "status", result.Status)
	})
}

// ClearHistory clears all tracked transponders
func (s *Scanner) ClearHistory() {
	s.tracker.Clear()
	s.resetSmoother()
}
