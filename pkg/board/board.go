// Package board assembles a frontend from a board description: it opens the
// bus, pulses the demodulator reset line and wires the drivers together.
package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/gousb"
	"github.com/warthog618/go-gpiocdev"

	"github.com/herlein/godvb/pkg/config"
	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/r848"
	"github.com/herlein/godvb/pkg/si2168"
	"github.com/herlein/godvb/pkg/stv0910"
	"github.com/herlein/godvb/pkg/transport"
	"github.com/herlein/godvb/pkg/transport/hostbus"
	"github.com/herlein/godvb/pkg/usbbridge"
)

const defaultResetPulse = 20 * time.Millisecond

// Options are the process-level dependencies of a board
type Options struct {
	Clock  transport.Clock
	Logger *log.Logger
}

// Board is an assembled frontend and the resources behind it
type Board struct {
	Name     string
	Frontend *frontend.Frontend
	Demod    frontend.Demod
	Tuner    *r848.Tuner
	Bus      transport.Bus

	// Sims is set for the sim transport
	Sims *Sims

	closers []func() error
	log     *log.Logger
}

// resetLine is the part of a GPIO line request a reset needs
type resetLine interface {
	SetValue(value int) error
	Close() error
}

// requestLine opens a GPIO line as an inactive output
var requestLine = func(chip string, offset int, activeLow bool) (resetLine, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("godvb")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	return gpiocdev.RequestLine(chip, offset, opts...)
}

// Open builds the board described by cfg. The frontend is not initialized.
func Open(cfg *config.BoardConfig, opts Options) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = transport.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	b := &Board{Name: cfg.Name, log: opts.Logger.WithPrefix("board")}

	if err := b.openBus(cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.reset(cfg, opts.Clock); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.build(cfg, opts); err != nil {
		b.Close()
		return nil, err
	}
	b.log.Info("board ready", "name", cfg.Name, "bus", b.Bus, "demod", cfg.Demod.Type)
	return b, nil
}

func (b *Board) openBus(cfg *config.BoardConfig) error {
	switch cfg.Transport.Kind {
	case config.TransportHost:
		bus, err := hostbus.Open(cfg.Transport.Bus)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, bus.Close)
		b.Bus = transport.NewLocked(bus)

	case config.TransportUSB:
		ctx := gousb.NewContext()
		b.closers = append(b.closers, ctx.Close)
		bridge, err := usbbridge.SelectDevice(ctx, usbbridge.DeviceSelector(cfg.Transport.Device))
		if err != nil {
			return fmt.Errorf("failed to open bridge: %w", err)
		}
		bridge.SetLogger(b.log.WithPrefix("usbbridge"))
		b.closers = append(b.closers, bridge.Close)
		b.Bus = bridge

	case config.TransportSim:
		b.Sims = NewSims(cfg)
		b.Bus = transport.NewLocked(b.Sims)
	}
	return nil
}

// reset pulses the configured GPIO line, or the bridge reset when the bridge
// carries the line
func (b *Board) reset(cfg *config.BoardConfig, clock transport.Clock) error {
	if cfg.Reset == nil {
		if bridge, ok := b.Bus.(*usbbridge.Bridge); ok {
			return bridge.ResetDemod()
		}
		return nil
	}
	line, err := requestLine(cfg.Reset.Chip, cfg.Reset.Line, cfg.Reset.ActiveLow)
	if err != nil {
		return fmt.Errorf("failed to request reset line %s/%d: %w", cfg.Reset.Chip, cfg.Reset.Line, err)
	}
	defer line.Close()

	pulse := cfg.Reset.Pulse
	if pulse == 0 {
		pulse = defaultResetPulse
	}
	if err := line.SetValue(1); err != nil {
		return fmt.Errorf("failed to assert reset: %w", err)
	}
	clock.Sleep(pulse)
	if err := line.SetValue(0); err != nil {
		return fmt.Errorf("failed to release reset: %w", err)
	}
	clock.Sleep(pulse)
	b.log.Debug("reset pulsed", "chip", cfg.Reset.Chip, "line", cfg.Reset.Line)
	return nil
}

func (b *Board) build(cfg *config.BoardConfig, opts Options) error {
	switch cfg.Demod.Type {
	case config.DemodSTV0910:
		dc := cfg.STV0910()
		dc.Clock = opts.Clock
		dc.Logger = opts.Logger.WithPrefix("stv0910")
		if b.Sims != nil {
			dc.Registry = stv0910.NewRegistry()
		}
		d, err := stv0910.New(b.Bus, dc)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, d.Close)
		b.Demod = d

	case config.DemodSi2168:
		dc := cfg.Si2168()
		dc.Clock = opts.Clock
		dc.Logger = opts.Logger.WithPrefix("si2168")
		if b.Sims != nil {
			dc.Registry = si2168.NewRegistry()
		}
		d, err := si2168.New(b.Bus, dc)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, d.Close)
		b.Demod = d
	}

	tc := cfg.R848()
	tc.Clock = opts.Clock
	tc.Logger = opts.Logger.WithPrefix("r848")
	tuner, err := r848.New(b.Bus, tc)
	if err != nil {
		return err
	}
	b.Tuner = tuner

	fc := cfg.FrontendPolicy()
	fc.Clock = opts.Clock
	fc.Logger = opts.Logger.WithPrefix("frontend")
	b.Frontend, err = frontend.New(b.Demod, tuner, fc)
	return err
}

// Close releases everything Open acquired, newest first
func (b *Board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
