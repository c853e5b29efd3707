// dvb-tune tunes one transponder, waits for lock and monitors it
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/herlein/godvb/pkg/board"
	"github.com/herlein/godvb/pkg/chandb"
	"github.com/herlein/godvb/pkg/config"
	"github.com/herlein/godvb/pkg/frontend"
	"github.com/herlein/godvb/pkg/scanner"
	"github.com/herlein/godvb/pkg/usbbridge"
)

var (
	boardFile = pflag.StringP("board", "b", "", "Board configuration file (YAML)")
	deviceSel = pflag.StringP("device", "d", "", usbbridge.DeviceFlagUsage())
	sim       = pflag.Bool("sim", false, "Use the simulated board")
	channel   = pflag.StringP("channel", "c", "", "Tune a channel from the channel database")
	dbPath    = pflag.String("db", "", "Channel database (default from board config)")
	save      = pflag.String("save", "", "Store the transponder under this name once locked")
	delsys    = pflag.String("delsys", "DVB-S2", "Delivery system (DVB-S, DVB-S2, DVB-T, DVB-T2, DVB-C, ...)")
	freqMHz   = pflag.Float64P("freq", "f", 0, "Frequency in MHz (IF for satellite)")
	srMsps    = pflag.Float64P("sr", "s", 27.5, "Symbol rate in Msps")
	bwMHz     = pflag.Float64("bw", 8, "Channel bandwidth in MHz (terrestrial)")
	streamID  = pflag.Int32("stream", frontend.NoStreamID, "Stream ID / PLP (-1 for none)")
	duration  = pflag.Duration("duration", 0, "Monitor duration (0 = until Ctrl+C)")
	interval  = pflag.Duration("interval", scanner.DefaultMonitorInterval, "Monitor sample interval")
	verbose   = pflag.BoolP("verbose", "v", false, "Debug logging")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Tune a DVB frontend and monitor lock quality\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -f 1210 -s 27.5                # DVB-S2 at IF 1210 MHz\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --delsys DVB-T2 -f 474 --bw 8  # DVB-T2 multiplex\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c astra-11954                 # Tune a stored channel\n", os.Args[0])
	}
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := run(); err != nil {
		log.Error("dvb-tune failed", "err", err)
		os.Exit(1)
	}
}

func loadBoard() (*config.BoardConfig, error) {
	cfg := config.DefaultBoard()
	if *boardFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(*boardFile); err != nil {
			return nil, err
		}
	}
	if *sim {
		cfg.Transport.Kind = config.TransportSim
	}
	if *deviceSel != "" {
		cfg.Transport.Device = *deviceSel
	}
	return cfg, nil
}

func openDB(cfg *config.BoardConfig) (*chandb.DB, error) {
	path := *dbPath
	if path == "" {
		path = cfg.Channels
	}
	if path == "" {
		return nil, errors.New("no channel database configured (use --db)")
	}
	return chandb.Open(path)
}

func properties(cfg *config.BoardConfig) (frontend.Properties, error) {
	if *channel != "" {
		db, err := openDB(cfg)
		if err != nil {
			return frontend.Properties{}, err
		}
		defer db.Close()
		ch, err := db.Get(*channel)
		if err != nil {
			return frontend.Properties{}, err
		}
		return ch.Properties, nil
	}

	sys, err := frontend.ParseDeliverySystem(*delsys)
	if err != nil {
		return frontend.Properties{}, err
	}
	p := frontend.Properties{
		DeliverySystem: sys,
		FrequencyHz:    uint32(*freqMHz * 1e6),
		StreamID:       *streamID,
	}
	if sys.IsSatellite() || sys == frontend.SysDVBC || sys == frontend.SysDVBCB {
		p.SymbolRate = uint32(*srMsps * 1e6)
	}
	if !sys.IsSatellite() {
		p.BandwidthHz = uint32(*bwMHz * 1e6)
	}
	return p, p.Validate()
}

func run() error {
	cfg, err := loadBoard()
	if err != nil {
		return err
	}
	p, err := properties(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	b, err := board.Open(cfg, board.Options{})
	if err != nil {
		return err
	}
	defer b.Close()

	fe := b.Frontend
	if err := fe.Init(); err != nil {
		return err
	}
	defer fe.Sleep()

	fmt.Printf("Tuning %s %s", p.DeliverySystem, scanner.FrequencyMHz(p.FrequencyHz))
	if p.SymbolRate != 0 {
		fmt.Printf(" SR %.3f Msps", float64(p.SymbolRate)/1e6)
	}
	fmt.Println()

	if err := fe.Tune(ctx, p); err != nil {
		return err
	}
	st, err := fe.WaitLock(ctx)
	if err != nil {
		return fmt.Errorf("%w (status %s)", err, st)
	}
	stats, err := fe.ReadStats()
	if err != nil {
		return err
	}
	fmt.Printf("Locked: SNR %s  strength %d%%  BER %s\n",
		scanner.SNRdB(float64(stats.SNR)), int(stats.Strength)*100/0xFFFF, stats.BER)

	if *save != "" {
		if err := store(cfg, *save, p, stats); err != nil {
			return err
		}
		fmt.Printf("Stored as %q\n", *save)
	}

	scfg := scanner.DefaultConfig()
	scfg.MonitorInterval = *interval
	scfg.OnLocked = func(info *scanner.TransponderInfo) {
		fmt.Printf("LOCK: %s  SNR %s\n", scanner.FrequencyMHz(info.Transponder.FrequencyHz), scanner.SNRdB(info.SNR))
	}
	scfg.OnLost = func(info *scanner.TransponderInfo) {
		fmt.Printf("LOST: %s  last SNR %s\n", scanner.FrequencyMHz(info.Transponder.FrequencyHz), scanner.SNRdB(info.SNR))
	}
	sc, err := scanner.New(fe, scfg, nil, nil)
	if err != nil {
		return err
	}
	if err := sc.Start(p); err != nil {
		return err
	}
	if *duration > 0 {
		fmt.Printf("Monitoring for %v...\n", *duration)
	} else {
		fmt.Println("Monitoring... (Press Ctrl+C to stop)")
	}
	<-ctx.Done()
	if err := sc.Stop(); err != nil {
		return err
	}

	fmt.Printf("\n--- Summary ---\n")
	if info := sc.Tracker().Active(); info != nil {
		fmt.Printf("Held:    %s\n", scanner.FrequencyMHz(info.Transponder.FrequencyHz))
		fmt.Printf("SNR:     %s (max %s)\n", scanner.SNRdB(info.SNR), scanner.SNRdB(float64(info.MaxSNR)))
		fmt.Printf("Samples: %d over %v\n", info.LockCount, info.LastLocked.Sub(info.FirstLocked).Round(time.Second))
	} else {
		fmt.Println("Lock lost")
	}
	return nil
}

func store(cfg *config.BoardConfig, name string, p frontend.Properties, stats frontend.Stats) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Put(chandb.Channel{
		Name:       name,
		Properties: p,
		SNR:        stats.SNR,
		Strength:   stats.Strength,
		LastLocked: time.Now(),
	})
}
