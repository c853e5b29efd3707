// dvb-scan tries every transponder in a scan list and stores the ones that
// lock in the channel database
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/herlein/godvb/pkg/board"
	"github.com/herlein/godvb/pkg/chandb"
	"github.com/herlein/godvb/pkg/config"
	"github.com/herlein/godvb/pkg/scanner"
	"github.com/herlein/godvb/pkg/usbbridge"
)

var (
	boardFile = pflag.StringP("board", "b", "", "Board configuration file (YAML)")
	deviceSel = pflag.StringP("device", "d", "", usbbridge.DeviceFlagUsage())
	sim       = pflag.Bool("sim", false, "Use the simulated board")
	listFile  = pflag.StringP("list", "l", "", "Scan list file (YAML, required)")
	dbPath    = pflag.String("db", "", "Channel database (default from board config)")
	dryRun    = pflag.BoolP("dry-run", "n", false, "Do not store locked transponders")
	quiet     = pflag.BoolP("quiet", "q", false, "Only show locked transponders")
	verbose   = pflag.BoolP("verbose", "v", false, "Debug logging")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -l LIST [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Scan a list of DVB transponders\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := run(); err != nil {
		log.Error("dvb-scan failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	if *listFile == "" {
		pflag.Usage()
		return fmt.Errorf("a scan list is required")
	}
	list, err := config.LoadScanList(*listFile)
	if err != nil {
		return err
	}

	cfg := config.DefaultBoard()
	if *boardFile != "" {
		if cfg, err = config.LoadFromFile(*boardFile); err != nil {
			return err
		}
	}
	if *sim {
		cfg.Transport.Kind = config.TransportSim
	}
	if *deviceSel != "" {
		cfg.Transport.Device = *deviceSel
	}

	var db *chandb.DB
	if !*dryRun {
		path := *dbPath
		if path == "" {
			path = cfg.Channels
		}
		if path == "" {
			return fmt.Errorf("no channel database configured (use --db or --dry-run)")
		}
		if db, err = chandb.Open(path); err != nil {
			return err
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	scfg := scanner.DefaultConfig()
	scfg.Transponders = list.Transponders
	sc, err := scanner.New(fe, scfg, nil, nil)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %d transponder(s) on %s\n\n", len(list.Transponders), b.Bus)
	results, err := sc.Scan(ctx, nil)
	if err != nil {
		return err
	}

	if !*quiet {
		fmt.Println(" System  | Frequency        | Result  |     SNR | Time")
		fmt.Println("---------+------------------+---------+---------+--------")
	}
	found := 0
	for _, r := range results {
		if !r.Locked {
			if !*quiet {
				fmt.Printf(" %-7s | %16s | %-7s | %7s | %v\n",
					r.Transponder.DeliverySystem, scanner.FrequencyMHz(r.Transponder.FrequencyHz), "no lock", "-", r.Elapsed)
			}
			continue
		}
		found++
		fmt.Printf(" %-7s | %16s | %-7s | %7s | %v\n",
			r.Transponder.DeliverySystem, scanner.FrequencyMHz(r.Transponder.FrequencyHz), "LOCKED",
			scanner.SNRdB(float64(r.Stats.SNR)), r.Elapsed)

		if db == nil {
			continue
		}
		err := db.Put(chandb.Channel{
			Name:       chandb.DefaultName(r.Transponder),
			Properties: r.Transponder,
			SNR:        r.Stats.SNR,
			Strength:   r.Stats.Strength,
			LastLocked: r.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Scanned: %d\n", len(results))
	fmt.Printf("Locked:  %d\n", found)
	if db != nil {
		fmt.Printf("Stored in %s\n", db.Path())
	}
	return nil
}
