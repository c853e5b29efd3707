// dvb-cal runs tuner bring-up and saves the calibration it measured
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/herlein/godvb/pkg/board"
	"github.com/herlein/godvb/pkg/config"
	"github.com/herlein/godvb/pkg/r848"
	"github.com/herlein/godvb/pkg/usbbridge"
)

var (
	boardFile = pflag.StringP("board", "b", "", "Board configuration file (YAML)")
	deviceSel = pflag.StringP("device", "d", "", usbbridge.DeviceFlagUsage())
	sim       = pflag.Bool("sim", false, "Use the simulated board")
	outFile   = pflag.StringP("output", "o", "", "Calibration file (default etc/godvb/<board>-cal.yaml)")
	filters   = pflag.Bool("filters", true, "Also calibrate the filter of every standard")
	verbose   = pflag.BoolP("verbose", "v", false, "Debug logging")
)

func main() {
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := run(); err != nil {
		log.Error("dvb-cal failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.DefaultBoard()
	if *boardFile != "" {
		var err error
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

	b, err := board.Open(cfg, board.Options{})
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Println("Running tuner bring-up...")
	if err := b.Frontend.Init(); err != nil {
		return err
	}
	defer b.Frontend.Sleep()

	if *filters {
		if err := calibrateFilters(b); err != nil {
			return err
		}
	}

	tunerCfg := cfg.R848()
	cal := config.DumpFromTuner(cfg.Name, tunerCfg.XtalHz, b.Tuner, time.Now())

	path := *outFile
	if path == "" {
		path = config.GetCalibrationPath(cfg.Name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := config.SaveCalibration(cal, path); err != nil {
		return err
	}

	fmt.Printf("\nCrystal: %d Hz, drive %d\n", cal.XtalHz, cal.XtalDrive)
	fmt.Println("\nImage rejection:")
	for i, pt := range cal.IMR {
		fmt.Printf("  #%d  %s\n", i, pt)
	}
	if len(cal.FilterCodes) > 0 {
		fmt.Println("\nFilter codes:")
		for std := r848.Standard(0); std.Valid(); std++ {
			if code, ok := cal.FilterCodes[std.String()]; ok {
				fmt.Printf("  %-10s %d\n", std, code)
			}
		}
	}
	fmt.Printf("\nSaved to %s\n", path)
	return nil
}

// calibrateFilters selects every standard once with the tuner gate open
func calibrateFilters(b *board.Board) error {
	if err := b.Demod.GateCtrl(true); err != nil {
		return err
	}
	defer b.Demod.GateCtrl(false)

	for std := r848.Standard(0); std.Valid(); std++ {
		if err := b.Tuner.SetStandard(std); err != nil {
			return err
		}
	}
	return nil
}
