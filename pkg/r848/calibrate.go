package r848

import (
	"fmt"

	"github.com/herlein/godvb/pkg/frontend"
)

const (
	xtalCheckRuns = 3
	vcoBandLow    = 0x23
	vcoBandHigh   = 0x2D

	imrReads = 4

	filterCodes    = 16
	filterCalLOKHz = 56_000
)

func xtalSteps(xtalHz uint32) int {
	if xtalHz == 24_000_000 {
		return 5
	}
	return 16
}

// calibrateXtal runs the crystal check several times and keeps the highest
// drive level any run needed
func (t *Tuner) calibrateXtal() (uint8, error) {
	var drive uint8
	for run := 0; run < xtalCheckRuns; run++ {
		d, err := t.xtalCheck()
		if err != nil {
			return 0, err
		}
		if d > drive {
			drive = d
		}
	}
	t.regs.Set(fXtalDrive, drive)
	if err := t.flush(); err != nil {
		return 0, err
	}
	return drive, nil
}

// xtalCheck raises the crystal drive until the PLL locks inside the expected
// VCO band and returns the first level that does
func (t *Tuner) xtalCheck() (uint8, error) {
	t.regs.SetFlag(fXtalCheck, true)
	drive, err := t.xtalSweep()
	t.regs.SetFlag(fXtalCheck, false)
	if ferr := t.flush(); ferr != nil && err == nil {
		err = ferr
	}
	return drive, err
}

func (t *Tuner) xtalSweep() (uint8, error) {
	steps := xtalSteps(t.cfg.XtalHz)
	for drive := 0; drive < steps; drive++ {
		t.regs.Set(fXtalDrive, uint8(drive))
		if err := t.flush(); err != nil {
			return 0, err
		}
		t.clock.Sleep(xtalSettle)

		b, err := t.readStatus(readLen)
		if err != nil {
			return 0, err
		}
		band := b[rdPLL] & vcoBandMask
		if b[rdPLL]&pllLockBit != 0 && band >= vcoBandLow && band <= vcoBandHigh {
			return uint8(drive), nil
		}
	}
	return 0, fmt.Errorf("%w: no lock in %d drive steps: %w", ErrXtalCheck, steps, frontend.ErrTimeout)
}

// calibrateIMR fills the calibration table. The full search runs on one bin;
// the rest start from its result.
func (t *Tuner) calibrateIMR() (CalibrationTable, error) {
	var table CalibrationTable
	r := t.regs
	r.SetFlag(fRingEnable, true)
	r.SetFlag(fIMREnable, true)

	cal := NewCalibrator(adcMeter{t})
	for _, bin := range binOrder {
		r.Set(fRingDiv, uint8(bin))
		plan, err := Plan(RingKHz(bin)-imrIFKHz, t.cfg.XtalHz, HintCalibration)
		if err != nil {
			return table, err
		}
		if err := t.commit(plan); err != nil {
			return table, fmt.Errorf("IMR bin %d: %w", bin, err)
		}

		var p Point
		if bin == fullBin {
			p, err = cal.Full()
		} else {
			p, err = cal.Fast(table[fullBin])
		}
		if err != nil {
			return table, fmt.Errorf("IMR bin %d: %w", bin, err)
		}
		table[bin] = p
		t.log.Debug("IMR calibrated", "bin", bin, "ring_khz", RingKHz(bin), "point", p)
	}

	r.SetFlag(fRingEnable, false)
	r.SetFlag(fIMREnable, false)
	if err := t.flush(); err != nil {
		return table, err
	}
	return table, nil
}

// adcMeter measures image leakage through the tuner's ADC
type adcMeter struct {
	t *Tuner
}

// Measure programs the point, lets it settle and sums four ADC readings
// less the highest and lowest
func (p adcMeter) Measure(pt Point) (uint8, error) {
	t := p.t
	t.regs.Set(fIMRGain, pt.Gain)
	t.regs.Set(fIMRPhase, pt.Phase)
	t.regs.Set(fIQCap, pt.IQCap)
	if err := t.flush(); err != nil {
		return 0, err
	}
	t.clock.Sleep(imrSettle)

	var sum, lo, hi uint
	lo = adcMask
	for i := 0; i < imrReads; i++ {
		b, err := t.readStatus(2)
		if err != nil {
			return 0, err
		}
		v := uint(b[rdADC] & adcMask)
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return uint8(sum - lo - hi), nil
}

// calibrateFilter sweeps the filter trim and returns the first code whose
// reading falls more than the standard's gap below the code 0 baseline.
// No drop means the widest code.
func (t *Tuner) calibrateFilter(info *standardInfo) (uint8, error) {
	r := t.regs
	r.SetFlag(fFiltCal, true)
	defer r.SetFlag(fFiltCal, false)

	plan, err := Plan(filterCalLOKHz+info.filterCalIFKHz, t.cfg.XtalHz, HintCalibration)
	if err != nil {
		return 0, err
	}
	if err := t.commit(plan); err != nil {
		return 0, err
	}

	var base uint8
	for code := uint8(0); code < filterCodes; code++ {
		r.Set(fFiltCode, code)
		if err := t.flush(); err != nil {
			return 0, err
		}
		t.clock.Sleep(filterSettle)
		b, err := t.readStatus(2)
		if err != nil {
			return 0, err
		}
		adc := b[rdADC] & adcMask
		if code == 0 {
			base = adc
			continue
		}
		if int(adc)+int(info.filterGap) < int(base) {
			return code, nil
		}
	}
	return filterCodes - 1, nil
}
