package r848

import "fmt"

// IMR coordinates are 6 bits: bit 5 selects the I path (clear is Q), bits
// 4:0 hold the magnitude.
const (
	imrPathI   = 0x20
	imrMagMask = 0x1F

	// IMRTrial is the magnitude ceiling of a directional climb
	IMRTrial = 9

	// climbSlack is how much worse than the best a climb may measure
	// before it gives up
	climbSlack = 2

	iqcapSteps = 3
)

// Point is one gain/phase trial and its image leakage reading (lower is
// better)
type Point struct {
	Gain  uint8
	Phase uint8
	IQCap uint8
	Value uint8
}

func (p Point) String() string {
	return fmt.Sprintf("gain=%s phase=%s iqcap=%d value=%d", coordString(p.Gain), coordString(p.Phase), p.IQCap, p.Value)
}

func coordString(c uint8) string {
	path := "Q"
	if c&imrPathI != 0 {
		path = "I"
	}
	return fmt.Sprintf("%s%d", path, c&imrMagMask)
}

// CalibrationTable holds the best point per ring oscillator bin
type CalibrationTable [NumIMRBins]Point

// Axis is the coordinate a search step moves along
type Axis uint8

const (
	AxisGain Axis = iota
	AxisPhase
)

func (a Axis) other() Axis {
	return 1 - a
}

func (a Axis) String() string {
	if a == AxisGain {
		return "gain"
	}
	return "phase"
}

// Measurer programs a point and returns its leakage reading
type Measurer interface {
	Measure(p Point) (uint8, error)
}

// Calibrator runs the image rejection search against a Measurer
type Calibrator struct {
	m Measurer
}

// NewCalibrator returns a calibrator reading through m
func NewCalibrator(m Measurer) *Calibrator {
	return &Calibrator{m: m}
}

func (c *Calibrator) measure(p Point) (Point, error) {
	v, err := c.m.Measure(p)
	if err != nil {
		return p, fmt.Errorf("failed to measure %s: %w", p, err)
	}
	p.Value = v
	return p, nil
}

// minPoint returns the lowest reading; the earliest wins a tie
func minPoint(pts []Point) Point {
	best := pts[0]
	for _, p := range pts[1:] {
		if p.Value < best.Value {
			best = p
		}
	}
	return best
}

func coord(p Point, a Axis) uint8 {
	if a == AxisGain {
		return p.Gain
	}
	return p.Phase
}

func withCoord(p Point, a Axis, v uint8) Point {
	if a == AxisGain {
		p.Gain = v
	} else {
		p.Phase = v
	}
	return p
}

// cross measures the origin and its Q/I neighbours at distance 1 and 2 on
// both axes. It returns the origin and the two neighbours at the winner's
// distance along the winning axis. The gain axis wins ties with phase and an
// origin win.
func (c *Calibrator) cross(iqcap uint8) ([3]Point, Axis, error) {
	q1, i1 := uint8(1), uint8(imrPathI|1)
	q2, i2 := uint8(2), uint8(imrPathI|2)
	points := [9]Point{
		{},
		{Phase: q1},
		{Phase: i1},
		{Gain: q1},
		{Gain: i1},
		{Phase: q2},
		{Phase: i2},
		{Gain: q2},
		{Gain: i2},
	}

	var pts [9]Point
	for i, p := range points {
		p.IQCap = iqcap
		m, err := c.measure(p)
		if err != nil {
			return [3]Point{}, 0, err
		}
		pts[i] = m
	}

	lowest := func(idx ...int) int {
		b := idx[0]
		for _, i := range idx[1:] {
			if pts[i].Value < pts[b].Value {
				b = i
			}
		}
		return b
	}
	g := lowest(3, 4, 7, 8)
	ph := lowest(1, 2, 5, 6)

	switch {
	case pts[0].Value <= pts[g].Value && pts[0].Value <= pts[ph].Value:
		return [3]Point{pts[0], pts[3], pts[4]}, AxisGain, nil
	case pts[g].Value <= pts[ph].Value:
		if g >= 7 {
			return [3]Point{pts[0], pts[7], pts[8]}, AxisGain, nil
		}
		return [3]Point{pts[0], pts[3], pts[4]}, AxisGain, nil
	case ph >= 5:
		return [3]Point{pts[0], pts[5], pts[6]}, AxisPhase, nil
	}
	return [3]Point{pts[0], pts[1], pts[2]}, AxisPhase, nil
}

// compareStep climbs away from best along axis one magnitude step at a time.
// A point is kept when it is no worse than the best so far. The climb stops
// when a reading exceeds the best by more than climbSlack or when either
// magnitude reaches IMRTrial.
func (c *Calibrator) compareStep(best Point, axis Axis) (Point, error) {
	cur := best
	for cur.Gain&imrMagMask < IMRTrial && cur.Phase&imrMagMask < IMRTrial {
		cur = withCoord(cur, axis, coord(cur, axis)+1)
		m, err := c.measure(cur)
		if err != nil {
			return best, err
		}
		cur = m
		if cur.Value <= best.Value {
			best = cur
		} else if int(cur.Value)-climbSlack > int(best.Value) {
			break
		}
	}
	return best, nil
}

// tree points v, v+1 and v-1 along axis with the other coordinate taken from
// fixed. Stepping below magnitude 0 crosses to magnitude 1 on the other path.
func (c *Calibrator) tree(fixed Point, axis Axis) ([3]Point, error) {
	v := coord(fixed, axis)
	var down uint8
	if v&imrMagMask == 0 {
		down = (v ^ imrPathI) | 1
	} else {
		down = v - 1
	}

	var out [3]Point
	for i, x := range [3]uint8{v, v + 1, down} {
		m, err := c.measure(withCoord(fixed, axis, x))
		if err != nil {
			return out, err
		}
		out[i] = m
	}
	return out, nil
}

// refine runs a tree along phase and keeps its minimum
func (c *Calibrator) refine(p Point) (Point, error) {
	pts, err := c.tree(p, AxisPhase)
	if err != nil {
		return p, err
	}
	return minPoint(pts[:]), nil
}

// section refines the gain-1, gain and gain+1 columns along phase and returns
// the best of the three
func (c *Calibrator) section(p Point) (Point, error) {
	g := p.Gain
	var left, right uint8
	if g&imrMagMask == 0 {
		left = 1
		right = imrPathI | 1
	} else {
		left = g - 1
		right = g + 1
	}

	var cols [3]Point
	for i, x := range [3]uint8{left, g, right} {
		col := p
		col.Gain = x
		best, err := c.refine(col)
		if err != nil {
			return p, err
		}
		cols[i] = best
	}
	return minPoint(cols[:]), nil
}

// iqcap tries each trim value at the final point and keeps one only if it
// reads strictly lower
func (c *Calibrator) iqcap(p Point) (Point, error) {
	best := p
	for trim := uint8(0); trim < iqcapSteps; trim++ {
		trial := best
		trial.IQCap = trim
		m, err := c.measure(trial)
		if err != nil {
			return best, err
		}
		if m.Value < best.Value {
			best = m
		}
	}
	return best, nil
}

// Full runs the complete search: cross, climb along the winning axis, tree and
// climb along the other axis, then section and iqcap trim.
func (c *Calibrator) Full() (Point, error) {
	pts, axis, err := c.cross(0)
	if err != nil {
		return Point{}, err
	}
	best := minPoint(pts[:])
	if best, err = c.compareStep(best, axis); err != nil {
		return best, err
	}

	tree, err := c.tree(best, axis.other())
	if err != nil {
		return best, err
	}
	best = minPoint(tree[:])
	if best, err = c.compareStep(best, axis.other()); err != nil {
		return best, err
	}
	return c.finish(best)
}

// Fast only runs section and iqcap, starting from seed
func (c *Calibrator) Fast(seed Point) (Point, error) {
	seed.IQCap = 0
	return c.finish(seed)
}

func (c *Calibrator) finish(p Point) (Point, error) {
	best, err := c.section(p)
	if err != nil {
		return best, err
	}
	best.IQCap = 0
	return c.iqcap(best)
}
