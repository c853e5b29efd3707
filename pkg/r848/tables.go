package r848

// rfBand selects front-end filter settings for RF frequencies up to maxKHz
type rfBand struct {
	maxKHz  uint32
	lnaBand uint8
	rfPoly  uint8
	tfCode  uint8
}

// bandPlan is a family of RF range tables
type bandPlan struct {
	name   string
	minKHz uint32
	bands  []rfBand
}

func (bp *bandPlan) lookup(rfKHz uint32) (rfBand, bool) {
	if rfKHz < bp.minKHz {
		return rfBand{}, false
	}
	for _, b := range bp.bands {
		if rfKHz <= b.maxKHz {
			return b, true
		}
	}
	return rfBand{}, false
}

var dtvPlan = bandPlan{
	name:   "dtv",
	minKHz: 42_000,
	bands: []rfBand{
		{49_000, 3, 2, 0x66},
		{75_000, 3, 2, 0x4A},
		{108_000, 3, 2, 0x30},
		{150_000, 2, 2, 0x22},
		{230_000, 2, 1, 0x14},
		{340_000, 1, 1, 0x0C},
		{460_000, 1, 0, 0x07},
		{620_000, 0, 0, 0x04},
		{790_000, 0, 0, 0x02},
		{1_002_000, 0, 0, 0x00},
	},
}

var atscPlan = bandPlan{
	name:   "atsc",
	minKHz: 54_000,
	bands: []rfBand{
		{72_000, 3, 2, 0x6A},
		{88_000, 3, 2, 0x4E},
		{174_000, 2, 2, 0x34},
		{216_000, 2, 1, 0x24},
		{340_000, 1, 1, 0x0E},
		{470_000, 1, 0, 0x08},
		{698_000, 0, 0, 0x04},
		{806_000, 0, 0, 0x02},
		{1_002_000, 0, 0, 0x00},
	},
}

var satPlan = bandPlan{
	name:   "sat",
	minKHz: 950_000,
	bands: []rfBand{
		{1_150_000, 0, 3, 0x00},
		{1_550_000, 0, 3, 0x00},
		{2_150_000, 0, 3, 0x00},
	},
}

// pllBiasTable maps the integer divide ratio to charge pump and VCO bias
var pllBiasTable = []struct {
	maxNint uint16
	cp      uint8
	bias    uint8
}{
	{80, 0, 2},
	{110, 1, 2},
	{140, 2, 3},
	{180, 3, 3},
	{230, 4, 4},
	{0xFFFF, 5, 4},
}

const maxVCOBias = 7

// IMR calibration bins: the ring oscillator divided down to five tones
const (
	NumIMRBins = 5
	fullBin    = 3

	ringVCOKHz = 3_456_000
	imrIFKHz   = 5_300
)

var ringDividers = [NumIMRBins]uint32{48, 16, 8, 6, 4}

// binOrder calibrates the full-search bin first so the others can seed from it
var binOrder = [NumIMRBins]int{fullBin, 0, 1, 2, 4}

// RingKHz returns the ring oscillator tone used for bin
func RingKHz(bin int) uint32 {
	return ringVCOKHz / ringDividers[bin]
}

// binForLO picks the calibration bin nearest to an LO frequency
func binForLO(loKHz uint32) int {
	for bin := 0; bin < NumIMRBins-1; bin++ {
		if loKHz < (RingKHz(bin)+RingKHz(bin+1))/2 {
			return bin
		}
	}
	return NumIMRBins - 1
}
