package stv0910

import "github.com/herlein/godvb/pkg/frontend"

// BER window scale bounds
const (
	minBERScale = 2
	maxBERScale = 6

	// the counter widens below berWiden errors and narrows above berNarrow
	berWiden  = 256
	berNarrow = 1024
)

// BCH payload bits per frame, normal then short FEC frames, by modcod.
// Short frames have no 9/10 rate.
var nbch = [2][ModCod32APSK910 + 1]uint32{
	{
		0,
		16008, 21408, 25728, 32208, 38688, 43040, 48408, 51648, 53840, 57472, 58192,
		38688, 43040, 48408, 53840, 57472, 58192,
		43040, 48408, 51648, 53840, 57472, 58192,
		48408, 51648, 53840, 57472, 58192,
	},
	{
		0,
		3072, 5232, 6312, 7032, 9552, 10632, 11712, 12432, 13152, 14232, 0,
		9552, 10632, 11712, 13152, 14232, 0,
		10632, 11712, 12432, 13152, 14232, 0,
		11712, 12432, 13152, 14232, 0,
	},
}

// berCounter accumulates the error counter for one lock. The zero value is
// not valid; use reset.
type berCounter struct {
	numerator   uint32
	denominator uint32
	scale       uint8
}

func (b *berCounter) reset() {
	b.numerator = 0
	b.denominator = 1
	b.scale = minBERScale
}

func (b *berCounter) value() frontend.BER {
	return frontend.BER{Numerator: b.numerator, Denominator: b.denominator}
}

// bitWindow is the DVB-S (and fallback) denominator for the current scale
func (b *berCounter) bitWindow() uint32 {
	return 1 << (uint(b.scale)*2 + 13)
}

// frameWindow is the DVB-S2 denominator for the current scale
func (b *berCounter) frameWindow(mc ModCod, short bool) uint32 {
	var n uint32
	if mc <= ModCod32APSK910 {
		frame := 0
		if short {
			frame = 1
		}
		n = nbch[frame][mc]
	}
	if n == 0 {
		return b.bitWindow()
	}
	return n << (uint(b.scale) * 2)
}

// update records a fresh counter reading taken with the current scale and
// moves the scale when the count leaves the 256..1024 band. It reports
// whether the scale changed.
func (b *berCounter) update(count, denominator uint32) bool {
	b.numerator = count
	b.denominator = denominator
	switch {
	case count < berWiden && b.scale < maxBERScale:
		b.scale++
		return true
	case count > berNarrow && b.scale > minBERScale:
		b.scale--
		return true
	}
	return false
}
