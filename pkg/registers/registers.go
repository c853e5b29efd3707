// Package registers models a chip's register shadow as named bit fields.
package registers

import "fmt"

// Field is a logical bit field inside one 8-bit register
type Field struct {
	Name  string
	Reg   uint8 // register address
	Mask  uint8 // mask of the field in place (e.g. 0x70)
	Shift uint8 // position of the field's lsb
}

// F builds a field from its register and bit range [hi:lo]
func F(name string, reg uint8, hi, lo uint8) Field {
	width := hi - lo + 1
	return Field{Name: name, Reg: reg, Mask: uint8((1<<width)-1) << lo, Shift: lo}
}

// Max returns the largest value the field can hold
func (f Field) Max() uint8 {
	return f.Mask >> f.Shift
}

func (f Field) String() string {
	return fmt.Sprintf("%s(R%d[0x%02X])", f.Name, f.Reg, f.Mask)
}

// File is an in-memory copy of a contiguous register block. Writes go to the
// shadow and are marked dirty until flushed.
type File struct {
	base  uint8
	regs  []uint8
	dirty []bool
}

// NewFile creates a shadow of len(init) registers starting at base
func NewFile(base uint8, init []uint8) *File {
	f := &File{
		base:  base,
		regs:  make([]uint8, len(init)),
		dirty: make([]bool, len(init)),
	}
	copy(f.regs, init)
	for i := range f.dirty {
		f.dirty[i] = true
	}
	return f
}

// Base returns the first register address held
func (f *File) Base() uint8 { return f.base }

// Len returns the number of registers held
func (f *File) Len() int { return len(f.regs) }

func (f *File) index(reg uint8) int {
	i := int(reg) - int(f.base)
	if i < 0 || i >= len(f.regs) {
		panic(fmt.Sprintf("registers: R%d outside shadow [%d,%d)", reg, f.base, int(f.base)+len(f.regs)))
	}
	return i
}

// Byte returns the shadow value of a register
func (f *File) Byte(reg uint8) uint8 {
	return f.regs[f.index(reg)]
}

// SetByte replaces a whole register
func (f *File) SetByte(reg uint8, v uint8) {
	i := f.index(reg)
	if f.regs[i] != v {
		f.regs[i] = v
		f.dirty[i] = true
	}
}

// Get extracts a field value
func (f *File) Get(field Field) uint8 {
	return (f.Byte(field.Reg) & field.Mask) >> field.Shift
}

// Set stores a field value, leaving the other bits of the register untouched
func (f *File) Set(field Field, v uint8) {
	cur := f.Byte(field.Reg)
	f.SetByte(field.Reg, (cur&^field.Mask)|((v<<field.Shift)&field.Mask))
}

// SetFlag sets or clears a one-bit field
func (f *File) SetFlag(field Field, on bool) {
	if on {
		f.Set(field, 1)
	} else {
		f.Set(field, 0)
	}
}

// Dirty reports whether reg has unflushed changes
func (f *File) Dirty(reg uint8) bool {
	return f.dirty[f.index(reg)]
}

// MarkAllDirty forces the next flush to rewrite every register
func (f *File) MarkAllDirty() {
	for i := range f.dirty {
		f.dirty[i] = true
	}
}

// Snapshot returns a copy of the shadow bytes
func (f *File) Snapshot() []uint8 {
	return append([]uint8(nil), f.regs...)
}

// Run is a contiguous range of registers to write
type Run struct {
	Reg  uint8
	Data []uint8
}

// DirtyRuns returns the dirty registers grouped into ascending contiguous runs
// and clears their dirty marks.
func (f *File) DirtyRuns() []Run {
	var runs []Run
	for i := 0; i < len(f.regs); i++ {
		if !f.dirty[i] {
			continue
		}
		start := i
		for i < len(f.regs) && f.dirty[i] {
			f.dirty[i] = false
			i++
		}
		runs = append(runs, Run{Reg: f.base + uint8(start), Data: append([]uint8(nil), f.regs[start:i]...)})
	}
	return runs
}

// Write is one register assignment of an init sequence. Reg is wide enough
// for chips with 16-bit register maps.
type Write struct {
	Reg uint16
	Val uint8
}

// List is an ordered register initialization sequence
type List []Write
