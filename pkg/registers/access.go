package registers

import (
	"fmt"

	"github.com/herlein/godvb/pkg/transport"
)

// Writer is the subset of transport.Device the helpers need
type Writer interface {
	Write(reg uint16, data []byte) error
}

var _ Writer = (*transport.Device)(nil)

// Flush writes every dirty register of the shadow to the chip
func Flush(dev Writer, f *File) error {
	for _, run := range f.DirtyRuns() {
		if err := dev.Write(uint16(run.Reg), run.Data); err != nil {
			// unflushed bytes must go out again on the next attempt
			for i := range run.Data {
				f.dirty[f.index(run.Reg)+i] = true
			}
			return fmt.Errorf("failed to flush R%d..R%d: %w", run.Reg, int(run.Reg)+len(run.Data)-1, err)
		}
	}
	return nil
}

// WriteField updates a field in the shadow and writes its register immediately
func WriteField(dev Writer, f *File, field Field, v uint8) error {
	f.Set(field, v)
	reg := field.Reg
	if err := dev.Write(uint16(reg), []byte{f.Byte(reg)}); err != nil {
		return fmt.Errorf("failed to write %s: %w", field.Name, err)
	}
	f.dirty[f.index(reg)] = false
	return nil
}

// Apply loads an init sequence into the shadow and flushes it
func Apply(dev Writer, f *File, list List) error {
	for _, w := range list {
		f.SetByte(uint8(w.Reg), w.Val)
	}
	return Flush(dev, f)
}

// WriteAll writes an init sequence straight to the chip, in order, for chips
// that are not shadowed
func WriteAll(dev Writer, list List) error {
	for _, w := range list {
		if err := dev.Write(w.Reg, []byte{w.Val}); err != nil {
			return fmt.Errorf("failed to write 0x%04X=0x%02X: %w", w.Reg, w.Val, err)
		}
	}
	return nil
}
