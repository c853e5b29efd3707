package registers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recorder struct {
	writes []Run
	fail   bool
}

func (r *recorder) Write(reg uint16, data []byte) error {
	if r.fail {
		return errors.New("nack")
	}
	r.writes = append(r.writes, Run{Reg: uint8(reg), Data: append([]uint8(nil), data...)})
	return nil
}

func TestFieldGeometry(t *testing.T) {
	f := F("cp_cur", 25, 6, 4)
	assert.Equal(t, uint8(0x70), f.Mask)
	assert.Equal(t, uint8(4), f.Shift)
	assert.Equal(t, uint8(7), f.Max())
}

func TestSetLeavesOtherBits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		init := rapid.Uint8().Draw(t, "init")
		hi := rapid.Uint8Range(0, 7).Draw(t, "hi")
		lo := rapid.Uint8Range(0, hi).Draw(t, "lo")
		v := rapid.Uint8().Draw(t, "v")

		file := NewFile(8, []uint8{init})
		field := F("x", 8, hi, lo)
		file.Set(field, v)

		got := file.Byte(8)
		assert.Equal(t, init&^field.Mask, got&^field.Mask, "bits outside the field changed")
		assert.Equal(t, v&field.Max(), file.Get(field))
	})
}

func TestDirtyRunsAreContiguous(t *testing.T) {
	file := NewFile(8, make([]uint8, 8))
	file.DirtyRuns()

	file.SetByte(9, 1)
	file.SetByte(10, 2)
	file.SetByte(13, 3)
	file.SetByte(13, 3) // unchanged value stays clean after flush

	runs := file.DirtyRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, Run{Reg: 9, Data: []uint8{1, 2}}, runs[0])
	assert.Equal(t, Run{Reg: 13, Data: []uint8{3}}, runs[1])
	assert.Empty(t, file.DirtyRuns())
}

func TestFlushKeepsDirtyOnError(t *testing.T) {
	file := NewFile(0, []uint8{1, 2, 3})
	rec := &recorder{fail: true}

	require.Error(t, Flush(rec, file))
	assert.True(t, file.Dirty(0))

	rec.fail = false
	require.NoError(t, Flush(rec, file))
	assert.Equal(t, []Run{{Reg: 0, Data: []uint8{1, 2, 3}}}, rec.writes)
}

func TestApplyAndWriteField(t *testing.T) {
	file := NewFile(8, make([]uint8, 4))
	rec := &recorder{}

	require.NoError(t, Apply(rec, file, List{{Reg: 8, Val: 0xC0}, {Reg: 11, Val: 0x01}}))
	rec.writes = nil

	require.NoError(t, WriteField(rec, file, F("g", 8, 5, 0), 0x21))
	assert.Equal(t, []Run{{Reg: 8, Data: []uint8{0xE1}}}, rec.writes)
	assert.False(t, file.Dirty(8))
}

func TestOutOfRangePanics(t *testing.T) {
	file := NewFile(8, make([]uint8, 2))
	assert.Panics(t, func() { file.Byte(7) })
	assert.Panics(t, func() { file.Byte(10) })
}

func TestWriteAllStopsAtFirstError(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, WriteAll(rec, List{{Reg: 0xF1A0, Val: 0x10}, {Reg: 0xF1A1, Val: 0x20}}))
	assert.Equal(t, []Run{{Reg: 0xA0, Data: []uint8{0x10}}, {Reg: 0xA1, Data: []uint8{0x20}}}, rec.writes)

	rec.fail = true
	assert.Error(t, WriteAll(rec, List{{Reg: 1, Val: 1}}))
}
