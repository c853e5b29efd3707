package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// replyBus answers every read with the next scripted status byte
type replyBus struct {
	writes  [][]byte
	replies [][]byte
	reads   int
}

func (b *replyBus) Tx(addr uint16, w, r []byte) error {
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	if len(r) > 0 {
		i := b.reads
		if i >= len(b.replies) {
			i = len(b.replies) - 1
		}
		copy(r, b.replies[i])
		b.reads++
	}
	return nil
}

func (b *replyBus) String() string { return "reply" }

func TestExecuteCommandReady(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x64, W: []byte{0x02}},
			{Addr: 0x64, R: []byte{0x00, 0x00}},
			{Addr: 0x64, R: []byte{0x80, 0x44}},
		},
		DontPanic: true,
	}
	dev := NewDevice(bus, 0x64)
	dev.Clock = NewFakeClock()

	r, err := dev.ExecuteCommand([]byte{0x02}, 2, 0, CommandOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x44}, r)
	assert.NoError(t, bus.Close())
}

func TestExecuteCommandTimeout(t *testing.T) {
	bus := &replyBus{replies: [][]byte{{0x00}}}
	clk := NewFakeClock()
	clk.Step = time.Millisecond
	dev := &Device{Bus: bus, Addr: 0x64, RegWidth: 1, Clock: clk}

	_, err := dev.ExecuteCommand([]byte{0x14, 0x00}, 1, 10*time.Millisecond, CommandOptions{})
	assert.ErrorIs(t, err, ErrTimeout)
	// deadline is fixed at entry, so the poll count is bounded by timeout/step
	assert.LessOrEqual(t, bus.reads, 11)
}

func TestExecuteCommandErrorBit(t *testing.T) {
	bus := &replyBus{replies: [][]byte{{0xC0, 0x00}}}
	dev := &Device{Bus: bus, Addr: 0x64, Clock: NewFakeClock()}

	_, err := dev.ExecuteCommand([]byte{0x12}, 2, 0, CommandOptions{CheckErrorBit: true})
	assert.ErrorIs(t, err, ErrErrorBit)

	r, err := dev.ExecuteCommand([]byte{0x12}, 2, 0, CommandOptions{})
	require.NoError(t, err)
	assert.Equal(t, byte(0xC0), r[0])
}

func TestExecuteCommandPollInterval(t *testing.T) {
	bus := &replyBus{replies: [][]byte{{0x00}, {0x00}, {0x80}}}
	clk := NewFakeClock()
	dev := &Device{Bus: bus, Addr: 0x64, Clock: clk}

	_, err := dev.ExecuteCommand([]byte{0x01}, 1, 50*time.Millisecond, CommandOptions{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, clk.Slept())
}
