package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type failBus struct{ err error }

func (f failBus) Tx(addr uint16, w, r []byte) error { return f.err }
func (f failBus) String() string                    { return "fail" }

func TestDeviceWriteRead8(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0x10, 0xAA, 0xBB}},
			{Addr: 0x68, W: []byte{0x20}, R: []byte{0x01, 0x02, 0x03}},
		},
		DontPanic: true,
	}
	dev := NewDevice(bus, 0x68)

	require.NoError(t, dev.Write(0x10, []byte{0xAA, 0xBB}))
	got, err := dev.Read(0x20, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got)
	assert.NoError(t, bus.Close())
}

func TestDeviceRegWidth16(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0xF4, 0x20, 0x5C}},
			{Addr: 0x68, W: []byte{0xF4, 0x1B}, R: []byte{0x48}},
		},
		DontPanic: true,
	}
	dev := &Device{Bus: bus, Addr: 0x68, RegWidth: 2}

	require.NoError(t, dev.WriteReg(0xF420, 0x5C))
	v, err := dev.ReadReg(0xF41B)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x48), v)
	assert.NoError(t, bus.Close())
}

func TestDeviceWrapsBusFailureAsIO(t *testing.T) {
	cause := errors.New("nack")
	dev := NewDevice(failBus{err: cause}, 0x7A)

	err := dev.WriteReg(0x05, 1)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, cause)

	_, err = dev.ReadRaw(4)
	assert.ErrorIs(t, err, ErrIO)
}

func TestDeviceKeepsTimeoutFromBus(t *testing.T) {
	dev := NewDevice(failBus{err: ErrTimeout}, 0x7A)
	err := dev.WriteReg(0x05, 1)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrIO)
}

func TestFakeClock(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()
	clk.Sleep(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, clk.Now().Sub(start))
	assert.Equal(t, 20*time.Millisecond, clk.Slept())
}
