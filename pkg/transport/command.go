package transport

import (
	"fmt"
	"time"
)

// Status byte bits of command-protocol chips
const (
	StatusReady = 0x80
	StatusError = 0x40
)

// CommandOptions tunes ExecuteCommand
type CommandOptions struct {
	// CheckErrorBit turns a set bit 6 in the reply into ErrErrorBit
	CheckErrorBit bool

	// PollInterval is slept between reads; zero busy-polls
	PollInterval time.Duration
}

// ExecuteCommand writes a command and polls n-byte replies until the ready bit
// (bit 7 of byte 0) is set. The deadline is fixed at loop entry. A command with
// n == 0 is fire-and-forget.
func (d *Device) ExecuteCommand(w []byte, n int, timeout time.Duration, opts CommandOptions) ([]byte, error) {
	if len(w) > 0 {
		if err := d.WriteRaw(w); err != nil {
			return nil, err
		}
	}
	if n == 0 {
		return nil, nil
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	clk := d.clock()
	deadline := clk.Now().Add(timeout)
	for {
		r, err := d.ReadRaw(n)
		if err != nil {
			return nil, err
		}
		if r[0]&StatusReady != 0 {
			if opts.CheckErrorBit && r[0]&StatusError != 0 {
				return r, fmt.Errorf("command 0x%02X status 0x%02X: %w", cmdByte(w), r[0], ErrErrorBit)
			}
			return r, nil
		}
		if !clk.Now().Before(deadline) {
			return nil, fmt.Errorf("command 0x%02X not ready after %v: %w", cmdByte(w), timeout, ErrTimeout)
		}
		if opts.PollInterval > 0 {
			clk.Sleep(opts.PollInterval)
		}
	}
}

func cmdByte(w []byte) byte {
	if len(w) == 0 {
		return 0
	}
	return w[0]
}
