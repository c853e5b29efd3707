// Package hostbus opens Linux host I2C buses (/dev/i2c-N) through periph.io.
package hostbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/herlein/godvb/pkg/transport"
)

var initOnce struct {
	sync.Once
	err error
}

// Open opens the named I2C bus ("" for the first one, "1", "/dev/i2c-1", ...)
func Open(name string) (transport.BusCloser, error) {
	initOnce.Do(func() {
		_, initOnce.err = host.Init()
	})
	if initOnce.err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", initOnce.err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open i2c bus %q: %w", transport.ErrIO, name, err)
	}
	return bus, nil
}

// List returns the names of the registered host I2C buses
func List() ([]string, error) {
	initOnce.Do(func() {
		_, initOnce.err = host.Init()
	})
	if initOnce.err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", initOnce.err)
	}

	var names []string
	for _, ref := range i2creg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}
