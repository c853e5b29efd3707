// bridge-reset resets TBS USB adapters to recover from USB errors
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"
	"github.com/spf13/pflag"

	"github.com/herlein/godvb/pkg/usbbridge"
)

func main() {
	deviceSel := pflag.StringP("device", "d", "", "Reset only the selected adapter. "+usbbridge.DeviceFlagUsage())
	attempts := pflag.IntP("attempts", "n", 3, "Attempts to find adapters")
	pflag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	// Try multiple times to find devices
	for attempt := 0; attempt < *attempts; attempt++ {
		var bridges []*usbbridge.Bridge
		var err error
		if *deviceSel != "" {
			var b *usbbridge.Bridge
			if b, err = usbbridge.SelectDevice(ctx, usbbridge.DeviceSelector(*deviceSel)); err == nil {
				bridges = []*usbbridge.Bridge{b}
			}
		} else {
			bridges, err = usbbridge.FindAllDevices(ctx)
		}

		if err != nil {
			fmt.Printf("Attempt %d: Error finding adapters: %v\n", attempt+1, err)
			time.Sleep(time.Second)
			continue
		}

		if len(bridges) == 0 {
			fmt.Printf("Attempt %d: No adapters found\n", attempt+1)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("Found %d adapter(s)\n", len(bridges))
		for i, b := range bridges {
			fmt.Printf("  Adapter %d: %s %s\n", i, b, b.Serial)

			if err := b.Reset(); err != nil {
				fmt.Printf("    Reset failed: %v\n", err)
			} else {
				fmt.Printf("    Reset OK\n")
			}
			b.Close()
		}
		os.Exit(0)
	}

	fmt.Printf("Failed to find/reset adapters after %d attempts\n", *attempts)
	os.Exit(1)
}
