// lsbridge lists the TBS USB DVB adapters connected to the system
package main

import (
	"fmt"
	"os"

	"github.com/google/gousb"
	"github.com/spf13/pflag"

	"github.com/herlein/godvb/pkg/si2168"
	"github.com/herlein/godvb/pkg/stv0910"
	"github.com/herlein/godvb/pkg/usbbridge"
)

func main() {
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output (show additional device details)")
	detect := pflag.BoolP("detect", "d", false, "Identify the demodulator behind each bridge")
	pflag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	bridges, err := usbbridge.FindAllDevices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(bridges) == 0 {
		fmt.Println("No TBS bridge adapters found")
		os.Exit(0)
	}

	fmt.Printf("Found %d adapter(s):\n", len(bridges))
	fmt.Println()

	for i, b := range bridges {
		defer b.Close()

		if *verbose {
			fmt.Printf("Adapter #%d:\n", i)
			fmt.Printf("  Model:        %s\n", usbbridge.ProductNames[b.ProductID])
			fmt.Printf("  Serial:       %s\n", b.Serial)
			fmt.Printf("  Bus:Address:  %d:%d\n", b.Bus, b.Address)
			fmt.Printf("  Manufacturer: %s\n", b.Manufacturer)
			fmt.Printf("  Product:      %s\n", b.Product)
		} else {
			fmt.Printf("  #%d  %-10s  %s  %d:%d\n", i, usbbridge.ProductNames[b.ProductID], b.Serial, b.Bus, b.Address)
		}
		if *detect {
			fmt.Printf("  Demod:        %s\n", detectDemod(b))
		}
		if *verbose {
			fmt.Println()
		}
	}

	if !*verbose {
		fmt.Println()
		fmt.Println("Use -d with other tools to select an adapter:")
		fmt.Println("  -d \"#0\"      Select by index")
		fmt.Println("  -d \"1:10\"    Select by bus:address")
		fmt.Println("  -d \"009a\"    Select by serial (if unique)")
	}
}

// detectDemod resets the demodulator and looks for a known chip
func detectDemod(b *usbbridge.Bridge) string {
	if err := b.ResetDemod(); err != nil {
		return fmt.Sprintf("(reset failed: %v)", err)
	}
	if id, err := stv0910.ReadChipID(b, stv0910.DefaultAddr); err == nil {
		if id == stv0910.ChipID {
			return fmt.Sprintf("STV0910 at 0x%02X", stv0910.DefaultAddr)
		}
		return fmt.Sprintf("unknown chip 0x%02X at 0x%02X", id, stv0910.DefaultAddr)
	}
	if err := b.Tx(si2168.DefaultAddr, nil, make([]byte, 1)); err == nil {
		return fmt.Sprintf("Si2168/Si2183 at 0x%02X", si2168.DefaultAddr)
	}
	return "none found"
}
