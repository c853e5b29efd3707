package usbbridge

import "time"

// USB Device Identifiers
const (
	VendorID = 0x734C // TurboSight

	ProductID5520SE = 0x5520
	ProductID5580   = 0x5580
	ProductID5590   = 0x5590
	ProductID5880   = 0x5880
	ProductID5927   = 0x5927
)

// ProductNames lists the adapters the bridge protocol is known to work with
var ProductNames = map[uint16]string{
	ProductID5520SE: "TBS 5520SE",
	ProductID5580:   "TBS 5580",
	ProductID5590:   "TBS 5590",
	ProductID5880:   "TBS 5880",
	ProductID5927:   "TBS 5927",
}

// Vendor requests (EP0 control transfers)
const (
	ReqI2CWrite     = 0x80 // len+1, addr<<1, data...
	ReqI2CReadSetup = 0x90 // read len, addr<<1, register bytes...
	ReqI2CReadData  = 0x91 // returns the bytes of the pending read
	ReqGPIO         = 0x8A // pin, level
)

// USB request types
const (
	RequestTypeVendorIn  = 0xC0 // Vendor request, device to host
	RequestTypeVendorOut = 0x40 // Vendor request, host to device
)

// MaxTransfer is the EP0 buffer of the bridge firmware
const MaxTransfer = 64

// GPIO lines of the bridge
const (
	GPIODemodReset = 7
	GPIOLNBPower   = 6
)

// Timings
const (
	ResetPulse   = 50 * time.Millisecond
	ResetSettle  = 100 * time.Millisecond
	ReadSetupGap = 5 * time.Millisecond
)
