package frontend

import "strings"

// Status is the bit set reported by ReadStatus
type Status uint32

const (
	HasSignal  Status = 0x01
	HasCarrier Status = 0x02
	HasViterbi Status = 0x04
	HasSync    Status = 0x08
	HasLock    Status = 0x10
	TimedOut   Status = 0x20
)

// Has reports whether all bits in mask are set
func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

// Locked reports full lock
func (s Status) Locked() bool {
	return s.Has(HasLock)
}

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for _, b := range []struct {
		bit  Status
		name string
	}{
		{HasSignal, "SIGNAL"},
		{HasCarrier, "CARRIER"},
		{HasViterbi, "VITERBI"},
		{HasSync, "SYNC"},
		{HasLock, "LOCK"},
		{TimedOut, "TIMEDOUT"},
	} {
		if s&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, "|")
}
