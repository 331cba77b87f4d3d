// Package core defines core data structures with zero external dependencies.
package core

// Packet is one link-layer frame handed over by the I/O substrate.
type Packet struct {
	Data    []byte // Mutable frame, rewritten in place
	Len     uint32 // Total frame length as seen by the stack
	GSOSegs uint16 // Logical segments carried by Data (0 and 1 both mean one)
	GSOSize uint16 // Segment size hint, only used for diagnostics
}

// Verdict is what the substrate does with the buffer. There is no drop.
type Verdict uint8

const (
	VerdictForward Verdict = iota
)

func (v Verdict) String() string {
	return "forward"
}

// Reason records which step decided the fate of a packet.
type Reason uint8

const (
	ReasonTranslated   Reason = iota // Rewritten in place
	ReasonNotIP                      // Ethertype neither IPv4 nor IPv6
	ReasonTruncated                  // A header did not fit in the buffer
	ReasonFragment                   // IP fragment
	ReasonProtocol                   // Transport is not the one this direction translates
	ReasonHeaderLength               // Transport data offset out of [20, 60]
	ReasonPort                       // Not the tunneled flow
	ReasonUrgent                     // TCP urgent data has no slot in TINU
	ReasonOffload                    // GSO/GRO still active
	ReasonChecksum                   // Checksum range above the summing ceiling
)

var reasonNames = [...]string{
	ReasonTranslated:   LabelReasonTranslated,
	ReasonNotIP:        LabelReasonNotIP,
	ReasonTruncated:    LabelReasonTruncated,
	ReasonFragment:     LabelReasonFragment,
	ReasonProtocol:     LabelReasonProtocol,
	ReasonHeaderLength: LabelReasonHeaderLength,
	ReasonPort:         LabelReasonPort,
	ReasonUrgent:       LabelReasonUrgent,
	ReasonOffload:      LabelReasonOffload,
	ReasonChecksum:     LabelReasonChecksum,
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Result is returned for every processed packet.
type Result struct {
	Verdict Verdict
	Reason  Reason
}

// Translated reports whether the buffer was rewritten.
func (r Result) Translated() bool {
	return r.Reason == ReasonTranslated
}

// EstimateSegments guesses how many wire segments a frame of frameLen bytes
// carries when the substrate has no offload metadata: any Ethernet payload
// above mtu is taken as a GSO or GRO aggregate of mtu-sized segments.
func EstimateSegments(frameLen, mtu int) (segs, size uint16) {
	payload := frameLen - ethernetHeaderLen
	if mtu <= 0 || payload <= mtu {
		return 1, 0
	}
	n := (payload + mtu - 1) / mtu
	if n > 0xffff {
		n = 0xffff
	}
	return uint16(n), uint16(mtu)
}

const ethernetHeaderLen = 14
