// Package decoder implements the zero-allocation L2-L3 header walk that
// locates the transport header inside a link-layer frame.
package decoder

import "firestige.xyz/tinu/internal/core"

// View holds offsets into the frame it was parsed from. It owns no memory;
// every offset has been checked against the frame length by Parse.
type View struct {
	IPOffset  int   // Start of the IPv4 or IPv6 header
	IPVersion uint8 // 4 or 6, never both
	Protocol  uint8 // IPv4 protocol or IPv6 next header
	L4Offset  int   // First byte after the IP header
	End       int   // End of the IP datagram, link padding excluded
	Fragment  bool  // IPv4 MF flag or non-zero fragment offset
}

// Parse walks Ethernet and IP headers of data. It never reads past
// len(data) and returns a sentinel error from core on any failure.
func Parse(data []byte) (View, error) {
	etherType, offset, err := decodeEthernet(data)
	if err != nil {
		return View{}, err
	}

	switch etherType {
	case etherTypeIPv4:
		return decodeIPv4(data, offset)
	case etherTypeIPv6:
		return decodeIPv6(data, offset)
	default:
		return View{}, core.ErrUnsupportedProto
	}
}

// Segment returns the transport header and payload.
func (v View) Segment(data []byte) []byte {
	return data[v.L4Offset:v.End]
}
