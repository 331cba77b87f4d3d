// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/tinu/internal/core"
)

const (
	IPv4HeaderMinLen = 20
	IPv4HeaderMaxLen = 60
	IPv6HeaderLen    = 40

	// Field offsets inside the IPv4 header
	IPv4ProtocolOffset = 9
	IPv4ChecksumOffset = 10
	ipv4SrcAddrOffset  = 12
	ipv4DstAddrOffset  = 16

	// Field offsets inside the IPv6 header
	IPv6NextHeaderOffset = 6
	ipv6SrcAddrOffset    = 8
	ipv6DstAddrOffset    = 24
)

// decodeIPv4 validates the fixed header, then the variable header length
// (IHL) and the total length against the frame.
func decodeIPv4(data []byte, off int) (View, error) {
	if len(data) < off+IPv4HeaderMinLen {
		return View{}, core.ErrPacketTooShort
	}

	ip := data[off:]
	if ip[0]>>4 != 4 {
		return View{}, core.ErrUnsupportedProto
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte
	headerLen := int(ip[0]&0x0F) * 4 // IHL is in 32-bit words
	if headerLen < IPv4HeaderMinLen {
		return View{}, core.ErrHeaderLength
	}
	if len(ip) < headerLen {
		return View{}, core.ErrPacketTooShort
	}

	// Total Length (2 bytes at offset 2)
	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < headerLen {
		return View{}, core.ErrHeaderLength
	}
	if len(ip) < totalLen {
		return View{}, core.ErrPacketTooShort
	}

	// Flags and Fragment Offset (2 bytes at offset 6)
	flagsOffset := binary.BigEndian.Uint16(ip[6:8])
	moreFragments := flagsOffset&0x2000 != 0
	fragmentOffset := flagsOffset & 0x1FFF

	return View{
		IPOffset:  off,
		IPVersion: 4,
		Protocol:  ip[IPv4ProtocolOffset],
		L4Offset:  off + headerLen,
		End:       off + totalLen,
		Fragment:  moreFragments || fragmentOffset != 0,
	}, nil
}

// decodeIPv6 validates the fixed header only. Extension headers are not
// walked, so Protocol is whatever the first next-header field says.
func decodeIPv6(data []byte, off int) (View, error) {
	if len(data) < off+IPv6HeaderLen {
		return View{}, core.ErrPacketTooShort
	}

	ip := data[off:]
	if ip[0]>>4 != 6 {
		return View{}, core.ErrUnsupportedProto
	}

	// Payload Length (2 bytes at offset 4)
	payloadLen := int(binary.BigEndian.Uint16(ip[4:6]))
	if len(ip) < IPv6HeaderLen+payloadLen {
		return View{}, core.ErrPacketTooShort
	}

	return View{
		IPOffset:  off,
		IPVersion: 6,
		Protocol:  ip[IPv6NextHeaderOffset],
		L4Offset:  off + IPv6HeaderLen,
		End:       off + IPv6HeaderLen + payloadLen,
	}, nil
}

// Addrs returns the source and destination addresses as slices of data,
// 4 bytes each for IPv4 and 16 bytes each for IPv6.
func (v View) Addrs(data []byte) (src, dst []byte) {
	switch v.IPVersion {
	case 4:
		ip := data[v.IPOffset:]
		return ip[ipv4SrcAddrOffset : ipv4SrcAddrOffset+4], ip[ipv4DstAddrOffset : ipv4DstAddrOffset+4]
	case 6:
		ip := data[v.IPOffset:]
		return ip[ipv6SrcAddrOffset : ipv6SrcAddrOffset+16], ip[ipv6DstAddrOffset : ipv6DstAddrOffset+16]
	default:
		return nil, nil
	}
}
