package tinu

import (
	"encoding/binary"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/core/checksum"
	"firestige.xyz/tinu/internal/core/decoder"
)

// TCPToTINU rewrites the TCP segment described by v into TINU framing and
// recomputes every checksum that covers the rewritten bytes. All checks run
// before the first write, so on error data is left untouched.
func TCPToTINU(data []byte, v decoder.View) error {
	seg, hlen, err := prepare(data, v, decoder.ProtocolTCP)
	if err != nil {
		return err
	}

	var scratch [MaxHeaderLen]byte
	copy(scratch[:hlen], data[v.L4Offset:v.L4Offset+hlen])

	seq := TCPHeader(scratch[:hlen]).Seq()
	h := Header(scratch[:hlen])
	h.SetLength(uint16(seg))
	h.SetChecksum(0)
	h.SetSeq(seq)
	copy(data[v.L4Offset:v.L4Offset+hlen], scratch[:hlen])

	setProtocol(data, v, decoder.ProtocolUDP)
	csum := transportChecksum(data, v, decoder.ProtocolUDP)
	binary.BigEndian.PutUint16(data[v.L4Offset+UDPChecksumOffset:], csum)
	return nil
}

// TINUToTCP is the inverse of TCPToTINU. The urgent pointer comes back as
// zero since TINU has no slot for it.
func TINUToTCP(data []byte, v decoder.View) error {
	_, hlen, err := prepare(data, v, decoder.ProtocolUDP)
	if err != nil {
		return err
	}

	var scratch [MaxHeaderLen]byte
	copy(scratch[:hlen], data[v.L4Offset:v.L4Offset+hlen])

	seq := Header(scratch[:hlen]).Seq()
	tcp := TCPHeader(scratch[:hlen])
	tcp.SetSeq(seq)
	tcp.SetChecksum(0)
	tcp.SetUrgent(0)
	copy(data[v.L4Offset:v.L4Offset+hlen], scratch[:hlen])

	setProtocol(data, v, decoder.ProtocolTCP)
	csum := transportChecksum(data, v, decoder.ProtocolTCP)
	binary.BigEndian.PutUint16(data[v.L4Offset+TCPChecksumOffset:], csum)
	return nil
}

// prepare validates everything the rewrite will touch and returns the
// segment length and the header length.
func prepare(data []byte, v decoder.View, proto uint8) (int, int, error) {
	if v.Protocol != proto {
		return 0, 0, core.ErrUnsupportedProto
	}
	if v.IPVersion != 4 && v.IPVersion != 6 {
		return 0, 0, core.ErrUnsupportedProto
	}
	if v.L4Offset < 0 || v.L4Offset > v.End || v.End > len(data) {
		return 0, 0, core.ErrPacketTooShort
	}

	seg := v.End - v.L4Offset
	hlen, err := HeaderLen(data[v.L4Offset:v.End])
	if err != nil {
		return 0, 0, err
	}
	if seg > checksum.MaxPartialLen {
		return 0, 0, core.ErrChecksumRange
	}
	return seg, hlen, nil
}

// setProtocol flips the IPv4 protocol field, adjusting the header checksum
// for that single word, or the IPv6 next header field.
func setProtocol(data []byte, v decoder.View, proto uint8) {
	ip := data[v.IPOffset:]
	switch v.IPVersion {
	case 4:
		// TTL and protocol share one 16-bit word
		word := ip[decoder.IPv4ProtocolOffset-1:]
		old := binary.BigEndian.Uint16(word)
		ip[decoder.IPv4ProtocolOffset] = proto
		check := binary.BigEndian.Uint16(ip[decoder.IPv4ChecksumOffset:])
		check = checksum.Adjust(check, old, binary.BigEndian.Uint16(word))
		binary.BigEndian.PutUint16(ip[decoder.IPv4ChecksumOffset:], check)
	case 6:
		ip[decoder.IPv6NextHeaderOffset] = proto
	}
}

// transportChecksum sums the segment with its checksum field zeroed. The
// range ends at the datagram end, so Partial sees data[:v.End] as its limit.
func transportChecksum(data []byte, v decoder.View, proto uint8) uint16 {
	seg := v.End - v.L4Offset
	sum := checksum.Partial(data[:v.End], v.L4Offset, seg)
	src, dst := v.Addrs(data)
	csum, _ := checksum.PseudoHeader(src, dst, seg, proto, sum)
	return csum
}
