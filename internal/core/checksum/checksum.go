// Package checksum implements the ones'-complement arithmetic behind the
// IPv4 header checksum and the TCP/UDP pseudo-header checksum.
package checksum

import "encoding/binary"

// MaxPartialLen is the largest transport segment Partial will sum. It covers
// a full segment behind a 20 byte IPv4 header at a 1500 byte MTU.
const MaxPartialLen = 1480

const maxPartialWords = MaxPartialLen / 2

// Partial accumulates the 16-bit big-endian words of buf[off:off+length].
//
// The range must end exactly at len(buf) and length must not exceed
// MaxPartialLen; otherwise Partial returns 0 and the caller must not use the
// result. Every word is bounds-checked before it is read, and the loop runs
// at most MaxPartialLen/2 times whatever the declared length says.
func Partial(buf []byte, off, length int) uint32 {
	if off < 0 || length < 0 || length > MaxPartialLen || off+length != len(buf) {
		return 0
	}

	var sum uint32
	i := 0
	for ; i < maxPartialWords; i++ {
		p := off + 2*i
		if p+2 > len(buf) {
			break
		}
		sum += uint32(binary.BigEndian.Uint16(buf[p : p+2]))
	}

	// left-over byte, if any
	if length%2 != 0 {
		p := off + 2*i
		if p >= len(buf) {
			return sum
		}
		sum += uint32(buf[p]) << 8
	}

	return sum
}

// Sum adds up every word of b without a length ceiling. It is meant for
// verification, not for the packet path.
func Sum(b []byte, initial uint32) uint32 {
	sum := uint64(initial)
	for len(b) >= 2 {
		sum += uint64(binary.BigEndian.Uint16(b))
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint64(b[0]) << 8
	}
	return fold64(sum)
}

// Fold reduces a 32-bit accumulator to 16 bits with end-around carry and
// returns its complement.
func Fold(sum uint32) uint16 {
	sum = (sum & 0xffff) + (sum >> 16)
	sum = (sum & 0xffff) + (sum >> 16)
	return ^uint16(sum)
}

// PseudoHeader folds the pseudo header (addresses, protocol, length) into
// partial and returns the checksum to store in a TCP or UDP header.
// Addresses are either both 4 bytes (IPv4) or both 16 bytes (IPv6). A folded
// value of zero is returned as 0xffff, zero meaning "no checksum" for UDP.
// ok is false when the addresses are malformed.
func PseudoHeader(src, dst []byte, length int, proto uint8, partial uint32) (csum uint16, ok bool) {
	if len(src) != len(dst) || (len(src) != 4 && len(src) != 16) || length < 0 {
		return 0, false
	}

	s := uint64(partial)
	for i := 0; i < len(src); i += 2 {
		s += uint64(binary.BigEndian.Uint16(src[i:]))
		s += uint64(binary.BigEndian.Uint16(dst[i:]))
	}
	s += uint64(proto)
	s += uint64(length>>16) + uint64(length&0xffff)

	csum = Fold(fold64(s))
	if csum == 0 {
		return 0xffff, true
	}
	return csum, true
}

// Adjust updates check after one 16-bit word it covers changed from old to
// new (RFC 1624, eqn. 3), without touching the rest of the header.
func Adjust(check, old, new uint16) uint16 {
	sum := uint32(^check) + uint32(^old) + uint32(new)
	return Fold(sum)
}

// Verify reports whether segment, checksum field included, sums to the
// all-ones value under the pseudo header built from src, dst and proto.
func Verify(src, dst []byte, proto uint8, segment []byte) bool {
	if len(src) != len(dst) || (len(src) != 4 && len(src) != 16) {
		return false
	}
	var s uint64
	for i := 0; i < len(src); i += 2 {
		s += uint64(binary.BigEndian.Uint16(src[i:]))
		s += uint64(binary.BigEndian.Uint16(dst[i:]))
	}
	s += uint64(proto)
	s += uint64(len(segment)>>16) + uint64(len(segment)&0xffff)
	return Fold(Sum(segment, fold64(s))) == 0
}

func fold64(s uint64) uint32 {
	s = (s & 0xffffffff) + (s >> 32)
	s = (s & 0xffffffff) + (s >> 32)
	return uint32(s)
}
