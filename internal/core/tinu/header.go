// Package tinu defines the TCP and TINU header layouts and rewrites one into
// the other in place.
//
// A TINU header is a UDP header followed by the TCP fields UDP has no room
// for:
//
//	 0               1               2               3
//	+---------------+---------------+---------------+---------------+
//	|          Source Port          |       Destination Port        |
//	+---------------+---------------+---------------+---------------+
//	|            Length             |           Checksum            |
//	+---------------+---------------+---------------+---------------+
//	|                    Acknowledgment Number                      |
//	+-------+-------+---------------+---------------+---------------+
//	|  Off  |  Res  |     Flags     |            Window             |
//	+-------+-------+---------------+---------------+---------------+
//	|                       Sequence Number                         |
//	+---------------+---------------+---------------+---------------+
//	|                    Options (mirrored from TCP)                |
//
// Acknowledgment, data offset, flags, window and options keep their TCP
// offsets; only the sequence number moves, to where TCP keeps its checksum
// and urgent pointer.
package tinu

import (
	"encoding/binary"
	"strings"

	"firestige.xyz/tinu/internal/core"
)

const (
	// MinHeaderLen is the size of both a bare TCP and a bare TINU header.
	MinHeaderLen = 20
	// MaxHeaderLen is the largest data offset TCP can encode.
	MaxHeaderLen = 60

	// DefaultPort identifies the tunneled flow on both framings.
	DefaultPort = 5201
)

// Offsets shared by both layouts
const (
	srcPortOffset    = 0
	dstPortOffset    = 2
	ackOffset        = 8
	dataOffsetOffset = 12
	flagsOffset      = 13
	windowOffset     = 14
)

// TCP only
const (
	tcpSeqOffset      = 4
	TCPChecksumOffset = 16
	tcpUrgentOffset   = 18
)

// TINU only
const (
	lengthOffset      = 4
	UDPChecksumOffset = 6
	tinuSeqOffset     = 16
)

// Flags is the TCP flag byte, bit order as on the wire.
type Flags uint8

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
)

var flagNames = [...]string{"FIN", "SYN", "RST", "PSH", "ACK", "URG", "ECE", "CWR"}

func (f Flags) Has(mask Flags) bool { return f&mask == mask }

func (f Flags) String() string {
	var names []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// HeaderLen reads the data offset of a TCP or TINU header and checks it
// against [MinHeaderLen, MaxHeaderLen] and against the segment length.
func HeaderLen(seg []byte) (int, error) {
	if len(seg) < MinHeaderLen {
		return 0, core.ErrPacketTooShort
	}
	n := int(seg[dataOffsetOffset]>>4) * 4
	if n < MinHeaderLen || n > MaxHeaderLen {
		return 0, core.ErrHeaderLength
	}
	if n > len(seg) {
		return 0, core.ErrPacketTooShort
	}
	return n, nil
}

// TCPHeader is a byte view of a TCP header. Callers size it with HeaderLen.
type TCPHeader []byte

func (h TCPHeader) SrcPort() uint16 { return binary.BigEndian.Uint16(h[srcPortOffset:]) }
func (h TCPHeader) DstPort() uint16 { return binary.BigEndian.Uint16(h[dstPortOffset:]) }
func (h TCPHeader) Seq() uint32 { return binary.BigEndian.Uint32(h[tcpSeqOffset:]) }
func (h TCPHeader) Ack() uint32 { return binary.BigEndian.Uint32(h[ackOffset:]) }
func (h TCPHeader) DataOffset() int { return int(h[dataOffsetOffset]>>4) * 4 }
func (h TCPHeader) Flags() Flags { return Flags(h[flagsOffset]) }
func (h TCPHeader) Window() uint16 { return binary.BigEndian.Uint16(h[windowOffset:]) }
func (h TCPHeader) Checksum() uint16 { return binary.BigEndian.Uint16(h[TCPChecksumOffset:]) }
func (h TCPHeader) Urgent() uint16 { return binary.BigEndian.Uint16(h[tcpUrgentOffset:]) }
func (h TCPHeader) SetSeq(v uint32) { binary.BigEndian.PutUint32(h[tcpSeqOffset:], v) }
func (h TCPHeader) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h[TCPChecksumOffset:], v) }
func (h TCPHeader) SetUrgent(v uint16) { binary.BigEndian.PutUint16(h[tcpUrgentOffset:], v) }

// Header is a byte view of a TINU header.
type Header []byte

func (h Header) SrcPort() uint16 { return binary.BigEndian.Uint16(h[srcPortOffset:]) }
func (h Header) DstPort() uint16 { return binary.BigEndian.Uint16(h[dstPortOffset:]) }
func (h Header) Length() uint16 { return binary.BigEndian.Uint16(h[lengthOffset:]) }
func (h Header) Checksum() uint16 { return binary.BigEndian.Uint16(h[UDPChecksumOffset:]) }
func (h Header) Ack() uint32 { return binary.BigEndian.Uint32(h[ackOffset:]) }
func (h Header) DataOffset() int { return int(h[dataOffsetOffset]>>4) * 4 }
func (h Header) Flags() Flags { return Flags(h[flagsOffset]) }
func (h Header) Window() uint16 { return binary.BigEndian.Uint16(h[windowOffset:]) }
func (h Header) Seq() uint32 { return binary.BigEndian.Uint32(h[tinuSeqOffset:]) }
func (h Header) SetLength(v uint16) { binary.BigEndian.PutUint16(h[lengthOffset:], v) }
func (h Header) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h[UDPChecksumOffset:], v) }
func (h Header) SetSeq(v uint32) { binary.BigEndian.PutUint32(h[tinuSeqOffset:], v) }
