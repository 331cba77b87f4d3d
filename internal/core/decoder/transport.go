// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/tinu/internal/core"
)

const (
	// Protocol numbers
	ProtocolTCP = 6
	ProtocolUDP = 17

	portsLen = 4
)

// Ports reads the source and destination ports, which sit at the same
// offsets in TCP, UDP and TINU headers.
func (v View) Ports(data []byte) (src, dst uint16, err error) {
	if v.End-v.L4Offset < portsLen {
		return 0, 0, core.ErrPacketTooShort
	}
	l4 := data[v.L4Offset:]
	return binary.BigEndian.Uint16(l4[0:2]), binary.BigEndian.Uint16(l4[2:4]), nil
}
