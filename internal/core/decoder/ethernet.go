// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/tinu/internal/core"
)

const (
	// Ethernet constants
	EthernetHeaderLen = 14

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
)

// decodeEthernet returns the EtherType and the offset of the network header.
// VLAN tags are not walked: a tagged frame reports the tag type and is
// passed through by the caller.
func decodeEthernet(data []byte) (uint16, int, error) {
	if len(data) < EthernetHeaderLen {
		return 0, 0, core.ErrPacketTooShort
	}

	// EtherType (2 bytes after both MACs)
	etherType := binary.BigEndian.Uint16(data[12:14])
	return etherType, EthernetHeaderLen, nil
}
