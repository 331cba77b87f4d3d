// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. The packet path returns these unwrapped so that a failed
// parse never allocates.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("tinu: packet too short")
	ErrUnsupportedProto = errors.New("tinu: unsupported protocol")
	ErrHeaderLength     = errors.New("tinu: header length out of range")
	ErrFragment         = errors.New("tinu: fragmented packet")

	// Transcoding errors
	ErrChecksumRange = errors.New("tinu: checksum range exceeds ceiling")

	// Configuration errors
	ErrConfigInvalid = errors.New("tinu: invalid configuration")
)
