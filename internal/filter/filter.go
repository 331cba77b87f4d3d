// Package filter assembles classic BPF programs for the AF_PACKET handles.
// Programs are built from golang.org/x/net/bpf instructions, so no libpcap
// is needed at runtime.
package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86dd

	protoTCP = 6
	protoUDP = 17

	// linux/if_packet.h
	packetOutgoing = 4
)

// Port accepts untagged IPv4 and IPv6 frames whose TCP or UDP source or
// destination port equals port, keeping up to snapLen bytes. IPv4
// fragments past the first are rejected since they carry no ports.
func Port(port uint16, snapLen uint32) []bpf.Instruction {
	p := uint32(port)
	return []bpf.Instruction{
		/* 0 */ bpf.LoadAbsolute{Off: 12, Size: 2},
		/* 1 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 10},

		// IPv4
		/* 2 */ bpf.LoadAbsolute{Off: 23, Size: 1},
		/* 3 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoTCP, SkipTrue: 1},
		/* 4 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoUDP, SkipFalse: 15},
		/* 5 */ bpf.LoadAbsolute{Off: 20, Size: 2},
		/* 6 */ bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 13},
		/* 7 */ bpf.LoadMemShift{Off: 14},
		/* 8 */ bpf.LoadIndirect{Off: 14, Size: 2},
		/* 9 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 11},
		/* 10 */ bpf.LoadIndirect{Off: 16, Size: 2},
		/* 11 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 9, SkipFalse: 8},

		// IPv6, fixed header only
		/* 12 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv6, SkipFalse: 7},
		/* 13 */ bpf.LoadAbsolute{Off: 20, Size: 1},
		/* 14 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoTCP, SkipTrue: 1},
		/* 15 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoUDP, SkipFalse: 4},
		/* 16 */ bpf.LoadAbsolute{Off: 54, Size: 2},
		/* 17 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 3},
		/* 18 */ bpf.LoadAbsolute{Off: 56, Size: 2},
		/* 19 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 1},

		/* 20 */ bpf.RetConstant{Val: 0},
		/* 21 */ bpf.RetConstant{Val: snapLen},
	}
}

// NotOutgoing drops frames the host itself transmitted on the interface,
// so a bridge handle only sees what arrives from the wire.
func NotOutgoing(snapLen uint32) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: packetOutgoing, SkipTrue: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	}
}

// Assemble converts a program into the form SetBPF takes.
func Assemble(prog []bpf.Instruction) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF filter: %w", err)
	}
	return raw, nil
}
