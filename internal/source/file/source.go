// Package file runs capture files through a gate, offline. The output is
// always classic pcap with the input's link type and timestamps.
package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/gate"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

const defaultSnapLen = 65536

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Stats counts replayed frames by Reason.
type Stats struct {
	Frames  int
	Reasons map[core.Reason]int
}

func (s Stats) Translated() int {
	return s.Reasons[core.ReasonTranslated]
}

// Options tune a replay. MTU, when set, lets oversized frames count as
// offload aggregates the way a live substrate would report them.
type Options struct {
	MTU int
}

// Replay reads pcap or pcapng from r, processes every frame with g and
// writes the result to w as pcap.
func Replay(r io.Reader, w io.Writer, g *gate.Gate, opts Options) (Stats, error) {
	stats := Stats{Reasons: make(map[core.Reason]int)}

	pr, snapLen, err := openReader(r)
	if err != nil {
		return stats, err
	}
	if pr.LinkType() != layers.LinkTypeEthernet {
		return stats, fmt.Errorf("unsupported link type %s, only Ethernet captures can be replayed", pr.LinkType())
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return stats, fmt.Errorf("failed to write pcap header: %w", err)
	}

	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read frame %d: %w", stats.Frames+1, err)
		}

		pkt := core.Packet{Data: data, Len: uint32(ci.Length), GSOSegs: 1}
		if ci.CaptureLength == ci.Length {
			pkt.GSOSegs, pkt.GSOSize = core.EstimateSegments(ci.Length, opts.MTU)
		}
		res := g.Process(&pkt)
		stats.Frames++
		stats.Reasons[res.Reason]++

		ci.CaptureLength = len(data)
		if err := pw.WritePacket(ci, data); err != nil {
			return stats, fmt.Errorf("failed to write frame %d: %w", stats.Frames, err)
		}
	}
}

// ReplayFile is Replay over two paths.
func ReplayFile(in, out string, g *gate.Gate, opts Options) (Stats, error) {
	src, err := os.Open(in)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture file %s: %w", in, err)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create capture file %s: %w", out, err)
	}
	bw := bufio.NewWriter(dst)

	stats, err := Replay(src, bw, g, opts)
	if ferr := bw.Flush(); err == nil && ferr != nil {
		err = ferr
	}
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return stats, err
}

func openReader(r io.Reader) (packetReader, uint32, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read capture header: %w", err)
	}

	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open pcapng: %w", err)
		}
		return ng, defaultSnapLen, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open pcap: %w", err)
	}
	snapLen := pr.Snaplen()
	if snapLen == 0 {
		snapLen = defaultSnapLen
	}
	return pr, snapLen, nil
}
