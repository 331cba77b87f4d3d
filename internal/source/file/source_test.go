package file

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/gate"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/testutil"
)

func newGate(a core.Attachment) *gate.Gate {
	l, _ := log.New(&log.LoggerConfig{Level: "error"})
	return gate.New(gate.Options{Attachment: a, Logger: l})
}

func capture(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	w := pcapgo.NewWriter(buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(f),
			Length:        len(f),
		}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return buf
}

func readAll(t *testing.T, r *bytes.Buffer) [][]byte {
	t.Helper()
	pr, err := pcapgo.NewReader(r)
	require.NoError(t, err)
	var out [][]byte
	for {
		data, _, err := pr.ReadPacketData()
		if err != nil {
			break
		}
		out = append(out, data)
	}
	return out
}

func TestReplayOutbound(t *testing.T) {
	syn := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 5201, Seq: 1000, SYN: true}, nil)
	ssh := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 22, ACK: true}, nil)
	dns := testutil.UDPv4(t, &layers.UDP{SrcPort: 40000, DstPort: 53}, []byte("q"))

	out := &bytes.Buffer{}
	g := newGate(core.Attachment{Direction: core.Outbound, Role: core.Initiator})
	stats, err := Replay(capture(t, syn, ssh, dns), out, g, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 1, stats.Translated())
	assert.Equal(t, 1, stats.Reasons[core.ReasonPort])
	assert.Equal(t, 1, stats.Reasons[core.ReasonProtocol])

	frames := readAll(t, out)
	require.Len(t, frames, 3)
	assert.Equal(t, byte(17), frames[0][14+9])
	assert.True(t, testutil.TransportChecksumValid(frames[0]))
	assert.Equal(t, ssh, frames[1])
	assert.Equal(t, dns, frames[2])
}

func TestReplayRoundTripFiles(t *testing.T) {
	dir := t.TempDir()
	orig := testutil.TCPv6(t, &layers.TCP{SrcPort: 5201, DstPort: 40000, Seq: 9, ACK: true}, []byte("data"))
	in := filepath.Join(dir, "in.pcap")
	require.NoError(t, os.WriteFile(in, capture(t, orig).Bytes(), 0644))

	mid := filepath.Join(dir, "tinu.pcap")
	stats, err := ReplayFile(in, mid, newGate(core.Attachment{Direction: core.Outbound, Role: core.Responder}), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Translated())

	back := filepath.Join(dir, "tcp.pcap")
	stats, err = ReplayFile(mid, back, newGate(core.Attachment{Direction: core.Inbound, Role: core.Initiator}), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Translated())

	raw, err := os.ReadFile(back)
	require.NoError(t, err)
	frames := readAll(t, bytes.NewBuffer(raw))
	require.Len(t, frames, 1)
	assert.Equal(t, orig, frames[0])
}

func TestReplayMTUCountsOffload(t *testing.T) {
	big := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 5201, ACK: true}, make([]byte, 2000))
	g := newGate(core.Attachment{Direction: core.Outbound, Role: core.Initiator})

	stats, err := Replay(capture(t, big), &bytes.Buffer{}, g, Options{MTU: 1500})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reasons[core.ReasonOffload])

	stats, err = Replay(capture(t, big), &bytes.Buffer{}, g, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reasons[core.ReasonChecksum])
}

func TestReplayPcapng(t *testing.T) {
	syn := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 5201, SYN: true}, nil)
	buf := &bytes.Buffer{}
	w, err := pcapgo.NewNgWriter(buf, layers.LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Unix(1700000000, 0),
		CaptureLength: len(syn),
		Length:        len(syn),
	}, syn))
	require.NoError(t, w.Flush())

	out := &bytes.Buffer{}
	stats, err := Replay(buf, out, newGate(core.Attachment{Direction: core.Outbound, Role: core.Initiator}), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Translated())
	assert.Len(t, readAll(t, out), 1)
}

func TestReplayRejectsInput(t *testing.T) {
	g := newGate(core.Attachment{})

	_, err := Replay(bytes.NewReader(nil), &bytes.Buffer{}, g, Options{})
	assert.Error(t, err)

	_, err = Replay(bytes.NewReader([]byte("not a capture file")), &bytes.Buffer{}, g, Options{})
	assert.Error(t, err)

	buf := &bytes.Buffer{}
	w := pcapgo.NewWriter(buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeRaw))
	_, err = Replay(buf, &bytes.Buffer{}, g, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link type")

	_, err = ReplayFile(filepath.Join(t.TempDir(), "missing.pcap"), filepath.Join(t.TempDir(), "o.pcap"), g, Options{})
	assert.Error(t, err)
}
