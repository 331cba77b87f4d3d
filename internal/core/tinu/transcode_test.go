package tinu

import (
	"bytes"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/core/checksum"
	"firestige.xyz/tinu/internal/core/decoder"
	"firestige.xyz/tinu/internal/testutil"
)

func synTo5201() *layers.TCP {
	return &layers.TCP{
		SrcPort: 40000,
		DstPort: DefaultPort,
		Seq:     1000,
		SYN:     true,
		Window:  64240,
	}
}

func parse(t *testing.T, frame []byte) decoder.View {
	t.Helper()
	v, err := decoder.Parse(frame)
	require.NoError(t, err)
	return v
}

func TestTCPToTINUIPv4SYN(t *testing.T) {
	frame := testutil.TCPv4(t, synTo5201(), nil)

	require.NoError(t, TCPToTINU(frame, parse(t, frame)))

	pkt := testutil.Decode(frame)
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, layers.IPProtocolUDP, ip.Protocol)
	assert.True(t, testutil.IPv4ChecksumValid(frame), "IPv4 header checksum")

	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	assert.Equal(t, layers.UDPPort(DefaultPort), udp.DstPort)
	assert.Equal(t, layers.UDPPort(40000), udp.SrcPort)
	assert.Equal(t, uint16(20), udp.Length)
	assert.True(t, testutil.TransportChecksumValid(frame), "UDP checksum")

	h := Header(frame[34:54])
	assert.Equal(t, uint32(1000), h.Seq())
	assert.Equal(t, uint16(64240), h.Window())
	assert.Equal(t, 20, h.DataOffset())
	assert.True(t, h.Flags().Has(FlagSYN))
	assert.False(t, h.Flags().Has(FlagACK))
}

func TestTINUToTCPIPv4SYN(t *testing.T) {
	frame := testutil.TCPv4(t, synTo5201(), nil)
	original := testutil.Clone(frame)

	require.NoError(t, TCPToTINU(frame, parse(t, frame)))
	require.NoError(t, TINUToTCP(frame, parse(t, frame)))

	pkt := testutil.Decode(frame)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)
	assert.True(t, testutil.IPv4ChecksumValid(frame))

	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.Equal(t, uint32(1000), tcp.Seq)
	assert.True(t, tcp.SYN)
	assert.Equal(t, uint16(0), tcp.Urgent)
	assert.True(t, testutil.TransportChecksumValid(frame), "TCP checksum")

	assert.Equal(t, original, frame, "round trip must restore the frame")
}

func TestRoundTripPreservesTCPFields(t *testing.T) {
	payload := []byte("GET / HTTP/1.1\r\nHost: example\r\n\r\n")
	tests := []struct {
		name  string
		build func(testing.TB, *layers.TCP, []byte) []byte
		tcp   *layers.TCP
	}{
		{
			name:  "ipv4 ack psh",
			build: testutil.TCPv4,
			tcp: &layers.TCP{
				SrcPort: 40000, DstPort: DefaultPort,
				Seq: 0xdeadbeef, Ack: 0x01020304,
				ACK: true, PSH: true, ECE: true, CWR: true,
				Window: 502,
			},
		},
		{
			name:  "ipv4 options",
			build: testutil.TCPv4,
			tcp: &layers.TCP{
				SrcPort: DefaultPort, DstPort: 40000,
				Seq: 7, Ack: 1001, SYN: true, ACK: true, Window: 65160,
				Options: []layers.TCPOption{
					{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xb4}},
					{OptionType: layers.TCPOptionKindSACKPermitted, OptionLength: 2},
					{OptionType: layers.TCPOptionKindTimestamps, OptionLength: 10, OptionData: []byte{0, 0, 0, 1, 0, 0, 0, 2}},
					{OptionType: layers.TCPOptionKindNop},
					{OptionType: layers.TCPOptionKindWindowScale, OptionLength: 3, OptionData: []byte{7}},
				},
			},
		},
		{
			name:  "ipv6 fin",
			build: testutil.TCPv6,
			tcp: &layers.TCP{
				SrcPort: 40000, DstPort: DefaultPort,
				Seq: 42, Ack: 43, FIN: true, ACK: true, Window: 1024,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := tt.build(t, tt.tcp, payload)
			original := testutil.Clone(frame)
			hlen, err := HeaderLen(frame[parse(t, frame).L4Offset:])
			require.NoError(t, err)

			require.NoError(t, TCPToTINU(frame, parse(t, frame)))
			assert.True(t, testutil.TransportChecksumValid(frame), "TINU checksum")

			v := parse(t, frame)
			assert.Equal(t, uint8(decoder.ProtocolUDP), v.Protocol)
			h := Header(frame[v.L4Offset : v.L4Offset+hlen])
			assert.Equal(t, tt.tcp.Seq, h.Seq())
			assert.Equal(t, tt.tcp.Ack, h.Ack())
			assert.Equal(t, tt.tcp.Window, h.Window())
			assert.Equal(t, hlen, h.DataOffset())
			assert.Equal(t, TCPHeader(original[v.L4Offset:]).Flags(), h.Flags())
			assert.Equal(t, uint16(v.End-v.L4Offset), h.Length())
			assert.Equal(t, original[v.L4Offset+MinHeaderLen:v.L4Offset+hlen],
				frame[v.L4Offset+MinHeaderLen:v.L4Offset+hlen], "options are mirrored")
			assert.Equal(t, payload, frame[v.L4Offset+hlen:v.End])

			require.NoError(t, TINUToTCP(frame, v))
			assert.True(t, testutil.TransportChecksumValid(frame), "TCP checksum")
			assert.True(t, bytes.Equal(original, frame), "round trip must restore the frame")
		})
	}
}

func TestTINUToTCPZeroesUrgentPointer(t *testing.T) {
	tcp := synTo5201()
	frame := testutil.TCPv4(t, tcp, []byte("x"))
	require.NoError(t, TCPToTINU(frame, parse(t, frame)))

	require.NoError(t, TINUToTCP(frame, parse(t, frame)))
	h := TCPHeader(frame[34:54])
	assert.Zero(t, h.Urgent())
	assert.Equal(t, uint32(1000), h.Seq())
	assert.True(t, testutil.TransportChecksumValid(frame))
}

func TestTranscodeFailClosed(t *testing.T) {
	t.Run("data offset beyond segment", func(t *testing.T) {
		frame := testutil.TCPv4(t, synTo5201(), nil)
		frame[34+12] = 0xf0 // 60 byte header in a 20 byte segment
		before := testutil.Clone(frame)

		err := TCPToTINU(frame, parse(t, frame))
		assert.ErrorIs(t, err, core.ErrPacketTooShort)
		assert.Equal(t, before, frame)
	})

	t.Run("data offset below minimum", func(t *testing.T) {
		frame := testutil.TCPv4(t, synTo5201(), nil)
		frame[34+12] = 0x40
		before := testutil.Clone(frame)

		err := TCPToTINU(frame, parse(t, frame))
		assert.ErrorIs(t, err, core.ErrHeaderLength)
		assert.Equal(t, before, frame)
	})

	t.Run("segment above checksum ceiling", func(t *testing.T) {
		payload := make([]byte, checksum.MaxPartialLen-MinHeaderLen+1)
		frame := testutil.TCPv4(t, synTo5201(), payload)
		before := testutil.Clone(frame)

		err := TCPToTINU(frame, parse(t, frame))
		assert.ErrorIs(t, err, core.ErrChecksumRange)
		assert.Equal(t, before, frame)
	})

	t.Run("wrong protocol", func(t *testing.T) {
		frame := testutil.TCPv4(t, synTo5201(), nil)
		before := testutil.Clone(frame)

		err := TINUToTCP(frame, parse(t, frame))
		assert.ErrorIs(t, err, core.ErrUnsupportedProto)
		assert.Equal(t, before, frame)
	})
}

func TestTranscodeAtCeiling(t *testing.T) {
	payload := make([]byte, checksum.MaxPartialLen-MinHeaderLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := testutil.TCPv4(t, synTo5201(), payload)

	require.NoError(t, TCPToTINU(frame, parse(t, frame)))
	assert.True(t, testutil.TransportChecksumValid(frame))
}

func TestHeaderLen(t *testing.T) {
	seg := make([]byte, 40)

	seg[12] = 0x50
	n, err := HeaderLen(seg)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	seg[12] = 0xa0
	n, err = HeaderLen(seg)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	seg[12] = 0xb0
	_, err = HeaderLen(seg)
	assert.ErrorIs(t, err, core.ErrPacketTooShort)

	_, err = HeaderLen(seg[:19])
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "none", Flags(0).String())
	assert.Equal(t, "SYN|ACK", (FlagSYN | FlagACK).String())
	assert.Equal(t, "FIN|SYN|RST|PSH|ACK|URG|ECE|CWR", Flags(0xff).String())
}

func BenchmarkRoundTrip(b *testing.B) {
	frame := testutil.TCPv4(b, synTo5201(), make([]byte, 1400))
	v, err := decoder.Parse(frame)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := TCPToTINU(frame, v); err != nil {
			b.Fatal(err)
		}
		v.Protocol = decoder.ProtocolUDP
		if err := TINUToTCP(frame, v); err != nil {
			b.Fatal(err)
		}
		v.Protocol = decoder.ProtocolTCP
	}
}
