// Package testutil builds Ethernet frames for tests and checks their
// checksums with an implementation that shares no code with the packet path.
package testutil

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	ClientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ServerMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

	ClientIPv4 = net.IP{10, 0, 0, 1}
	ServerIPv4 = net.IP{10, 0, 0, 2}

	ClientIPv6 = net.ParseIP("2001:db8::1")
	ServerIPv6 = net.ParseIP("2001:db8::2")
)

// TCPv4 serializes Ethernet+IPv4+TCP with valid checksums.
func TCPv4(t testing.TB, tcp *layers.TCP, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1c46,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    ClientIPv4,
		DstIP:    ServerIPv4,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, layers.EthernetTypeIPv4, ip, tcp, payload)
}

// TCPv6 serializes Ethernet+IPv6+TCP with a valid checksum.
func TCPv6(t testing.TB, tcp *layers.TCP, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      ClientIPv6,
		DstIP:      ServerIPv6,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, layers.EthernetTypeIPv6, ip, tcp, payload)
}

// UDPv4 serializes Ethernet+IPv4+UDP with valid checksums.
func UDPv4(t testing.TB, udp *layers.UDP, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    ClientIPv4,
		DstIP:    ServerIPv4,
	}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, layers.EthernetTypeIPv4, ip, udp, payload)
}

func serialize(t testing.TB, et layers.EthernetType, ip, l4 gopacket.SerializableLayer, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       ClientMAC,
		DstMAC:       ServerMAC,
		EthernetType: et,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload(payload)))
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

// Decode parses a frame with gopacket for field assertions.
func Decode(frame []byte) gopacket.Packet {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
}

// TransportChecksumValid recomputes the TCP or UDP checksum of an untagged
// Ethernet frame over its full segment and pseudo header.
func TransportChecksumValid(frame []byte) bool {
	var src, dst, seg []byte
	var proto byte
	switch binary.BigEndian.Uint16(frame[12:14]) {
	case 0x0800:
		ip := frame[14:]
		ihl := int(ip[0]&0x0f) * 4
		total := int(binary.BigEndian.Uint16(ip[2:4]))
		src, dst, proto = ip[12:16], ip[16:20], ip[9]
		seg = ip[ihl:total]
	case 0x86dd:
		ip := frame[14:]
		plen := int(binary.BigEndian.Uint16(ip[4:6]))
		src, dst, proto = ip[8:24], ip[24:40], ip[6]
		seg = ip[40 : 40+plen]
	default:
		return false
	}

	var sum uint64
	add := func(b []byte) {
		for i := 0; i+1 < len(b); i += 2 {
			sum += uint64(b[i])<<8 | uint64(b[i+1])
		}
		if len(b)%2 == 1 {
			sum += uint64(b[len(b)-1]) << 8
		}
	}
	add(src)
	add(dst)
	sum += uint64(proto) + uint64(len(seg))
	add(seg)
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return sum == 0xffff
}

// IPv4ChecksumValid reports whether the IPv4 header of an untagged Ethernet
// frame sums to all ones.
func IPv4ChecksumValid(frame []byte) bool {
	ip := frame[14:]
	ihl := int(ip[0]&0x0f) * 4
	var sum uint32
	for i := 0; i < ihl; i += 2 {
		sum += uint32(ip[i])<<8 | uint32(ip[i+1])
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return sum == 0xffff
}

// Clone copies a frame so a test can compare before and after.
func Clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
