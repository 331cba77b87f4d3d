package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/gate"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/testutil"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) ReadPacket(ctx context.Context) ([]byte, gopacket.CaptureInfo, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Get(1).(gopacket.CaptureInfo), args.Error(2)
}

func quietLogger() log.Logger {
	l, _ := log.New(&log.LoggerConfig{Level: "error"})
	return l
}

func TestDescribeTCP(t *testing.T) {
	frame := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 5201, Seq: 1000, SYN: true, Window: 100}, nil)

	fields, ok := describe(frame, 5201)
	require.True(t, ok)
	assert.Equal(t, "tcp", fields["framing"])
	assert.Equal(t, "10.0.0.1:40000", fields["src"])
	assert.Equal(t, "10.0.0.2:5201", fields["dst"])
	assert.Equal(t, uint32(1000), fields["seq"])
	assert.Equal(t, "SYN", fields["flags"])
	assert.Equal(t, uint16(100), fields["window"])
}

func TestDescribeTINU(t *testing.T) {
	frame := testutil.TCPv6(t, &layers.TCP{SrcPort: 5201, DstPort: 40000, Seq: 42, Ack: 7, ACK: true, PSH: true}, []byte("abc"))
	g := gate.New(gate.Options{Attachment: core.Attachment{Direction: core.Outbound, Role: core.Responder}, Logger: quietLogger()})
	require.True(t, g.Process(&core.Packet{Data: frame}).Translated())

	fields, ok := describe(frame, 5201)
	require.True(t, ok)
	assert.Equal(t, "tinu", fields["framing"])
	assert.Equal(t, "[2001:db8::1]:5201", fields["src"])
	assert.Equal(t, uint32(42), fields["seq"])
	assert.Equal(t, uint32(7), fields["ack"])
	assert.Equal(t, "PSH|ACK", fields["flags"])
	assert.Equal(t, uint16(23), fields["udp_len"])
}

func TestDescribeOther(t *testing.T) {
	dns := testutil.UDPv4(t, &layers.UDP{SrcPort: 40000, DstPort: 53}, []byte("0123456789abcdefghij"))
	fields, ok := describe(dns, 5201)
	require.True(t, ok)
	assert.Equal(t, "udp", fields["framing"])

	_, ok = describe([]byte{1, 2, 3}, 5201)
	assert.False(t, ok)
}

func TestInspectStopsAtLimit(t *testing.T) {
	frame := testutil.TCPv4(t, &layers.TCP{SrcPort: 40000, DstPort: 5201, ACK: true}, nil)
	ci := gopacket.CaptureInfo{CaptureLength: len(frame), Length: len(frame)}

	r := &MockReader{}
	r.On("ReadPacket", mock.Anything).Return([]byte{0xff}, ci, nil).Once()
	r.On("ReadPacket", mock.Anything).Return(frame, ci, nil).Times(2)

	n, err := inspect(context.Background(), r, 5201, 2, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	r.AssertExpectations(t)
}

func TestInspectStopsOnCancel(t *testing.T) {
	r := &MockReader{}
	r.On("ReadPacket", mock.Anything).Return(nil, gopacket.CaptureInfo{}, context.Canceled).Once()

	n, err := inspect(context.Background(), r, 5201, 0, quietLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInspectReadError(t *testing.T) {
	r := &MockReader{}
	r.On("ReadPacket", mock.Anything).Return(nil, gopacket.CaptureInfo{}, errors.New("socket closed")).Once()

	_, err := inspect(context.Background(), r, 5201, 0, quietLogger())
	assert.EqualError(t, err, "socket closed")
}
