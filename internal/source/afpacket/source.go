// Package afpacket opens TPACKET_V3 rings on a network interface. A Source
// both reads frames from and writes frames to its interface, which is what
// the bridge and the inspect command need.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"golang.org/x/net/bpf"
)

type Config struct {
	Device       string
	SnapLen      int
	BufferSizeMB int
	Timeout      time.Duration // poll timeout, bounds how late ctx is noticed
	FanoutID     uint16
	Filter       []bpf.RawInstruction
}

type Source struct {
	handle *afpacket.TPacket
	device string
	ring   ringLayout
}

func NewSource(cfg Config) (*Source, error) {
	if cfg.Device == "" {
		return nil, errors.New("afpacket: device is required")
	}
	ring, err := computeRing(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("afpacket %s: %w", cfg.Device, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Device),
		afpacket.OptFrameSize(ring.frameSize),
		afpacket.OptBlockSize(ring.blockSize),
		afpacket.OptNumBlocks(ring.numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket %s: %w", cfg.Device, err)
	}

	if cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket %s: set fanout: %w", cfg.Device, err)
		}
	}
	if len(cfg.Filter) > 0 {
		if err := tp.SetBPF(cfg.Filter); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket %s: set filter: %w", cfg.Device, err)
		}
	}

	return &Source{handle: tp, device: cfg.Device, ring: ring}, nil
}

func (s *Source) Name() string { return s.device }

// ReadPacket returns a copy of the next frame. Poll timeouts are retried
// until ctx is done.
func (s *Source) ReadPacket(ctx context.Context) ([]byte, gopacket.CaptureInfo, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, gopacket.CaptureInfo{}, err
		}
		data, ci, err := s.handle.ReadPacketData()
		if err == nil {
			return data, ci, nil
		}
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
			continue
		}
		return nil, ci, err
	}
}

func (s *Source) WritePacket(data []byte) error {
	return s.handle.WritePacketData(data)
}

// Stats returns the ring's packet and drop counters.
func (s *Source) Stats() (packets, drops uint, err error) {
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0, 0, err
	}
	return v3.Packets(), v3.Drops(), nil
}

func (s *Source) Close() error {
	s.handle.Close()
	return nil
}
