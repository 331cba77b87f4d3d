// Package bridge forwards frames between a host-side and a wire-side
// interface, translating TCP to TINU on the way out and back on the way in.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/gate"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/metrics"
)

// Port is one side of the bridge.
type Port interface {
	Name() string
	ReadPacket(ctx context.Context) ([]byte, gopacket.CaptureInfo, error)
	WritePacket(data []byte) error
}

type Options struct {
	Role    core.Role
	Port    uint16
	MTU     int // Frames longer than MTU plus the Ethernet header were merged
	Logger  log.Logger
	Limiter *log.Limiter
}

type Bridge struct {
	inner, outer Port
	egress       *gate.Gate
	ingress      *gate.Gate
	mtu          int
	logger       log.Logger
	limiter      *log.Limiter
}

// New joins inner, the host side, with outer, the wire side.
func New(inner, outer Port, opts Options) *Bridge {
	if opts.MTU <= 0 {
		opts.MTU = 1500
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	mk := func(d core.Direction) *gate.Gate {
		return gate.New(gate.Options{
			Attachment: core.Attachment{Direction: d, Role: opts.Role},
			Port:       opts.Port,
			Logger:     opts.Logger,
			Limiter:    opts.Limiter,
		})
	}
	return &Bridge{
		inner:   inner,
		outer:   outer,
		egress:  mk(core.Outbound),
		ingress: mk(core.Inbound),
		mtu:     opts.MTU,
		logger:  opts.Logger,
		limiter: opts.Limiter,
	}
}

// Run pumps both directions until ctx is cancelled or a read fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.WithFields(map[string]interface{}{
		"inner": b.inner.Name(),
		"outer": b.outer.Name(),
		"role":  b.egress.Attachment().Role.String(),
		"port":  b.egress.Port(),
	}).Info("bridge started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.pump(ctx, b.inner, b.outer, b.egress) })
	g.Go(func() error { return b.pump(ctx, b.outer, b.inner, b.ingress) })
	err := g.Wait()

	b.logger.Info("bridge stopped")
	return err
}

func (b *Bridge) pump(ctx context.Context, from, to Port, g *gate.Gate) error {
	for {
		data, ci, err := from.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.BridgeErrorsTotal.WithLabelValues(from.Name(), metrics.OpRead).Inc()
			return fmt.Errorf("read from %s: %w", from.Name(), err)
		}
		if ci.CaptureLength < ci.Length {
			// bytes beyond the snap length are gone and cannot be forwarded
			metrics.BridgeErrorsTotal.WithLabelValues(from.Name(), metrics.OpSnap).Inc()
			continue
		}

		pkt := core.Packet{Data: data, Len: uint32(ci.Length)}
		pkt.GSOSegs, pkt.GSOSize = b.segments(ci.Length)

		start := time.Now()
		res := g.Process(&pkt)
		metrics.Observe(g.Attachment(), res, time.Since(start))

		if err := to.WritePacket(data); err != nil {
			metrics.BridgeErrorsTotal.WithLabelValues(to.Name(), metrics.OpWrite).Inc()
			if b.limiter.Allow(metrics.OpWrite, time.Now()) {
				b.logger.WithError(err).WithField("interface", to.Name()).Warn("write failed")
			}
			continue
		}
		metrics.BridgeBytesTotal.WithLabelValues(to.Name()).Add(float64(len(data)))
	}
}

func (b *Bridge) segments(length int) (segs, size uint16) {
	return core.EstimateSegments(length, b.mtu)
}
