package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/net/bpf"

	"firestige.xyz/tinu/internal/bridge"
	"firestige.xyz/tinu/internal/config"
	"firestige.xyz/tinu/internal/filter"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/metrics"
	"firestige.xyz/tinu/internal/source/afpacket"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the inline bridge between two interfaces",
	Long: `Join bridge.inner (host side) and bridge.outer (wire side). TCP leaving
through inner is sent out of outer as TINU; TINU arriving on outer is handed
to inner as TCP. Everything else crosses unchanged.

GSO/TSO and GRO/LRO must be disabled on both interfaces, e.g.
  ethtool -K eth0 gso off tso off gro off lro off

Examples:
  tinu bridge -c /etc/tinu/tinu.yml
  TINU_ROLE=client TINU_BRIDGE_INNER=veth0 TINU_BRIDGE_OUTER=eth0 tinu bridge`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBridge(ctx)
	},
}

func runBridge(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.ValidateBridge(); err != nil {
		return err
	}
	logger := log.GetLogger()

	prog, err := filter.Assemble(filter.NotOutgoing(uint32(cfg.Bridge.SnapLen)))
	if err != nil {
		return err
	}
	inner, err := openPort(cfg, cfg.Bridge.Inner, prog)
	if err != nil {
		return err
	}
	defer inner.Close()
	outer, err := openPort(cfg, cfg.Bridge.Outer, prog)
	if err != nil {
		return err
	}
	defer outer.Close()

	limiter := log.NewLimiter(cfg.Log.Advisory)
	if cfg.Metrics.Enabled {
		if limiter != nil {
			if err := metrics.WatchLimiter(prometheus.DefaultRegisterer, limiter); err != nil {
				return fmt.Errorf("failed to register limiter metric: %w", err)
			}
		}
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	b := bridge.New(inner, outer, bridge.Options{
		Role:    cfg.Role,
		Port:    cfg.Port,
		MTU:     cfg.Bridge.MTU,
		Logger:  logger,
		Limiter: limiter,
	})
	err = b.Run(ctx)

	for _, s := range []*afpacket.Source{inner, outer} {
		packets, drops, serr := s.Stats()
		if serr != nil {
			continue
		}
		logger.WithFields(map[string]interface{}{
			"interface": s.Name(),
			"packets":   packets,
			"drops":     drops,
		}).Info("ring statistics")
	}
	if suppressed := limiter.Suppressed(); suppressed > 0 {
		logger.WithField("suppressed", suppressed).Info("advisory warnings suppressed")
	}
	return err
}

func openPort(cfg *config.Config, device string, prog []bpf.RawInstruction) (*afpacket.Source, error) {
	return afpacket.NewSource(afpacket.Config{
		Device:       device,
		SnapLen:      cfg.Bridge.SnapLen,
		BufferSizeMB: cfg.Bridge.BufferSizeMB,
		Timeout:      cfg.Bridge.Timeout,
		Filter:       prog,
	})
}
