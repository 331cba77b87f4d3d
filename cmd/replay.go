package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/gate"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/source/file"
)

var replayOpts struct {
	role      core.Role
	direction core.Direction
	port      uint16
	mtu       int
	input     string
	output    string
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Transcode a capture file offline",
	Long: `Run every frame of a pcap or pcapng file through one attachment point
and write the result as pcap. Role and port default to the configuration.

Examples:
  tinu replay --role client --direction outbound -i tcp.pcap -o tinu.pcap
  tinu replay --role server --direction inbound -i tinu.pcap -o tcp.pcap --mtu 1500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd)
	},
}

func init() {
	f := replayCmd.Flags()
	f.Var(roleValue{&replayOpts.role}, "role", "initiator|client or responder|server")
	f.Var(directionValue{&replayOpts.direction}, "direction", "outbound|egress or inbound|ingress")
	f.Uint16Var(&replayOpts.port, "port", 0, "designated port (default from config)")
	f.IntVar(&replayOpts.mtu, "mtu", 0, "treat frames above MTU as offload aggregates (0 disables)")
	f.StringVarP(&replayOpts.input, "input", "i", "", "input capture file (required)")
	f.StringVarP(&replayOpts.output, "output", "o", "", "output pcap file (required)")
	replayCmd.MarkFlagRequired("input")
	replayCmd.MarkFlagRequired("output")
	replayCmd.MarkFlagRequired("direction")
}

func runReplay(cmd *cobra.Command) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	attach := core.Attachment{Direction: replayOpts.direction, Role: cfg.Role}
	if cmd.Flags().Changed("role") {
		attach.Role = replayOpts.role
	}
	port := cfg.Port
	if replayOpts.port != 0 {
		port = replayOpts.port
	}

	g := gate.New(gate.Options{
		Attachment: attach,
		Port:       port,
		Logger:     log.GetLogger(),
		Limiter:    log.NewLimiter(cfg.Log.Advisory),
	})
	stats, err := file.ReplayFile(replayOpts.input, replayOpts.output, g, file.Options{MTU: replayOpts.mtu})
	if err != nil {
		return err
	}

	printStats(cmd, attach, stats)
	return nil
}

func printStats(cmd *cobra.Command, attach core.Attachment, stats file.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d frame(s), %d translated\n", attach, stats.Frames, stats.Translated())

	reasons := make([]core.Reason, 0, len(stats.Reasons))
	for r := range stats.Reasons {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		fmt.Fprintf(out, "  %-14s %d\n", r, stats.Reasons[r])
	}
}
