package cmd

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"firestige.xyz/tinu/internal/core/decoder"
	"firestige.xyz/tinu/internal/core/tinu"
	"firestige.xyz/tinu/internal/filter"
	"firestige.xyz/tinu/internal/log"
	"firestige.xyz/tinu/internal/source/afpacket"
)

var inspectOpts struct {
	device  string
	count   int
	snapLen int
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Log TCP and TINU headers of the tunneled flow on an interface",
	Long: `Capture frames whose TCP or UDP port equals the designated port, using a
kernel BPF filter, and log their headers. Useful to check which framing is
on the wire at a given point.

Examples:
  tinu inspect -i eth0
  tinu inspect -i eth0 -n 20 -c tinu.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runInspect(ctx)
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVarP(&inspectOpts.device, "interface", "i", "", "interface to capture on (required)")
	f.IntVarP(&inspectOpts.count, "count", "n", 0, "stop after this many frames (0 = until interrupted)")
	f.IntVar(&inspectOpts.snapLen, "snap-len", 256, "bytes captured per frame")
	inspectCmd.MarkFlagRequired("interface")
}

func runInspect(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	prog, err := filter.Assemble(filter.Port(cfg.Port, uint32(inspectOpts.snapLen)))
	if err != nil {
		return err
	}
	src, err := afpacket.NewSource(afpacket.Config{
		Device:       inspectOpts.device,
		SnapLen:      inspectOpts.snapLen,
		BufferSizeMB: 2,
		Filter:       prog,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = inspect(ctx, src, cfg.Port, inspectOpts.count, log.GetLogger())
	return err
}

type frameReader interface {
	ReadPacket(ctx context.Context) ([]byte, gopacket.CaptureInfo, error)
}

// inspect logs up to limit frames from src, or all of them when limit is
// zero, and returns how many were logged.
func inspect(ctx context.Context, src frameReader, port uint16, limit int, logger log.Logger) (int, error) {
	n := 0
	for limit == 0 || n < limit {
		data, ci, err := src.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return n, nil
			}
			return n, err
		}
		fields, ok := describe(data, port)
		if !ok {
			continue
		}
		fields["len"] = ci.Length
		logger.WithFields(fields).Info(fields["framing"])
		n++
	}
	return n, nil
}

// describe decodes the transport header of data. UDP to or from port is
// read as TINU.
func describe(data []byte, port uint16) (map[string]interface{}, bool) {
	v, err := decoder.Parse(data)
	if err != nil {
		return nil, false
	}
	sport, dport, err := v.Ports(data)
	if err != nil {
		return nil, false
	}
	srcIP, dstIP := v.Addrs(data)
	fields := map[string]interface{}{
		"src": net.JoinHostPort(net.IP(srcIP).String(), strconv.Itoa(int(sport))),
		"dst": net.JoinHostPort(net.IP(dstIP).String(), strconv.Itoa(int(dport))),
	}

	seg := v.Segment(data)
	switch v.Protocol {
	case decoder.ProtocolTCP:
		hlen, err := tinu.HeaderLen(seg)
		if err != nil {
			return nil, false
		}
		h := tinu.TCPHeader(seg[:hlen])
		fields["framing"] = "tcp"
		fields["seq"] = h.Seq()
		fields["ack"] = h.Ack()
		fields["flags"] = h.Flags().String()
		fields["window"] = h.Window()
		fields["hlen"] = hlen
	case decoder.ProtocolUDP:
		hlen, err := tinu.HeaderLen(seg)
		if err != nil || (sport != port && dport != port) {
			fields["framing"] = "udp"
			return fields, true
		}
		h := tinu.Header(seg[:hlen])
		fields["framing"] = "tinu"
		fields["seq"] = h.Seq()
		fields["ack"] = h.Ack()
		fields["flags"] = h.Flags().String()
		fields["window"] = h.Window()
		fields["hlen"] = hlen
		fields["udp_len"] = h.Length()
	default:
		return nil, false
	}
	return fields, true
}
