// Package gate decides, per packet, whether a frame belongs to the tunneled
// flow and, if so, transcodes it between TCP and TINU in place. Every path
// ends in core.VerdictForward; a frame that cannot be translated is
// forwarded untouched.
package gate

import (
	"errors"
	"net"
	"strconv"
	"time"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/core/decoder"
	"firestige.xyz/tinu/internal/core/tinu"
	"firestige.xyz/tinu/internal/log"
)

// Options fix the attachment point of a Gate.
type Options struct {
	Attachment core.Attachment
	Port       uint16       // Designated port, tinu.DefaultPort when zero
	Logger     log.Logger   // Advisory output, log.GetLogger() when nil
	Limiter    *log.Limiter // Optional cap on advisory messages
}

// Gate is immutable after New and safe for concurrent use.
type Gate struct {
	attach  core.Attachment
	port    uint16
	logger  log.Logger
	limiter *log.Limiter
}

func New(opts Options) *Gate {
	if opts.Port == 0 {
		opts.Port = tinu.DefaultPort
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Gate{
		attach: opts.Attachment,
		port:   opts.Port,
		logger: opts.Logger.WithFields(map[string]interface{}{
			"attachment": opts.Attachment.String(),
		}),
		limiter: opts.Limiter,
	}
}

func (g *Gate) Attachment() core.Attachment { return g.attach }

func (g *Gate) Port() uint16 { return g.port }

// Process runs the frame through parse, protocol, header length, port,
// urgent and offload checks and then transcodes it. pkt.Data is rewritten
// only when the returned Reason is ReasonTranslated.
func (g *Gate) Process(pkt *core.Packet) core.Result {
	data := pkt.Data

	v, err := decoder.Parse(data)
	if err != nil {
		return forward(parseReason(err))
	}
	if v.Fragment {
		return forward(core.ReasonFragment)
	}

	want := uint8(decoder.ProtocolTCP)
	if g.attach.Direction == core.Inbound {
		want = decoder.ProtocolUDP
	}
	if v.Protocol != want {
		return forward(core.ReasonProtocol)
	}

	seg := v.Segment(data)
	hlen, err := tinu.HeaderLen(seg)
	if err != nil {
		if errors.Is(err, core.ErrHeaderLength) {
			return forward(core.ReasonHeaderLength)
		}
		return forward(core.ReasonTruncated)
	}

	src, dst, err := v.Ports(data)
	if err != nil {
		return forward(core.ReasonTruncated)
	}
	if !g.portMatches(src, dst) {
		return forward(core.ReasonPort)
	}

	if g.attach.Direction == core.Outbound {
		tcp := tinu.TCPHeader(seg[:hlen])
		if tcp.Flags().Has(tinu.FlagURG) {
			g.advise(core.LabelReasonUrgent, func(l log.Logger) {
				srcIP, dstIP := v.Addrs(data)
				l.WithFields(map[string]interface{}{
					"src":    net.JoinHostPort(net.IP(srcIP).String(), strconv.Itoa(int(src))),
					"dst":    net.JoinHostPort(net.IP(dstIP).String(), strconv.Itoa(int(dst))),
					"urgent": tcp.Urgent(),
				}).Warn("TCP urgent data cannot be carried over TINU, forwarding as TCP")
			})
			return forward(core.ReasonUrgent)
		}
	}

	if pkt.GSOSegs > 1 {
		g.advise(core.LabelReasonOffload, func(l log.Logger) {
			msg := "GSO/TSO is active, disable it on the host interface"
			if g.attach.Direction == core.Inbound {
				msg = "GRO/LRO is active, disable it on the receiving interface"
			}
			l.WithFields(map[string]interface{}{
				"len":      pkt.Len,
				"gso_segs": pkt.GSOSegs,
				"gso_size": pkt.GSOSize,
			}).Warn(msg)
		})
		return forward(core.ReasonOffload)
	}

	if g.attach.Direction == core.Outbound {
		err = tinu.TCPToTINU(data, v)
	} else {
		err = tinu.TINUToTCP(data, v)
	}
	if err != nil {
		return forward(transcodeReason(err))
	}
	return forward(core.ReasonTranslated)
}

// portMatches checks the port the peer sees as the well-known one: the
// responder owns it, so it is the source on its way out and the destination
// on its way in. The initiator mirrors that.
func (g *Gate) portMatches(src, dst uint16) bool {
	ownsPort := g.attach.Role == core.Responder
	outbound := g.attach.Direction == core.Outbound
	if ownsPort == outbound {
		return src == g.port
	}
	return dst == g.port
}

func (g *Gate) advise(kind string, emit func(log.Logger)) {
	if !g.limiter.Allow(kind, time.Now()) {
		return
	}
	emit(g.logger.WithField("reason", kind))
}

func forward(r core.Reason) core.Result {
	return core.Result{Verdict: core.VerdictForward, Reason: r}
}

func parseReason(err error) core.Reason {
	switch {
	case errors.Is(err, core.ErrUnsupportedProto):
		return core.ReasonNotIP
	case errors.Is(err, core.ErrFragment):
		return core.ReasonFragment
	default:
		return core.ReasonTruncated
	}
}

func transcodeReason(err error) core.Reason {
	switch {
	case errors.Is(err, core.ErrChecksumRange):
		return core.ReasonChecksum
	case errors.Is(err, core.ErrHeaderLength):
		return core.ReasonHeaderLength
	case errors.Is(err, core.ErrUnsupportedProto):
		return core.ReasonProtocol
	default:
		return core.ReasonTruncated
	}
}
