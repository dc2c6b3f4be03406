// Package probe implements the NS probe emitter of spec §4.7: destination
// selection (unicast vs solicited-node multicast), probe rate limiting
// (one limiter shared by all next-hops), and IPv6+ICMPv6 header
// construction.
package probe

import (
	"context"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dpdk-grout/grout/internal/errs"
	"github.com/dpdk-grout/grout/internal/ndp6"
	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// Iface resolves the egress-interface facts the emitter needs: a
// preferred local IPv6 source address and the interface's own MAC. This
// is the out-of-scope "interface inventory" collaborator (spec §1).
type Iface interface {
	PreferredSource(iface nexthop6.IfaceID) (netip.Addr, bool)
	MAC(iface nexthop6.IfaceID) (nexthop6.LinkAddr, bool)
}

// Sender re-injects a built NS packet into the forwarding graph, standing
// in for the "re-enters the forwarding graph" side effect described for
// ndp_ns_output in spec §4.4.
type Sender interface {
	SendNS(iface nexthop6.IfaceID, wire []byte) error
}

// DefaultProbeInterval mirrors nexthop6.DefaultConfig's ProbeInterval so
// New has a sane fallback when constructed with a zero Config.
const DefaultProbeInterval = time.Second

// Emitter is the probe-emitter component.
type Emitter struct {
	cfg     nexthop6.Config
	iface   Iface
	sender  Sender
	limiter *rate.Limiter
	log     *zap.Logger
}

// New constructs an Emitter. The rate limiter caps aggregate probe
// emission at roughly one per ProbeInterval with a burst equal to the
// full per-nexthop probe budget, so a wave of simultaneous misses cannot
// flood the forwarding graph with NS packets.
func New(cfg nexthop6.Config, iface Iface, sender Sender) *Emitter {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	burst := cfg.UnicastProbes + cfg.BroadcastProbes
	if burst <= 0 {
		burst = 1
	}
	return &Emitter{
		cfg:     cfg,
		iface:   iface,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		log:     cfg.Logger,
	}
}

// Probe implements fsm.Prober: choose a destination, build the NS, and
// hand it to the Sender collaborator. It also advances nh's probe
// counters per spec §4.2's numeric policy.
func (e *Emitter) Probe(ctx context.Context, nh *nexthop6.Nexthop) error {
	if !e.limiter.Allow() {
		return errs.ErrResource
	}

	src, ok := e.iface.PreferredSource(nh.OutIface)
	if !ok {
		return errs.ErrResource
	}
	mac, ok := e.iface.MAC(nh.OutIface)
	if !ok {
		return errs.ErrNotFound
	}

	dst, unicast := e.destination(nh)
	wire := ndp6.BuildNS(src, dst, nh.Addr, ndp6.LinkAddr(mac))

	if unicast {
		nh.UcastProbes++
	} else {
		nh.BcastProbes++
	}

	if e.log != nil {
		e.log.Debug("ndp probe sent",
			zap.Stringer("target", nh.Addr),
			zap.Bool("unicast", unicast),
			zap.Uint8("ucast_probes", nh.UcastProbes),
			zap.Uint8("bcast_probes", nh.BcastProbes),
		)
	}

	return e.sender.SendNS(nh.OutIface, wire)
}

// destination implements the tie-break from spec §4.2: unicast directly
// to the known neighbor while last_reply != 0 and ucast_probes <
// NH_UCAST_PROBES, else the solicited-node multicast address.
func (e *Emitter) destination(nh *nexthop6.Nexthop) (dst netip.Addr, unicast bool) {
	if !nh.LastReply.IsZero() && int(nh.UcastProbes) < e.cfg.UnicastProbes {
		return nh.Addr, true
	}
	return ndp6.SolicitedNodeMulticast(nh.Addr), false
}
