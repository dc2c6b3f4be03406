// Package fsm drives the per-next-hop resolution state machine described
// in spec §4.2: INCOMPLETE -> REACHABLE -> STALE -> PROBE -> FAILED, with
// STATIC next-hops permanently exempt.
//
// All methods run on the single control thread; nothing here takes a
// lock, mirroring gvisor's convention that NUD state transitions only
// ever happen from the stack's single mutating path.
package fsm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/pkt"
)

// State is the externally observable FSM state, derived from a next-hop's
// flag bits. It exists for logging and tests; the flags themselves are
// the source of truth (spec §3 invariants).
type State int

const (
	StateIncomplete State = iota
	StateReachable
	StateStale
	StateProbe
	StateFailed
	StateStatic
)

func (s State) String() string {
	switch s {
	case StateIncomplete:
		return "INCOMPLETE"
	case StateReachable:
		return "REACHABLE"
	case StateStale:
		return "STALE"
	case StateProbe:
		return "PROBE"
	case StateFailed:
		return "FAILED"
	case StateStatic:
		return "STATIC"
	default:
		return "UNKNOWN"
	}
}

// Of derives the logical FSM state of nh from its flags.
func Of(nh *nexthop6.Nexthop) State {
	switch {
	case nh.Flags.Has(nexthop6.Static):
		return StateStatic
	case nh.Flags.Has(nexthop6.Failed):
		return StateFailed
	case nh.Flags.Has(nexthop6.Reachable):
		return StateReachable
	case nh.Flags.Has(nexthop6.Stale) && nh.Flags.Has(nexthop6.Pending):
		return StateProbe
	case nh.Flags.Has(nexthop6.Stale):
		return StateStale
	default:
		return StateIncomplete
	}
}

// Prober emits a Neighbor Solicitation for nh, choosing unicast vs
// solicited-node multicast per spec §4.2/§4.7.
type Prober interface {
	Probe(ctx context.Context, nh *nexthop6.Nexthop) error
}

// Outputter re-injects a packet to ip6_output once a next-hop is
// REACHABLE, per spec §4.3's flush policy.
type Outputter interface {
	Output(nh *nexthop6.Nexthop, p *pkt.Packet)
}

// Machine drives resolution transitions for a single pool.
type Machine struct {
	cfg    nexthop6.Config
	prober Prober
	out    Outputter
	log    *zap.Logger
	now    func() time.Time
}

// New constructs a Machine. now defaults to time.Now when nil, overridden
// in tests for deterministic probe-timer behavior.
func New(cfg nexthop6.Config, prober Prober, out Outputter, log *zap.Logger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{cfg: cfg, prober: prober, out: out, log: log, now: now}
}

// Create arms a freshly allocated next-hop: INCOMPLETE+PENDING, emit NS,
// arm the probe timer. Also used to restart a FAILED next-hop on a new
// packet or admin add (spec §4.2 "FAILED -> INCOMPLETE").
func (m *Machine) Create(ctx context.Context, nh *nexthop6.Nexthop) {
	if nh.Flags.Has(nexthop6.Static) {
		return
	}
	nh.Flags &^= nexthop6.Failed | nexthop6.Stale | nexthop6.Reachable
	nh.Flags |= nexthop6.Pending
	nh.UcastProbes = 0
	nh.BcastProbes = 0
	nh.LastRequest = m.now()

	if err := m.prober.Probe(ctx, nh); err != nil {
		m.log.Debug("initial probe failed", zap.Stringer("addr", nh.Addr), zap.Error(err))
	}
}

// OnNeighborAdvert handles an NA carrying a learned link address: REACHABLE,
// record lladdr, flush hold queue, clear PENDING (spec §4.2, S2).
func (m *Machine) OnNeighborAdvert(nh *nexthop6.Nexthop, linkAddr nexthop6.LinkAddr) {
	if nh.Flags.Has(nexthop6.Static) {
		return
	}
	nh.LinkAddr = linkAddr
	nh.LastReply = m.now()
	nh.UcastProbes = 0
	nh.BcastProbes = 0
	nh.Flags &^= nexthop6.Pending | nexthop6.Stale | nexthop6.Failed
	nh.Flags |= nexthop6.Reachable

	nh.FlushHeld(func(p *pkt.Packet) {
		m.out.Output(nh, p)
	})
}

// OnProbeTimer fires on every probe-interval tick for a next-hop that is
// INCOMPLETE or PROBE. Below budget it re-probes; at budget it fails the
// next-hop and discards its hold queue (spec §4.2, S3, property 6).
func (m *Machine) OnProbeTimer(ctx context.Context, nh *nexthop6.Nexthop) {
	if nh.Flags.Has(nexthop6.Static) || nh.Flags.Has(nexthop6.Reachable) {
		return
	}
	if !nh.Flags.Has(nexthop6.Pending) {
		return
	}

	total := int(nh.UcastProbes) + int(nh.BcastProbes)
	budget := m.cfg.UnicastProbes + m.cfg.BroadcastProbes
	if total >= budget {
		nh.Flags &^= nexthop6.Pending | nexthop6.Stale
		nh.Flags |= nexthop6.Failed
		nh.DiscardHeld()
		m.log.Debug("nexthop resolution failed", zap.Stringer("addr", nh.Addr), zap.Int("probes", total))
		return
	}

	if err := m.prober.Probe(ctx, nh); err != nil {
		m.log.Debug("probe failed", zap.Stringer("addr", nh.Addr), zap.Error(err))
	}
}

// OnReachableExpiry decays a REACHABLE next-hop to STALE once its
// reachable lifetime elapses (spec §4.2).
func (m *Machine) OnReachableExpiry(nh *nexthop6.Nexthop) {
	if nh.Flags.Has(nexthop6.Static) || !nh.Flags.Has(nexthop6.Reachable) {
		return
	}
	nh.Flags &^= nexthop6.Reachable
	nh.Flags |= nexthop6.Stale
}

// OnPacketNeedsForward handles a packet arriving for a STALE next-hop: it
// moves to PROBE (unicast NS, PENDING set), per spec §4.2.
func (m *Machine) OnPacketNeedsForward(ctx context.Context, nh *nexthop6.Nexthop) {
	if nh.Flags.Has(nexthop6.Static) {
		return
	}
	if !nh.Flags.Has(nexthop6.Stale) || nh.Flags.Has(nexthop6.Pending) {
		return
	}
	nh.Flags |= nexthop6.Pending
	nh.LastRequest = m.now()
	if err := m.prober.Probe(ctx, nh); err != nil {
		m.log.Debug("probe failed", zap.Stringer("addr", nh.Addr), zap.Error(err))
	}
}

// CanDelete reports whether nh is eligible for administrative deletion:
// refcount <= 1 (the caller's own route reference) and none of
// LOCAL/LINK/GATEWAY set (spec §4.7, S6).
func CanDelete(nh *nexthop6.Nexthop) bool {
	return nh.RefCount <= 1 && !nh.Flags.Any(nexthop6.Local|nexthop6.Link|nexthop6.Gateway)
}
