// Package unreachable implements the datapath-miss handler of spec §4.6:
// resolve the route, create or reuse a host-specific next-hop, install a
// /128 route, and either re-inject the packet or enqueue it pending
// resolution.
package unreachable

import (
	"context"
	"net/netip"

	"go.uber.org/zap"

	"github.com/dpdk-grout/grout/internal/fsm"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/pkt"
	"github.com/dpdk-grout/grout/internal/routetable"
)

// Miss is the ring payload a datapath worker posts when it classifies a
// packet as having no resolved next-hop (spec §4.4's "packet plus a
// reason tag").
type Miss struct {
	VRF    nexthop6.VRFID
	Iface  nexthop6.IfaceID
	Packet *pkt.Packet
}

// Handler is the unreachable (datapath-miss) callback.
type Handler struct {
	pool   *nexthop6.Pool
	routes routetable.Table
	fsm    *fsm.Machine
	out    fsm.Outputter
	log    *zap.Logger
}

// New constructs a Handler wired to the pool, route table, resolution
// FSM and re-injection sink it needs to drive misses to resolution.
func New(pool *nexthop6.Pool, routes routetable.Table, m *fsm.Machine, out fsm.Outputter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{pool: pool, routes: routes, fsm: m, out: out, log: log}
}

// Handle runs the algorithm of spec §4.6 for a packet whose destination
// missed a host-specific next-hop. vrf and iface identify the packet's
// own (vrf, iface); p.Dst is the destination being resolved.
func (h *Handler) Handle(ctx context.Context, vrf nexthop6.VRFID, iface nexthop6.IfaceID, p *pkt.Packet) error {
	parent, ok := h.routes.Lookup(vrf, iface, p.Dst)
	if !ok {
		h.log.Debug("unreachable: no route, dropping", zap.Stringer("dst", p.Dst))
		p.Free()
		return nil
	}

	child := parent
	if parent.Flags.Has(nexthop6.Link) && parent.Key.Addr != p.Dst {
		var err error
		child, err = h.childFor(vrf, parent, p.Dst)
		if err != nil {
			return err
		}
	}

	if err := h.routes.InstallHost(vrf, p.Dst, child); err != nil {
		return err
	}

	if child.Flags.Has(nexthop6.Reachable) {
		h.out.Output(child, p)
		return nil
	}

	if !child.EnqueueHeld(p) {
		h.log.Debug("unreachable: hold queue full, dropped newest", zap.Stringer("dst", p.Dst))
	}

	if !child.Flags.Has(nexthop6.Pending) {
		h.fsm.Create(ctx, child)
	}
	return nil
}

// childFor finds or creates the host-specific next-hop for dst standing
// behind parent's connected-route match, and asserts that its resolved
// egress interface agrees with parent's (spec §4.6 step 2). A mismatch
// can only mean the route table has been corrupted into pointing two
// routes for the same destination at different interfaces, which spec §7
// classifies as fatal: it panics rather than return a recoverable error,
// since letting the caller treat this like ordinary invalid input would
// silently corrupt forwarding instead of surfacing the bug.
func (h *Handler) childFor(vrf nexthop6.VRFID, parent *nexthop6.Nexthop, dst netip.Addr) (*nexthop6.Nexthop, error) {
	child := h.pool.Lookup(vrf, nexthop6.UndefIface, dst)
	if child == nil {
		var err error
		child, err = h.pool.New(vrf, parent.OutIface, dst)
		if err != nil {
			return nil, err
		}
	}

	if child.Flags.Has(nexthop6.Gateway) && child.OutIface == nexthop6.UndefIface {
		child.OutIface = parent.OutIface
	}
	if child.OutIface != parent.OutIface {
		h.log.Error("unreachable: route table corruption, iface mismatch",
			zap.Stringer("dst", dst),
			zap.Uint32("parent_iface", uint32(parent.OutIface)),
			zap.Uint32("child_iface", uint32(child.OutIface)),
		)
		panic("unreachable: route table corruption, iface mismatch")
	}
	return child, nil
}
