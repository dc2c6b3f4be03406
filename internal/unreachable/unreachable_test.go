package unreachable

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/dpdk-grout/grout/internal/fsm"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/pkt"
	"github.com/dpdk-grout/grout/internal/routetable"
)

type fakeProber struct{ calls int }

func (f *fakeProber) Probe(context.Context, *nexthop6.Nexthop) error {
	f.calls++
	return nil
}

type fakeOutputter struct{ outputted []*pkt.Packet }

func (f *fakeOutputter) Output(nh *nexthop6.Nexthop, p *pkt.Packet) {
	f.outputted = append(f.outputted, p)
}

func newTestHandler(t *testing.T) (*Handler, *nexthop6.Pool, *routetable.Fake, *fakeProber, *fakeOutputter) {
	t.Helper()
	pool, err := nexthop6.NewPool(nexthop6.Config{NumNexthops: 16, MaxHeldPackets: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	routes := routetable.NewFake(pool)
	prober := &fakeProber{}
	out := &fakeOutputter{}
	m := fsm.New(nexthop6.Config{UnicastProbes: 3, BroadcastProbes: 3}, prober, out, nil, func() time.Time { return time.Unix(0, 0) })
	return New(pool, routes, m, out, nil), pool, routes, prober, out
}

func TestHandleNoRouteDropsPacket(t *testing.T) {
	h, _, _, _, _ := newTestHandler(t)
	dst := netip.MustParseAddr("2001:db8::1")
	p := pkt.New(0, 1, dst, nil)

	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !p.Freed() {
		t.Fatal("a packet with no covering route must be freed")
	}
}

// TestHandleDirectRouteReachableOutputsImmediately covers the case where
// the parent route itself is host-specific and already resolved: the
// packet goes straight to re-injection, bypassing the hold queue.
func TestHandleDirectRouteReachableOutputsImmediately(t *testing.T) {
	h, pool, routes, _, out := newTestHandler(t)
	dst := netip.MustParseAddr("2001:db8::1")
	nh, err := pool.New(0, 1, dst)
	if err != nil {
		t.Fatal(err)
	}
	nh.OutIface = 1
	nh.Flags |= nexthop6.Reachable
	routes.Seed(0, 1, dst, nh)

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(out.outputted) != 1 || out.outputted[0] != p {
		t.Fatalf("outputted = %v, want [p]", out.outputted)
	}
}

// TestHandleDirectRouteNotReachableEnqueuesAndCreates exercises the hold
// path: the packet is queued and resolution is started.
func TestHandleDirectRouteNotReachableEnqueuesAndCreates(t *testing.T) {
	h, pool, routes, prober, _ := newTestHandler(t)
	dst := netip.MustParseAddr("2001:db8::1")
	nh, err := pool.New(0, 1, dst)
	if err != nil {
		t.Fatal(err)
	}
	nh.OutIface = 1
	routes.Seed(0, 1, dst, nh)

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if nh.HeldPackets() != 1 {
		t.Fatalf("HeldPackets() = %d, want 1", nh.HeldPackets())
	}
	if !nh.Flags.Has(nexthop6.Pending) {
		t.Fatal("Handle must start resolution for a non-REACHABLE next-hop")
	}
	if prober.calls != 1 {
		t.Fatalf("prober.calls = %d, want 1", prober.calls)
	}
}

func TestHandleDirectRouteAlreadyPendingDoesNotReprobe(t *testing.T) {
	h, pool, routes, prober, _ := newTestHandler(t)
	dst := netip.MustParseAddr("2001:db8::1")
	nh, err := pool.New(0, 1, dst)
	if err != nil {
		t.Fatal(err)
	}
	nh.OutIface = 1
	nh.Flags |= nexthop6.Pending
	routes.Seed(0, 1, dst, nh)

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if prober.calls != 0 {
		t.Fatal("Handle must not re-arm resolution for an already-PENDING next-hop")
	}
}

// TestHandleLinkRouteCreatesHostChild covers the connected-route fan-out:
// a miss against a LINK next-hop creates a new host-specific next-hop
// inheriting the parent's egress interface and installs a /128 route for
// it.
func TestHandleLinkRouteCreatesHostChild(t *testing.T) {
	h, pool, routes, _, _ := newTestHandler(t)
	subnet := netip.MustParseAddr("2001:db8::")
	dst := netip.MustParseAddr("2001:db8::1")

	parent, err := pool.New(0, 1, subnet)
	if err != nil {
		t.Fatal(err)
	}
	parent.OutIface = 1
	parent.Flags |= nexthop6.Link
	routes.Seed(0, 1, dst, parent)

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	child := pool.Lookup(0, 1, dst)
	if child == nil {
		t.Fatal("Handle must create a host-specific child next-hop")
	}
	if child.OutIface != parent.OutIface {
		t.Fatalf("child.OutIface = %d, want %d", child.OutIface, parent.OutIface)
	}
	got, ok := routes.Lookup(0, 1, dst)
	if !ok || got != child {
		t.Fatal("Handle must install a host route pointing at the new child")
	}
}

func TestHandleLinkRouteReusesExistingChild(t *testing.T) {
	h, pool, routes, _, _ := newTestHandler(t)
	subnet := netip.MustParseAddr("2001:db8::")
	dst := netip.MustParseAddr("2001:db8::1")

	parent, err := pool.New(0, 1, subnet)
	if err != nil {
		t.Fatal(err)
	}
	parent.OutIface = 1
	parent.Flags |= nexthop6.Link
	routes.Seed(0, 1, dst, parent)

	existing, err := pool.New(0, 1, dst)
	if err != nil {
		t.Fatal(err)
	}
	existing.OutIface = 1
	existing.Flags |= nexthop6.Reachable

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if pool.Lookup(0, 1, dst) != existing {
		t.Fatal("Handle must reuse the already-allocated next-hop rather than creating a duplicate")
	}
}

// TestHandleGatewayChildInheritsParentIface covers childFor's GATEWAY
// clause: a child resolved via a gateway route with no iface of its own
// yet inherits the parent's egress interface instead of mismatching.
func TestHandleGatewayChildInheritsParentIface(t *testing.T) {
	h, pool, routes, _, _ := newTestHandler(t)
	subnet := netip.MustParseAddr("2001:db8::")
	dst := netip.MustParseAddr("2001:db8::1")

	parent, err := pool.New(0, 1, subnet)
	if err != nil {
		t.Fatal(err)
	}
	parent.OutIface = 1
	parent.Flags |= nexthop6.Link
	routes.Seed(0, 1, dst, parent)

	child, err := pool.New(0, nexthop6.UndefIface, dst)
	if err != nil {
		t.Fatal(err)
	}
	child.Flags |= nexthop6.Gateway
	child.OutIface = nexthop6.UndefIface

	p := pkt.New(0, 1, dst, nil)
	if err := h.Handle(context.Background(), 0, 1, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if child.OutIface != parent.OutIface {
		t.Fatalf("child.OutIface = %d, want inherited %d", child.OutIface, parent.OutIface)
	}
}

// TestHandleIfaceMismatchIsFatal covers the route-table-corruption guard:
// a pre-existing child whose resolved iface disagrees with the parent's
// indicates a bug that would silently corrupt forwarding (spec §7), so
// Handle must panic rather than return a recoverable error.
func TestHandleIfaceMismatchIsFatal(t *testing.T) {
	h, pool, routes, _, _ := newTestHandler(t)
	subnet := netip.MustParseAddr("2001:db8::")
	dst := netip.MustParseAddr("2001:db8::1")

	parent, err := pool.New(0, 1, subnet)
	if err != nil {
		t.Fatal(err)
	}
	parent.OutIface = 1
	parent.Flags |= nexthop6.Link
	routes.Seed(0, 1, dst, parent)

	child, err := pool.New(0, 2, dst)
	if err != nil {
		t.Fatal(err)
	}
	child.OutIface = 2

	defer func() {
		if recover() == nil {
			t.Fatal("Handle with mismatched child iface did not panic")
		}
	}()
	p := pkt.New(0, 1, dst, nil)
	_ = h.Handle(context.Background(), 0, 1, p)
}
