package nexthop6

import (
	"math"
	"net/netip"
	"time"

	"github.com/dpdk-grout/grout/internal/holdqueue"
	"github.com/dpdk-grout/grout/internal/pkt"
)

// heldQueue is the per-next-hop bounded FIFO of packets awaiting
// resolution, per spec §4.3.
type heldQueue = holdqueue.Queue[*pkt.Packet]

func newHeldQueue(limit int) *heldQueue {
	return holdqueue.New[*pkt.Packet](limit)
}

// VRFID identifies a virtual routing and forwarding instance.
type VRFID uint32

// IfaceID identifies a network interface.
type IfaceID uint32

// UndefIface is the "any interface in this vrf" sentinel used by lookup
// during administrative deletion.
const UndefIface IfaceID = math.MaxUint32

// LinkAddr is an EUI-48 link-layer (MAC) address.
type LinkAddr [6]byte

// IsZero reports whether a has never been learned.
func (a LinkAddr) IsZero() bool {
	return a == LinkAddr{}
}

// Flags is the bitmask of states and roles a next-hop can carry, per
// spec §3.
type Flags uint16

const (
	// Static next-hops are administratively configured and never probed
	// or expired.
	Static Flags = 1 << iota
	// Local marks a next-hop for an address owned by this router.
	Local
	// Link marks a next-hop standing in for a connected subnet match.
	Link
	// Gateway marks a next-hop reached via a configured gateway route.
	Gateway
	// Reachable marks a next-hop with a confirmed, fresh link address.
	Reachable
	// Stale marks a next-hop whose reachability has not been
	// reconfirmed within the reachable lifetime.
	Stale
	// Pending marks a next-hop with an outstanding probe.
	Pending
	// Failed marks a next-hop whose probe budget was exhausted.
	Failed
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Any reports whether any bit of want is set in f.
func (f Flags) Any(want Flags) bool {
	return f&want != 0
}

func (f Flags) String() string {
	names := []struct {
		bit  Flags
		name string
	}{
		{Static, "STATIC"}, {Local, "LOCAL"}, {Link, "LINK"}, {Gateway, "GATEWAY"},
		{Reachable, "REACHABLE"}, {Stale, "STALE"}, {Pending, "PENDING"}, {Failed, "FAILED"},
	}
	s := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// Key uniquely identifies a next-hop record per spec §3: (vrf, iface, addr).
type Key struct {
	VRF   VRFID
	Iface IfaceID
	Addr  netip.Addr
}

// Nexthop is the resolution record for a single (vrf, iface, addr) tuple.
//
// Mutation is confined to the control thread (spec §5); datapath readers
// hold a stable *Nexthop obtained from Pool.Lookup and must not write to
// it.
type Nexthop struct {
	Key

	// OutIface is the resolved egress interface, which may differ from
	// Key.Iface when the match came via a connected route (spec §3).
	OutIface IfaceID

	LinkAddr LinkAddr
	Flags    Flags

	UcastProbes uint8
	BcastProbes uint8

	LastRequest time.Time
	LastReply   time.Time

	RefCount uint32

	held *heldQueue

	slot int
}

// Age returns the time since the last reply was received, or zero if none
// has ever been received.
func (nh *Nexthop) Age(now time.Time) time.Duration {
	if nh.LastReply.IsZero() {
		return 0
	}
	return now.Sub(nh.LastReply)
}

// HeldPackets returns the number of packets currently queued on nh.
func (nh *Nexthop) HeldPackets() int {
	return nh.held.Len()
}

// EnqueueHeld appends p to nh's hold queue. It returns false (and frees p)
// if the queue is already at NH_MAX_HELD_PKTS, implementing the
// drop-the-newest overflow policy from spec §4.3.
func (nh *Nexthop) EnqueueHeld(p *pkt.Packet) bool {
	return nh.held.Enqueue(p)
}

// FlushHeld drains every held packet in enqueue order, handing each to fn.
// Used on the transition to REACHABLE (spec §4.2/§4.3).
func (nh *Nexthop) FlushHeld(fn func(*pkt.Packet)) {
	nh.held.Drain(fn)
}

// DiscardHeld frees every held packet without delivering it. Used on the
// transition to FAILED (spec §4.2/§4.3).
func (nh *Nexthop) DiscardHeld() {
	nh.held.DiscardAll()
}
