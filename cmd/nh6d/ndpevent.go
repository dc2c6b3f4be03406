package main

import (
	"github.com/dpdk-grout/grout/internal/fsm"
	"github.com/dpdk-grout/grout/internal/ndp6"
	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// ndpEvent is the ring payload carrying an NDP codec side effect that
// must mutate next-hop state on the control thread: either a source
// learned from a Neighbor Solicitation (spec §4.5's source-override
// trick), or a Neighbor Advertisement received in answer to a probe.
type ndpEvent struct {
	vrf   nexthop6.VRFID
	iface nexthop6.IfaceID
	learn *ndp6.NS
	na    *ndp6.NA
}

// handleNDPEvent looks up the next-hop the event refers to and drives
// the resolution FSM, discarding events for addresses we have no
// next-hop record for (an NDP exchange with no outstanding resolution).
func handleNDPEvent(pool *nexthop6.Pool, machine *fsm.Machine, ev ndpEvent) {
	switch {
	case ev.learn != nil && ev.learn.SourceLinkAddr != nil:
		nh := pool.Lookup(ev.vrf, ev.iface, ev.learn.Target)
		if nh == nil {
			return
		}
		machine.OnNeighborAdvert(nh, nexthop6.LinkAddr(*ev.learn.SourceLinkAddr))

	case ev.na != nil && ev.na.TargetLinkAddr != nil:
		nh := pool.Lookup(ev.vrf, ev.iface, ev.na.Target)
		if nh == nil {
			return
		}
		machine.OnNeighborAdvert(nh, nexthop6.LinkAddr(*ev.na.TargetLinkAddr))
	}
}
