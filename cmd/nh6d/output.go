package main

import (
	"go.uber.org/zap"

	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/pkt"
)

// logOutputter implements fsm.Outputter by logging the re-injection and
// releasing the packet. The forwarding graph's actual ip6_output node is
// this module's out-of-scope collaborator (spec §1); a real deployment
// wires Outputter to it instead.
type logOutputter struct {
	log *zap.Logger
}

func (o *logOutputter) Output(nh *nexthop6.Nexthop, p *pkt.Packet) {
	o.log.Debug("packet re-injected to ip6_output",
		zap.Stringer("nexthop", nh.Addr),
		zap.Stringer("dst", p.Dst),
	)
	p.Free()
}
