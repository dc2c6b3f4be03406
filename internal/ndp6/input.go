package ndp6

import "net/netip"

// HandleNS is the datapath-node transform for an incoming Neighbor
// Solicitation (spec §4.5).
//
// It validates the packet (returning err, the INVAL edge, on any RFC 4861
// violation) and then takes up to two independent actions: if target is
// one of our local addresses, naOut is a ready-to-send Neighbor
// Advertisement; if the solicitation carries a specified source and a
// source-lladdr option, learn is the source-override copy (spec §4.5,
// §8.5 property 8) that should be handed to the control thread to update
// next-hop state. Either, both, or neither may be produced: a gratuitous
// NS can both answer and teach (scenario S4); a DAD probe from :: can
// only answer (S5); an NS for a target we don't own only teaches.
func HandleNS(ipHdr V6Header, icmp []byte, ifaceMAC LinkAddr, isLocal func(netip.Addr) bool) (naOut []byte, learn *NS, err error) {
	ns, err := ParseNS(ipHdr, icmp)
	if err != nil {
		return nil, nil, err
	}

	if isLocal(ns.Target) {
		naOut = BuildNA(ipHdr.Src, ns.Target, ifaceMAC)
	}

	if !ipHdr.Src.IsUnspecified() && ns.SourceLinkAddr != nil {
		learn = ns.ForControlPlane(ipHdr.Src)
	}

	return naOut, learn, nil
}
