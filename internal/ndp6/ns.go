package ndp6

import "net/netip"

// NS is a parsed/to-be-built Neighbor Solicitation.
type NS struct {
	Target         netip.Addr
	SourceLinkAddr *LinkAddr
}

// ParseNS validates and decodes an incoming NS per RFC 4861 and spec
// §4.5/§8.5 property 5: drop unless hop-limit is exactly 255, ICMPv6 code
// is 0, the ICMPv6 body is at least 24 octets, the target is not
// multicast, and — if the source is unspecified (::) — the destination is
// multicast and no source-lladdr option is present.
//
// ip.HopLimit, ip.Src and ip.Dst must already be populated from the
// enclosing IPv6 header.
func ParseNS(ip V6Header, icmp []byte) (*NS, error) {
	if ip.HopLimit != HopLimit {
		return nil, errBadHopLimit
	}
	if len(icmp) < minICMPLen {
		return nil, errTooShort
	}
	if icmp[0] != ICMPv6NeighborSolicit {
		return nil, errWrongType
	}
	if icmp[1] != 0 {
		return nil, errBadCode
	}
	if !verifyChecksum(ip.Src, ip.Dst, icmp) {
		return nil, errBadChecksum
	}

	target, err := addrFromBytes(icmp[8:24])
	if err != nil {
		return nil, err
	}
	if target.Is6() && target.IsMulticast() {
		return nil, errMulticastTarget
	}

	srcLLA, present, err := findSourceLinkLayerAddr(icmp[24:])
	if err != nil {
		return nil, err
	}

	if ip.Src.IsUnspecified() {
		if !ip.Dst.IsMulticast() || present {
			return nil, errBadDAD
		}
	}

	ns := &NS{Target: target}
	if present {
		ns.SourceLinkAddr = &srcLLA
	}
	return ns, nil
}

// ForControlPlane implements the "source-override trick" from spec §4.5:
// when a learnable link address accompanies a non-:: source, the packet
// handed to the control thread is a copy of ns with its target field
// overwritten with the original IPv6 source address, rather than
// carrying the full IPv6 header across the ring. The returned NS always
// carries the learned source-lladdr.
func (ns *NS) ForControlPlane(origSrc netip.Addr) *NS {
	return &NS{Target: origSrc, SourceLinkAddr: ns.SourceLinkAddr}
}

// BuildNS serializes a full IPv6+ICMPv6 Neighbor Solicitation, as emitted
// by the probe emitter (spec §4.5 "NS output").
func BuildNS(src, dst, target netip.Addr, srcLinkAddr LinkAddr) []byte {
	opt := encodeLinkLayerOption(OptSourceLinkLayerAddr, srcLinkAddr)

	icmp := make([]byte, 24+len(opt))
	icmp[0] = ICMPv6NeighborSolicit
	icmp[1] = 0
	t := target.As16()
	copy(icmp[8:24], t[:])
	copy(icmp[24:], opt)
	setChecksum(src, dst, icmp)

	ipHdr := V6Header{
		Src:        src,
		Dst:        dst,
		PayloadLen: uint16(len(icmp)),
		NextHeader: ICMPv6ProtocolNumber,
		HopLimit:   HopLimit,
	}
	return append(ipHdr.Build(), icmp...)
}
