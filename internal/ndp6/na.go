package ndp6

import "net/netip"

// Flag bits within the NA's 4th octet (RFC 4861 §4.4).
const (
	naFlagRouter    = 1 << 7
	naFlagSolicited = 1 << 6
	naFlagOverride  = 1 << 5
)

// allNodesMulticast is FF02::1, used as the destination of an
// unsolicited NA sent in answer to a DAD probe from :: (spec §4.5).
var allNodesMulticast = netip.MustParseAddr("ff02::1")

// NA is a parsed/to-be-built Neighbor Advertisement.
type NA struct {
	Target         netip.Addr
	TargetLinkAddr *LinkAddr
	Router         bool
	Solicited      bool
	Override       bool
}

// ParseNA validates and decodes an incoming NA per RFC 4861 and spec
// §4.5/§8.5: same hop-limit/code/length rules as ParseNS, type 136.
func ParseNA(ip V6Header, icmp []byte) (*NA, error) {
	if ip.HopLimit != HopLimit {
		return nil, errBadHopLimit
	}
	if len(icmp) < minICMPLen {
		return nil, errTooShort
	}
	if icmp[0] != ICMPv6NeighborAdvert {
		return nil, errWrongType
	}
	if icmp[1] != 0 {
		return nil, errBadCode
	}
	if !verifyChecksum(ip.Src, ip.Dst, icmp) {
		return nil, errBadChecksum
	}

	flags := icmp[4]
	target, err := addrFromBytes(icmp[8:24])
	if err != nil {
		return nil, err
	}

	na := &NA{
		Target:    target,
		Router:    flags&naFlagRouter != 0,
		Solicited: flags&naFlagSolicited != 0,
		Override:  flags&naFlagOverride != 0,
	}

	var targetLLA LinkAddr
	var present bool
	err = iterOptions(icmp[24:], func(optType uint8, value []byte) error {
		if optType != OptTargetLinkLayerAddr {
			return nil
		}
		if len(value) < 6 {
			return errBadOption
		}
		present = true
		copy(targetLLA[:], value[:6])
		return nil
	})
	if err != nil {
		return nil, err
	}
	if present {
		na.TargetLinkAddr = &targetLLA
	}
	return na, nil
}

// BuildNA constructs the Neighbor Advertisement answering an NS whose
// target was origTarget, received with source origSrc (the unspecified
// address "::" for a DAD probe), per spec §4.5.
//
// The response reuses the NS's target as its own source and, unless the
// solicitation came from ::, replies unicast to the solicitation's
// source; a DAD probe instead gets an unsolicited advertisement to the
// all-nodes multicast address.
func BuildNA(origSrc, origTarget netip.Addr, ifaceMAC LinkAddr) []byte {
	solicited := !origSrc.IsUnspecified()
	dst := origSrc
	if !solicited {
		dst = allNodesMulticast
	}
	src := origTarget

	opt := encodeLinkLayerOption(OptTargetLinkLayerAddr, ifaceMAC)
	icmp := make([]byte, 24+len(opt))
	icmp[0] = ICMPv6NeighborAdvert
	icmp[1] = 0
	icmp[4] = naFlagRouter | naFlagOverride
	if solicited {
		icmp[4] |= naFlagSolicited
	}
	t := origTarget.As16()
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
