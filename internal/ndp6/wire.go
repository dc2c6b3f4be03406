// Package ndp6 implements the wire-level Neighbor Solicitation / Neighbor
// Advertisement codec described in spec §4.5: RFC 4861 parsing with
// strict validation, and construction of replies/probes.
package ndp6

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

// ICMPv6 message types used by NDP (RFC 4861 §4).
const (
	ICMPv6NeighborSolicit uint8 = 135
	ICMPv6NeighborAdvert  uint8 = 136
)

// NDP option types (RFC 4861 §4.6), length is encoded in units of 8 bytes.
const (
	OptSourceLinkLayerAddr uint8 = 1
	OptTargetLinkLayerAddr uint8 = 2
)

// HopLimit is mandated for every NDP packet, sent and received (RFC 4861
// §4.1-4.5, 6.1.1-6.1.2, 7.1.1-7.1.2, 8.1).
const HopLimit uint8 = 255

// minICMPLen is the documented "24 or more octets" bound from spec §9's
// open question: 4 bytes of ICMPv6 header + 4 reserved + 16 target
// address = 24. We enforce this explicitly rather than translate the
// tautological "len >= 0 on an unsigned value" assertion found upstream.
const minICMPLen = 24

var (
	errTooShort        = errors.New("ndp6: packet shorter than 24 octets")
	errBadCode         = errors.New("ndp6: icmpv6 code must be 0")
	errBadHopLimit     = errors.New("ndp6: hop limit must be 255")
	errMulticastTarget = errors.New("ndp6: target address must not be multicast")
	errBadDAD          = errors.New("ndp6: unspecified source requires multicast destination and no source lladdr")
	errBadChecksum     = errors.New("ndp6: checksum mismatch")
	errBadOption       = errors.New("ndp6: malformed option")
	errWrongType       = errors.New("ndp6: unexpected icmpv6 type")
)

// LinkAddr is an EUI-48 link-layer address.
type LinkAddr [6]byte

// V6Header is the minimal IPv6 header view this codec needs: enough to
// validate and build NS/NA exchanges without depending on a full IPv6
// stack, which is this package's out-of-scope collaborator.
type V6Header struct {
	Src, Dst   netip.Addr
	HopLimit   uint8
	NextHeader uint8
	PayloadLen uint16
}

const v6HeaderLen = 40

// ParseV6Header reads the fixed 40-byte IPv6 header from the front of b.
func ParseV6Header(b []byte) (V6Header, []byte, error) {
	if len(b) < v6HeaderLen {
		return V6Header{}, nil, errTooShort
	}
	h := V6Header{
		PayloadLen: binary.BigEndian.Uint16(b[4:6]),
		NextHeader: b[6],
		HopLimit:   b[7],
	}
	var err error
	h.Src, err = addrFromBytes(b[8:24])
	if err != nil {
		return V6Header{}, nil, err
	}
	h.Dst, err = addrFromBytes(b[24:40])
	if err != nil {
		return V6Header{}, nil, err
	}
	return h, b[v6HeaderLen:], nil
}

func addrFromBytes(b []byte) (netip.Addr, error) {
	var a [16]byte
	copy(a[:], b)
	return netip.AddrFrom16(a), nil
}

// Build serializes the IPv6 header. NextHeader is always ICMPv6 here.
func (h V6Header) Build() []byte {
	b := make([]byte, v6HeaderLen)
	b[0] = 6 << 4
	binary.BigEndian.PutUint16(b[4:6], h.PayloadLen)
	b[6] = h.NextHeader
	b[7] = h.HopLimit
	src16 := h.Src.As16()
	dst16 := h.Dst.As16()
	copy(b[8:24], src16[:])
	copy(b[24:40], dst16[:])
	return b
}

// ICMPv6ProtocolNumber is the IPv6 next-header value for ICMPv6.
const ICMPv6ProtocolNumber uint8 = 58
