package ndp6

import "net/netip"

// solicitedNodePrefix is the fixed 104-bit prefix FF02::1:FF00:0/104.
var solicitedNodePrefix = [13]byte{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0xff}

// SolicitedNodeMulticast derives the solicited-node multicast address
// FF02::1:FFxx:xxxx from the low 24 bits of addr (RFC 4861 §2.3).
func SolicitedNodeMulticast(addr netip.Addr) netip.Addr {
	a16 := addr.As16()
	var out [16]byte
	copy(out[:13], solicitedNodePrefix[:])
	copy(out[13:16], a16[13:16])
	return netip.AddrFrom16(out)
}

// EthernetMulticastFromIPv6 derives the Ethernet multicast MAC (RFC 2464
// §7) a solicited-node or all-nodes multicast IPv6 address maps to:
// 33:33:xx:xx:xx:xx from the low 32 bits of addr.
func EthernetMulticastFromIPv6(addr netip.Addr) LinkAddr {
	a16 := addr.As16()
	return LinkAddr{0x33, 0x33, a16[12], a16[13], a16[14], a16[15]}
}
