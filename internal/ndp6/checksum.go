package ndp6

import (
	"encoding/binary"
	"net/netip"
)

// checksum computes the Internet checksum (RFC 1071) over data.
func checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// pseudoHeader builds the IPv6 pseudo-header used for the ICMPv6
// checksum: source, destination, upper-layer length and next header
// (RFC 8200 §8.1), mirroring gvisor's header.ICMPv6Checksum inputs.
func pseudoHeader(src, dst netip.Addr, upperLen uint32, nextHeader uint8) []byte {
	b := make([]byte, 40)
	s, d := src.As16(), dst.As16()
	copy(b[0:16], s[:])
	copy(b[16:32], d[:])
	binary.BigEndian.PutUint32(b[32:36], upperLen)
	b[39] = nextHeader
	return b
}

// icmpv6Checksum computes the checksum of an ICMPv6 message (with its
// checksum field treated as zero) given the enclosing IPv6 addresses.
func icmpv6Checksum(src, dst netip.Addr, icmp []byte) uint16 {
	psh := pseudoHeader(src, dst, uint32(len(icmp)), ICMPv6ProtocolNumber)
	full := make([]byte, 0, len(psh)+len(icmp))
	full = append(full, psh...)
	full = append(full, icmp...)
	return checksum(full)
}

// setChecksum writes the computed checksum into icmp[2:4], which must be
// zeroed by the caller first.
func setChecksum(src, dst netip.Addr, icmp []byte) {
	binary.BigEndian.PutUint16(icmp[2:4], icmpv6Checksum(src, dst, icmp))
}

// verifyChecksum reports whether icmp's embedded checksum matches what it
// should be, per the pseudo-header rule above.
func verifyChecksum(src, dst netip.Addr, icmp []byte) bool {
	if len(icmp) < 4 {
		return false
	}
	got := binary.BigEndian.Uint16(icmp[2:4])
	cp := append([]byte(nil), icmp...)
	cp[2], cp[3] = 0, 0
	want := icmpv6Checksum(src, dst, cp)
	return got == want
}
