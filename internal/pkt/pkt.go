// Package pkt defines the packet representation shared by the control
// ring, hold queue, NDP codec and unreachable handler.
//
// The real dataplane's packet is an mbuf backed by hugepage memory (out of
// scope per spec §1); this is the in-scope stand-in the core operates on,
// analogous to gvisor's stack.PacketBuffer.
package pkt

import "net/netip"

// Packet is a single IPv6 datagram in flight between the datapath and the
// control thread.
type Packet struct {
	VRF   uint32
	Iface uint32
	Dst   netip.Addr

	// Payload is the datagram bytes, starting at the IPv6 header.
	Payload []byte

	// LinkAddr carries the resolved link address once attached by the
	// control thread, for re-injection into ip6_output.
	LinkAddr [6]byte

	// freed is set by Free to make double-free a programmer error we can
	// catch in tests rather than a silent leak or corruption.
	freed bool

	// onFree, when set, is invoked by Free instead of the no-op default.
	// Tests use this to count drops without a real mbuf pool.
	onFree func(*Packet)
}

// New wraps payload as a held/in-flight packet.
func New(vrf, iface uint32, dst netip.Addr, payload []byte) *Packet {
	return &Packet{VRF: vrf, Iface: iface, Dst: dst, Payload: payload}
}

// OnFree registers a callback invoked exactly once when Free runs. Used by
// tests to observe drops without a real mbuf pool.
func (p *Packet) OnFree(fn func(*Packet)) {
	p.onFree = fn
}

// Free releases the packet. It must be called at most once; calling it
// twice panics, since that would indicate a double-free of a dataplane
// buffer.
func (p *Packet) Free() {
	if p.freed {
		panic("pkt: double free")
	}
	p.freed = true
	if p.onFree != nil {
		p.onFree(p)
	}
}

// Freed reports whether Free has already run.
func (p *Packet) Freed() bool {
	return p.freed
}
