package main

import (
	"context"
	"encoding/binary"
	"net/netip"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/dpdk-grout/grout/internal/iface"
	"github.com/dpdk-grout/grout/internal/ndp6"
	"github.com/dpdk-grout/grout/internal/nexthop6"
	"github.com/dpdk-grout/grout/internal/ring"
)

// ndpReceiver reads inbound Neighbor Solicitation / Neighbor Advertisement
// frames off a raw ICMPv6 socket spanning every interface and drives them
// into the control thread: a directly-answerable NS gets its NA sent back
// immediately (no next-hop state involved), while anything that teaches
// or resolves next-hop state is posted to the ring as an ndpEvent, the
// way the teacher's netstack hands received NDP off to its own per-NIC
// dispatcher instead of answering inline.
type ndpReceiver struct {
	fd       int
	vrf      nexthop6.VRFID
	ifaces   iface.Inventory
	sender   *rawSender
	r        *ring.Ring
	ndpInput ring.HandlerID
	log      *zap.Logger
}

func newNDPReceiver(vrf nexthop6.VRFID, ifaces iface.Inventory, sender *rawSender, r *ring.Ring, ndpInput ring.HandlerID, log *zap.Logger) (*ndpReceiver, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_ICMPV6)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &ndpReceiver{fd: fd, vrf: vrf, ifaces: ifaces, sender: sender, r: r, ndpInput: ndpInput, log: log}, nil
}

func (n *ndpReceiver) Close() error {
	return unix.Close(n.fd)
}

// Run reads frames until ctx is canceled, which is the signal recvmsg
// below doesn't see directly; closing fd from another goroutine on
// shutdown is what actually unblocks it, same as the teacher's listener
// goroutines rely on their fd being closed to break out of a blocking read.
func (n *ndpReceiver) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		unix.Close(n.fd)
	}()

	buf := make([]byte, 1500)
	oob := make([]byte, unix.CmsgSpace(unix.SizeofInet6Pktinfo))

	for {
		nRead, nOob, _, from, err := unix.Recvmsg(n.fd, buf, oob, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		sa6, ok := from.(*unix.SockaddrInet6)
		if !ok {
			continue
		}

		ifaceID, dst, ok := parsePktInfo(oob[:nOob])
		if !ok {
			continue
		}

		hdr := ndp6.V6Header{
			Src:        netip.AddrFrom16(sa6.Addr),
			Dst:        dst,
			HopLimit:   ndp6.HopLimit,
			NextHeader: ndp6.ICMPv6ProtocolNumber,
			PayloadLen: uint16(nRead),
		}
		n.handle(hdr, append([]byte(nil), buf[:nRead]...), ifaceID)
	}
}

func (n *ndpReceiver) handle(hdr ndp6.V6Header, icmp []byte, ifaceID nexthop6.IfaceID) {
	if len(icmp) == 0 {
		return
	}

	switch icmp[0] {
	case ndp6.ICMPv6NeighborSolicit:
		mac, ok := n.ifaces.MAC(ifaceID)
		if !ok {
			return
		}
		naOut, learn, err := ndp6.HandleNS(hdr, icmp, ndp6.LinkAddr(mac), func(a netip.Addr) bool {
			src, ok := n.ifaces.PreferredSource(ifaceID)
			return ok && src == a
		})
		if err != nil {
			n.log.Debug("ndp receive: dropped NS", zap.Error(err))
			return
		}
		if naOut != nil {
			if err := n.sender.SendNS(ifaceID, naOut); err != nil {
				n.log.Debug("ndp receive: failed to send NA reply", zap.Error(err))
			}
		}
		if learn != nil {
			n.post(ndpEvent{vrf: n.vrf, iface: ifaceID, learn: learn})
		}

	case ndp6.ICMPv6NeighborAdvert:
		na, err := ndp6.ParseNA(hdr, icmp)
		if err != nil {
			n.log.Debug("ndp receive: dropped NA", zap.Error(err))
			return
		}
		n.post(ndpEvent{vrf: n.vrf, iface: ifaceID, na: na})
	}
}

func (n *ndpReceiver) post(ev ndpEvent) {
	if err := n.r.Post(n.ndpInput, ev); err != nil {
		n.log.Debug("ndp receive: control ring full, dropping event")
	}
}

// parsePktInfo extracts the receiving interface and destination address
// from an IPV6_PKTINFO ancillary message.
func parsePktInfo(oob []byte) (nexthop6.IfaceID, netip.Addr, bool) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, netip.Addr{}, false
	}
	for _, m := range msgs {
		if m.Header.Level != unix.IPPROTO_IPV6 || m.Header.Type != unix.IPV6_PKTINFO {
			continue
		}
		if len(m.Data) < unix.SizeofInet6Pktinfo {
			continue
		}
		var addr [16]byte
		copy(addr[:], m.Data[:16])
		ifindex := binary.NativeEndian.Uint32(m.Data[16:20])
		return nexthop6.IfaceID(ifindex), netip.AddrFrom16(addr), true
	}
	return 0, netip.Addr{}, false
}
