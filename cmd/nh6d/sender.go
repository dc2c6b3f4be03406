package main

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/dpdk-grout/grout/internal/ndp6"
	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// rawSender transmits NDP packets (NS probes built by internal/probe and
// NA replies built by the receiver) through a raw ICMPv6 socket bound to
// the egress interface.
//
// The real dataplane's packet transmission (hugepage mbufs, the
// forwarding graph's output node) is this module's out-of-scope
// collaborator (spec §1); this is the standalone binary's stand-in for
// it, grounded on the raw-socket pattern in the pack's BFD and uping
// tools (golang.org/x/sys/unix socket/sockopt calls instead of a
// userland netstack).
type rawSender struct {
	fd int
}

func newRawSender() (*rawSender, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_ICMPV6)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, int(ndp6.HopLimit)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &rawSender{fd: fd}, nil
}

// SendNS implements probe.Sender. wire is a full IPv6+ICMPv6 packet as
// built by ndp6.BuildNS or ndp6.BuildNA; the IPv6 header is stripped since a raw
// ICMPv6 socket lets the kernel supply it.
func (s *rawSender) SendNS(iface nexthop6.IfaceID, wire []byte) error {
	ifi, err := net.InterfaceByIndex(int(iface))
	if err != nil {
		return err
	}
	if err := unix.BindToDevice(s.fd, ifi.Name); err != nil {
		return err
	}

	hdr, icmp, err := ndp6.ParseV6Header(wire)
	if err != nil {
		return err
	}

	sa := &unix.SockaddrInet6{Addr: hdr.Dst.As16(), ZoneId: uint32(ifi.Index)}
	return unix.Sendto(s.fd, icmp, 0, sa)
}

func (s *rawSender) Close() error {
	return unix.Close(s.fd)
}
