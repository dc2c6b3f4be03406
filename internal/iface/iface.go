// Package iface models the interface inventory as an out-of-scope
// collaborator, referenced only by its contract (spec §1): resolving an
// interface id to the facts the NDP codec and probe emitter need.
package iface

import (
	"net"
	"net/netip"
	"sync"

	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// Inventory is the contract this module needs from the interface table:
// a preferred local source address and the interface's own MAC.
type Inventory interface {
	PreferredSource(iface nexthop6.IfaceID) (netip.Addr, bool)
	MAC(iface nexthop6.IfaceID) (nexthop6.LinkAddr, bool)
	Exists(iface nexthop6.IfaceID) bool
}

// entry is one interface's registered facts.
type entry struct {
	src netip.Addr
	mac nexthop6.LinkAddr
}

// Fake is an in-memory Inventory for tests.
type Fake struct {
	mu      sync.Mutex
	entries map[nexthop6.IfaceID]entry
}

// NewFake constructs an empty Fake.
func NewFake() *Fake {
	return &Fake{entries: make(map[nexthop6.IfaceID]entry)}
}

// Add registers iface with a preferred source address and MAC.
func (f *Fake) Add(iface nexthop6.IfaceID, src netip.Addr, mac nexthop6.LinkAddr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[iface] = entry{src: src, mac: mac}
}

func (f *Fake) PreferredSource(iface nexthop6.IfaceID) (netip.Addr, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[iface]
	return e.src, ok
}

func (f *Fake) MAC(iface nexthop6.IfaceID) (nexthop6.LinkAddr, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[iface]
	return e.mac, ok
}

func (f *Fake) Exists(iface nexthop6.IfaceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[iface]
	return ok
}

// System is an Inventory backed by the host's actual network interfaces,
// used by cmd/nh6d in place of the out-of-scope dataplane's interface
// table. IfaceID is interpreted as an OS interface index.
type System struct{}

func (System) PreferredSource(iface nexthop6.IfaceID) (netip.Addr, bool) {
	ifi, err := net.InterfaceByIndex(int(iface))
	if err != nil {
		return netip.Addr{}, false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

func (System) MAC(iface nexthop6.IfaceID) (nexthop6.LinkAddr, bool) {
	ifi, err := net.InterfaceByIndex(int(iface))
	if err != nil || len(ifi.HardwareAddr) != 6 {
		return nexthop6.LinkAddr{}, false
	}
	var mac nexthop6.LinkAddr
	copy(mac[:], ifi.HardwareAddr)
	return mac, true
}

func (System) Exists(iface nexthop6.IfaceID) bool {
	_, err := net.InterfaceByIndex(int(iface))
	return err == nil
}
