// Package routetable models the longest-prefix-match route table as an
// out-of-scope collaborator, referenced only by its contract (spec §1).
//
// The real table lives in the forwarding graph's control plane and is
// read concurrently by datapath workers; this package exposes just the
// two operations the unreachable handler needs and a small in-memory
// fake for tests, mirroring how the teacher's netstack core depends on
// stack.AddressableEndpoint/NetworkEndpoint through narrow interfaces
// rather than the concrete route table type.
package routetable

import (
	"net/netip"
	"sync"

	"github.com/dpdk-grout/grout/internal/errs"
	"github.com/dpdk-grout/grout/internal/nexthop6"
)

// Table is the contract the unreachable handler needs: resolve a
// destination to the next-hop a route currently points at, and install a
// host (/128) route pointing at a resolved next-hop.
type Table interface {
	// Lookup performs the longest-prefix match for dst within (vrf, iface)
	// and returns the next-hop it resolves to, or ok=false if no route
	// covers dst.
	Lookup(vrf nexthop6.VRFID, iface nexthop6.IfaceID, dst netip.Addr) (nh *nexthop6.Nexthop, ok bool)

	// InstallHost installs a /128 route for dst within vrf pointing at nh,
	// bumping nh's reference count. Installing over an existing host route
	// for the same key replaces it without changing the refcount twice.
	InstallHost(vrf nexthop6.VRFID, dst netip.Addr, nh *nexthop6.Nexthop) error

	// RemoveHost removes the host route for dst within (vrf, iface),
	// decref'ing the next-hop it pointed at. iface == nexthop6.UndefIface
	// matches any interface in vrf. Returns ErrNotFound if no such route
	// exists.
	RemoveHost(vrf nexthop6.VRFID, iface nexthop6.IfaceID, dst netip.Addr) error
}

// Fake is an in-memory Table for tests: a flat map keyed by (vrf, iface,
// dst) standing in for the real longest-prefix-match trie. Prefix
// matching is not modeled — callers seed exact routes, which is
// sufficient to exercise the unreachable handler's decision logic.
type Fake struct {
	mu     sync.Mutex
	routes map[fakeKey]*nexthop6.Nexthop
	pool   *nexthop6.Pool
}

type fakeKey struct {
	vrf   nexthop6.VRFID
	iface nexthop6.IfaceID
	dst   netip.Addr
}

// NewFake constructs an empty Fake. pool is used to incref a next-hop on
// InstallHost; it may be nil if the test never asserts refcounts.
func NewFake(pool *nexthop6.Pool) *Fake {
	return &Fake{routes: make(map[fakeKey]*nexthop6.Nexthop), pool: pool}
}

// Seed installs a route directly, bypassing InstallHost's refcount bump.
// Used to set up the "connected route" parent next-hop a test scenario
// starts from.
func (f *Fake) Seed(vrf nexthop6.VRFID, iface nexthop6.IfaceID, dst netip.Addr, nh *nexthop6.Nexthop) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[fakeKey{vrf, iface, dst}] = nh
}

func (f *Fake) Lookup(vrf nexthop6.VRFID, iface nexthop6.IfaceID, dst netip.Addr) (*nexthop6.Nexthop, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nh, ok := f.routes[fakeKey{vrf, iface, dst}]
	return nh, ok
}

func (f *Fake) InstallHost(vrf nexthop6.VRFID, dst netip.Addr, nh *nexthop6.Nexthop) error {
	f.mu.Lock()
	old, replacing := f.routes[fakeKey{vrf, nh.OutIface, dst}]
	f.routes[fakeKey{vrf, nh.OutIface, dst}] = nh
	f.mu.Unlock()

	if (!replacing || old != nh) && f.pool != nil {
		f.pool.Incref(nh)
	}
	return nil
}

func (f *Fake) RemoveHost(vrf nexthop6.VRFID, iface nexthop6.IfaceID, dst netip.Addr) error {
	f.mu.Lock()
	var key fakeKey
	var nh *nexthop6.Nexthop
	if iface != nexthop6.UndefIface {
		key = fakeKey{vrf, iface, dst}
		nh = f.routes[key]
	} else {
		for k, candidate := range f.routes {
			if k.vrf == vrf && k.dst == dst {
				key, nh = k, candidate
				break
			}
		}
	}
	if nh == nil {
		f.mu.Unlock()
		return errs.ErrNotFound
	}
	delete(f.routes, key)
	f.mu.Unlock()

	if f.pool != nil {
		return f.pool.Decref(nh)
	}
	return nil
}
