package nexthop6

import (
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/dpdk-grout/grout/internal/errs"
)

// FreeFunc is the collaborator hook run by Decref when a next-hop's
// reference count reaches zero. It must drop every route still pointing
// at nh before returning; the pool clears the slot once it returns (spec
// §3, §4.1).
type FreeFunc func(nh *Nexthop) error

// Pool is a fixed-capacity arena of next-hop slots plus an index keyed by
// (vrf, iface, addr), per spec §3/§4.1.
//
// Slot indices are stable for a next-hop's lifetime, so a datapath reader
// that has taken a *Nexthop pointer may keep using it without holding any
// lock: only the control thread ever mutates a live slot, and a slot is
// only reclaimed after the route table (the sole route to decref-to-zero)
// has dropped its last reference.
type Pool struct {
	cfg Config
	log *zap.Logger

	free FreeFunc

	mu      sync.RWMutex
	slots   []*Nexthop
	freeIdx []int
	index   map[Key]*Nexthop
}

// NewPool constructs a pool with the given capacity-bearing config. free
// is the collaborator invoked on reclamation; it may be nil in tests that
// never decref to zero.
func NewPool(cfg Config, free FreeFunc) (*Pool, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:   cfg,
		log:   cfg.logger(),
		free:  free,
		slots: make([]*Nexthop, cfg.NumNexthops),
		index: make(map[Key]*Nexthop, cfg.NumNexthops),
	}
	p.freeIdx = make([]int, cfg.NumNexthops)
	for i := range p.freeIdx {
		p.freeIdx[i] = cfg.NumNexthops - 1 - i
	}
	return p, nil
}

// New allocates a next-hop for (vrf, iface, addr). It fails with
// ErrOverflow if the arena is full and ErrExists if the tuple is already
// present. Initial flags are empty, refcount 0, counters 0, hold queue
// empty.
func (p *Pool) New(vrf VRFID, iface IfaceID, addr netip.Addr) (*Nexthop, error) {
	key := Key{VRF: vrf, Iface: iface, Addr: addr}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[key]; ok {
		return nil, errs.ErrExists
	}
	if len(p.freeIdx) == 0 {
		return nil, errs.ErrOverflow
	}

	slot := p.freeIdx[len(p.freeIdx)-1]
	p.freeIdx = p.freeIdx[:len(p.freeIdx)-1]

	return p.insert(key, slot)
}

// insert finalizes slot bookkeeping for a freshly allocated next-hop at
// key/slot. Split out of New so the lock-holding path above stays small.
func (p *Pool) insert(key Key, slot int) (*Nexthop, error) {
	nh := &Nexthop{
		Key:      key,
		OutIface: key.Iface,
		slot:     slot,
		held:     newHeldQueue(p.cfg.MaxHeldPackets),
	}
	p.slots[slot] = nh
	p.index[key] = nh

	p.log.Debug("nexthop created",
		zap.Uint32("vrf", uint32(key.VRF)),
		zap.Uint32("iface", uint32(key.Iface)),
		zap.Stringer("addr", key.Addr),
	)
	return nh, nil
}

// Lookup matches by exact tuple. iface == UndefIface matches any
// interface within the vrf, as used by administrative deletion.
func (p *Pool) Lookup(vrf VRFID, iface IfaceID, addr netip.Addr) *Nexthop {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if iface != UndefIface {
		return p.index[Key{VRF: vrf, Iface: iface, Addr: addr}]
	}
	for k, nh := range p.index {
		if k.VRF == vrf && k.Addr == addr {
			return nh
		}
	}
	return nil
}

// Incref bumps nh's reference count. Callers are the route table when a
// new route starts pointing at nh.
func (p *Pool) Incref(nh *Nexthop) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nh.RefCount++
}

// Decref drops nh's reference count. When it reaches zero, the
// collaborator FreeFunc runs (which must drop all referencing routes
// before returning) and the slot is cleared.
func (p *Pool) Decref(nh *Nexthop) error {
	p.mu.Lock()
	if nh.RefCount == 0 {
		p.mu.Unlock()
		return errs.ErrBusy
	}
	nh.RefCount--
	remaining := nh.RefCount
	p.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	if p.free != nil {
		if err := p.free(nh); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.index, nh.Key)
	p.slots[nh.slot] = nil
	p.freeIdx = append(p.freeIdx, nh.slot)
	nh.held.DiscardAll()
	return nil
}

// Reclaimable reports whether nh has ref_count == 0 and carries none of
// the sticky roles {LOCAL, LINK, GATEWAY}, per the invariant in spec §3.
func Reclaimable(nh *Nexthop) bool {
	return nh.RefCount == 0 && !nh.Flags.Any(Local|Link|Gateway)
}

// Iterate visits every live next-hop exactly once. The visitor must not
// mutate the pool.
func (p *Pool) Iterate(visitor func(*Nexthop)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, nh := range p.slots {
		if nh != nil {
			visitor(nh)
		}
	}
}

// Get returns the next-hop at a stable slot index, or nil if the slot is
// not currently live. Used by datapath-style callers that cached an index.
func (p *Pool) Get(slot int) *Nexthop {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if slot < 0 || slot >= len(p.slots) {
		return nil
	}
	return p.slots[slot]
}

// Slot returns nh's stable arena index.
func (nh *Nexthop) Slot() int {
	return nh.slot
}
