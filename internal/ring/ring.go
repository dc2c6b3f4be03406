// Package ring implements the single-producer-per-worker,
// single-consumer handoff between datapath workers and the control
// thread, per spec §4.4.
//
// A buffered Go channel already gives the semantics the spec asks for: a
// bounded slot count, FIFO per sender, a non-blocking send that reports
// "full" instead of blocking, and no back-pressure path from consumer to
// producer beyond that bound. Reimplementing a hand-rolled lock-free ring
// on top of atomics would duplicate what the channel already guarantees
// without buying anything; the only supported handoff direction is the
// datapath-into-control-thread one the channel models directly, and
// drop-on-full load-shedding is a single non-blocking send.
package ring

import (
	"github.com/dpdk-grout/grout/internal/errs"
)

// HandlerID is a small dense index into the handler registry.
type HandlerID int

// Msg is an opaque message carrying a handler id and payload, as posted by
// post_to_stack.
type Msg struct {
	Handler HandlerID
	Payload interface{}
}

// Ring is the bounded MPSC channel carrying messages from datapath workers
// to the control thread.
type Ring struct {
	ch chan Msg
}

// New creates a ring with the given depth.
func New(depth int) *Ring {
	if depth <= 0 {
		depth = 1
	}
	return &Ring{ch: make(chan Msg, depth)}
}

// Post is post_to_stack: a non-blocking send. On a full ring it returns
// ErrResource ("AGAIN") and the caller must drop the packet — this is the
// system's intentional load-shedding boundary (spec §4.4).
func (r *Ring) Post(handler HandlerID, payload interface{}) error {
	select {
	case r.ch <- Msg{Handler: handler, Payload: payload}:
		return nil
	default:
		return errs.ErrResource
	}
}

// Recv blocks until a message is available or done is closed, returning
// ok=false in the latter case. Only the control thread calls Recv.
func (r *Ring) Recv(done <-chan struct{}) (Msg, bool) {
	select {
	case m := <-r.ch:
		return m, true
	case <-done:
		return Msg{}, false
	}
}

// Chan exposes the underlying channel so the control thread can select
// over it alongside its own timers, keeping every next-hop mutation on
// one goroutine (spec §5) instead of splitting ring consumption and
// timer handling across two.
func (r *Ring) Chan() <-chan Msg {
	return r.ch
}

// Registry resolves handler names to dense ids at startup, mirroring how
// the forwarding graph resolves a node's successor edges by name.
type Registry struct {
	names []string
	index map[string]HandlerID
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]HandlerID)}
}

// Register assigns the next dense id to name. Registering the same name
// twice panics: handler registration only happens once at startup.
func (r *Registry) Register(name string) HandlerID {
	if _, ok := r.index[name]; ok {
		panic("ring: handler " + name + " already registered")
	}
	id := HandlerID(len(r.names))
	r.names = append(r.names, name)
	r.index[name] = id
	return id
}

// Lookup resolves name to its id and true, or (0, false) if unregistered.
func (r *Registry) Lookup(name string) (HandlerID, bool) {
	id, ok := r.index[name]
	return id, ok
}

// Name returns the registered name for id, or "" if out of range.
func (r *Registry) Name(id HandlerID) string {
	if int(id) < 0 || int(id) >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// Well-known handler names, per spec §4.4. Handlers register at startup
// under a small dense id space (Registry.Register); these names are the
// registration keys, not the ids themselves — callers that post or match
// on a handler use the HandlerID a Registry hands back, not these
// strings directly.
const (
	HandlerNDPNSOutput = "ndp_ns_output"
	HandlerIP6Output   = "ip6_output"
	HandlerUnreachable = "unreachable"
	HandlerNDPInput    = "ndp_input"
)
