// Package ctrlthread serializes work to the single control-thread
// goroutine that spec §5 requires all next-hop mutation to happen on:
// the timer loop, the datapath ring consumer, and the API surface (spec
// §7's "event loop: timer + ring consumer + API request queue") all
// route through the same Executor instead of mutating pool state from
// whichever goroutine happened to receive a request.
package ctrlthread

// Executor queues closures for a single consumer goroutine to run.
type Executor struct {
	queue chan func()
}

// New constructs an Executor with the given queue depth.
func New(depth int) *Executor {
	if depth <= 0 {
		depth = 1
	}
	return &Executor{queue: make(chan func(), depth)}
}

// Run submits fn to the control thread and blocks until it has run.
// Callers outside the control thread (API handlers) use this for a
// synchronous request/response round trip.
func (e *Executor) Run(fn func()) {
	done := make(chan struct{})
	e.queue <- func() {
		fn()
		close(done)
	}
	<-done
}

// Chan exposes the queue so the control thread's select loop can drain
// it alongside the ring and its timers.
func (e *Executor) Chan() <-chan func() {
	return e.queue
}
