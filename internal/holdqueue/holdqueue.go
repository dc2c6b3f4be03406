// Package holdqueue implements the bounded per-next-hop packet hold queue
// described in spec §4.3: a singly-linked FIFO, enqueue at tail, drain at
// head, dropping the newest packet on overflow.
package holdqueue

// Freeable is implemented by anything that can be queued and later either
// flushed or discarded.
type Freeable interface {
	// Free releases any resources the held item holds, e.g. returning an
	// mbuf to its pool. Called when the item is dropped on overflow or
	// discarded on a FAILED transition.
	Free()
}

type node[T Freeable] struct {
	val  T
	next *node[T]
}

// Queue is a bounded FIFO of packets awaiting resolution. The zero value
// is an empty queue with no bound; use New for a bounded one.
type Queue[T Freeable] struct {
	head, tail *node[T]
	count      int
	limit      int
}

// New returns an empty queue bounded at limit items. A limit of zero or
// less leaves the queue unbounded.
func New[T Freeable](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Len returns the number of packets currently queued.
func (q *Queue[T]) Len() int {
	return q.count
}

// Enqueue appends v at the tail. If the queue is already at its bound, v
// itself is dropped (freed) and ok is false — this implements the
// "drop the newest incoming packet" overflow policy from spec §4.3, as
// opposed to evicting the oldest entry.
func (q *Queue[T]) Enqueue(v T) (ok bool) {
	if q.limit > 0 && q.count >= q.limit {
		v.Free()
		return false
	}
	n := &node[T]{val: v}
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.count++
	return true
}

// Dequeue removes and returns the head of the queue. ok is false if the
// queue is empty.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	if q.head == nil {
		return v, false
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.count--
	return n.val, true
}

// Drain removes every queued packet in FIFO order and calls fn on each. fn
// is responsible for the packet's fate (re-post, free, etc); Drain itself
// never calls Free.
func (q *Queue[T]) Drain(fn func(T)) {
	for {
		v, ok := q.Dequeue()
		if !ok {
			return
		}
		fn(v)
	}
}

// DiscardAll dequeues and frees every packet, used on a FAILED transition.
func (q *Queue[T]) DiscardAll() {
	q.Drain(func(v T) { v.Free() })
}
