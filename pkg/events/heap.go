package events

import (
	"container/heap"
	"sort"
)

// PriorityQueue is a stable min-heap of events keyed on
// (event_time, event_id, insertion order). Push and Pop are O(log n),
// Peek is O(1). Snapshot iterates in order without draining the heap.
type PriorityQueue struct {
	h   eventHeap
	seq uint64
}

// NewPriorityQueue creates an empty priority queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Push inserts an event. The event must have a resolved time.
func (pq *PriorityQueue) Push(e *Event) error {
	if e.Time == nil {
		return ErrUnresolvedTime
	}
	pq.seq++
	heap.Push(&pq.h, &queued{ev: e, seq: pq.seq})
	return nil
}

// Pop removes and returns the earliest event, nil when empty.
func (pq *PriorityQueue) Pop() *Event {
	if len(pq.h) == 0 {
		return nil
	}
	return heap.Pop(&pq.h).(*queued).ev
}

// Peek returns the earliest event without removing it, nil when empty.
func (pq *PriorityQueue) Peek() *Event {
	if len(pq.h) == 0 {
		return nil
	}
	return pq.h[0].ev
}

// Len returns the number of queued events.
func (pq *PriorityQueue) Len() int {
	return len(pq.h)
}

// Snapshot returns the queued events in pop order without mutating the heap.
func (pq *PriorityQueue) Snapshot() []*Event {
	items := make([]*queued, len(pq.h))
	copy(items, pq.h)
	sort.Slice(items, func(i, j int) bool { return items[i].less(items[j]) })
	out := make([]*Event, len(items))
	for i, it := range items {
		out[i] = it.ev
	}
	return out
}

type queued struct {
	ev  *Event
	seq uint64
}

func (q *queued) less(other *queued) bool {
	ti, tj := *q.ev.Time, *other.ev.Time
	if ti != tj {
		return ti < tj
	}
	if q.ev.ID != other.ev.ID {
		return q.ev.ID < other.ev.ID
	}
	return q.seq < other.seq
}

type eventHeap []*queued

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*queued)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
