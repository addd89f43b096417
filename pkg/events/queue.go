package events

// timeEpsilon absorbs float drift accumulated by repeated tick addition.
const timeEpsilon = 1e-9

// Queue holds future events keyed on (event_time, event_id). Pushing an event
// whose id is already queued replaces the previous entry: condition checks
// re-insert under the same id. Replaced entries are discarded lazily on pop.
type Queue struct {
	pq      *PriorityQueue
	current map[string]*Event
}

// NewQueue creates an empty future-event queue.
func NewQueue() *Queue {
	return &Queue{
		pq:      NewPriorityQueue(),
		current: make(map[string]*Event),
	}
}

// Push schedules an event. The event must have a resolved time.
func (q *Queue) Push(e *Event) error {
	if e.Time == nil {
		return ErrUnresolvedTime
	}
	q.current[e.ID] = e
	return q.pq.Push(e)
}

// PopDue removes and returns every event with event_time <= t, in heap order.
// Later events are left intact.
func (q *Queue) PopDue(t float64) []*Event {
	var due []*Event
	for {
		head := q.pq.Peek()
		if head == nil {
			break
		}
		// Drop entries superseded by a same-id re-insert.
		if q.current[head.ID] != head {
			q.pq.Pop()
			continue
		}
		if *head.Time > t+timeEpsilon {
			break
		}
		q.pq.Pop()
		delete(q.current, head.ID)
		due = append(due, head)
	}
	return due
}

// Contains reports whether an event with the given id is queued.
func (q *Queue) Contains(id string) bool {
	_, ok := q.current[id]
	return ok
}

// Len returns the number of live queued events.
func (q *Queue) Len() int {
	return len(q.current)
}

// Snapshot returns the live queued events in pop order without draining.
func (q *Queue) Snapshot() []*Event {
	var out []*Event
	for _, e := range q.pq.Snapshot() {
		if q.current[e.ID] == e {
			out = append(out, e)
		}
	}
	return out
}
