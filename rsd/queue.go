package rsd

import (
	"slices"

	"github.com/sarchlab/kanataconv/trace"
)

// eventQueue buffers events by the cycle they belong to until that cycle
// has settled. Pending cycles are kept in a sorted slice; each owns a
// bucket of events in arrival order.
type eventQueue struct {
	cycles  []int64
	buckets map[int64][]trace.Event
	size    int
}

func newEventQueue() *eventQueue {
	return &eventQueue{buckets: make(map[int64][]trace.Event)}
}

// push appends ev to the bucket of cycle.
func (q *eventQueue) push(cycle int64, ev trace.Event) {
	bucket, ok := q.buckets[cycle]
	if !ok {
		i, _ := slices.BinarySearch(q.cycles, cycle)
		q.cycles = slices.Insert(q.cycles, i, cycle)
	}
	q.buckets[cycle] = append(bucket, ev)
	q.size++
}

// drainBefore hands every bucket older than limit to deliver, oldest first,
// and forgets it.
func (q *eventQueue) drainBefore(limit int64, deliver func(cycle int64, events []trace.Event)) {
	n := 0
	for n < len(q.cycles) && q.cycles[n] < limit {
		cycle := q.cycles[n]
		events := q.buckets[cycle]
		delete(q.buckets, cycle)
		q.size -= len(events)
		deliver(cycle, events)
		n++
	}
	q.cycles = slices.Delete(q.cycles, 0, n)
}

// drainAll hands every bucket to deliver regardless of age.
func (q *eventQueue) drainAll(deliver func(cycle int64, events []trace.Event)) {
	for len(q.cycles) > 0 {
		q.drainBefore(q.cycles[len(q.cycles)-1]+1, deliver)
	}
}

// purge drops every pending event of gid and reports how many were dropped.
func (q *eventQueue) purge(gid trace.GID) int {
	dropped := 0
	kept := q.cycles[:0]
	for _, cycle := range q.cycles {
		bucket := q.buckets[cycle]
		filtered := bucket[:0]
		for _, ev := range bucket {
			if ev.GID == gid {
				dropped++
				continue
			}
			filtered = append(filtered, ev)
		}

		if len(filtered) == 0 {
			delete(q.buckets, cycle)
			continue
		}
		q.buckets[cycle] = filtered
		kept = append(kept, cycle)
	}
	q.cycles = kept
	q.size -= dropped
	return dropped
}

// len returns the number of pending events.
func (q *eventQueue) len() int {
	return q.size
}
