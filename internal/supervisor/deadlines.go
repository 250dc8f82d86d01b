package supervisor

import (
	"container/heap"
	"time"
)

// deadline is one pending timer of the event loop.
// index is required for heap.Fix and O(log n) removals.
type deadline struct {
	key   string
	when  time.Time
	index int
}

// deadlines is the loop's timer set: rotation per display, the watchdog
// sweep, the digit flush and icon timeouts. The loop arms a single timer for
// the earliest entry.
type deadlines struct {
	h       deadlineHeap
	entries map[string]*deadline
}

func newDeadlines() *deadlines {
	return &deadlines{entries: make(map[string]*deadline)}
}

// set schedules key at when, replacing an earlier schedule of the same key.
func (d *deadlines) set(key string, when time.Time) {
	if old, ok := d.entries[key]; ok {
		old.when = when
		heap.Fix(&d.h, old.index)
		return
	}
	e := &deadline{key: key, when: when}
	d.entries[key] = e
	heap.Push(&d.h, e)
}

// next returns the soonest deadline without removing it.
func (d *deadlines) next() (key string, when time.Time, ok bool) {
	if len(d.h) == 0 {
		return "", time.Time{}, false
	}
	e := d.h[0]
	return e.key, e.when, true
}

// popDue removes and returns every key due at now, earliest first.
func (d *deadlines) popDue(now time.Time) []string {
	var keys []string
	for len(d.h) > 0 && !d.h[0].when.After(now) {
		e := heap.Pop(&d.h).(*deadline)
		delete(d.entries, e.key)
		keys = append(keys, e.key)
	}
	return keys
}

// remove cancels key if still pending.
func (d *deadlines) remove(key string) {
	e, ok := d.entries[key]
	if !ok {
		return
	}
	heap.Remove(&d.h, e.index)
	delete(d.entries, key)
}

func (d *deadlines) has(key string) bool {
	_, ok := d.entries[key]
	return ok
}

// deadlineHeap is a min-heap ordered by when.
type deadlineHeap []*deadline

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	return h[i].when.Before(h[j].when)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*deadline)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	e.index = -1
	*h = old[:n-1]
	return e
}
