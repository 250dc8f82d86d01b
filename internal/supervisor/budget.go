package supervisor

import (
	"errors"
	"sort"
	"sync"
)

// ErrResourceExhausted is reported for a window that could not get a
// decoder slot. The window stays Idle until a slot frees up.
var ErrResourceExhausted = errors.New("decoder budget exhausted")

// budget bounds the number of live players. Slots are owned by window ids:
// a worker acquires one right before starting a player and releases it right
// after the player is gone, so the count never exceeds the limit even while
// windows swap players.
type budget struct {
	mu         sync.Mutex
	limit      int
	acquiredBy map[int64]struct{}
}

func newBudget(limit int) *budget {
	return &budget{limit: limit, acquiredBy: make(map[int64]struct{})}
}

// tryAcquire takes a slot for id without blocking. Acquiring twice for the
// same id is a protocol violation.
func (b *budget) tryAcquire(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, holds := b.acquiredBy[id]; holds {
		panic("budget: id already holds a slot")
	}
	if len(b.acquiredBy) >= b.limit {
		return false
	}
	b.acquiredBy[id] = struct{}{}
	return true
}

// release frees the slot of id, if it holds one.
func (b *budget) release(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.acquiredBy, id)
}

func (b *budget) holds(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.acquiredBy[id]
	return ok
}

// setLimit changes the capacity. Slots above a lowered limit stay owned
// until released.
func (b *budget) setLimit(n int) {
	if n < 0 {
		n = 0
	}
	b.mu.Lock()
	b.limit = n
	b.mu.Unlock()
}

func (b *budget) inUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acquiredBy)
}

func (b *budget) capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// owners returns the ids holding a slot, ascending.
func (b *budget) owners() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int64, 0, len(b.acquiredBy))
	for id := range b.acquiredBy {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
