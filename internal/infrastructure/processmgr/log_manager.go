package processmgr

import "sync"

// LogManager hands out one LogBuffer per window. Buffers outlive individual
// players so the output of a crashed player stays readable after a restart.
type LogManager struct {
	mu   sync.RWMutex
	bufs map[int64]*LogBuffer // window id -> buffer
}

func NewLogManager() *LogManager {
	return &LogManager{bufs: make(map[int64]*LogBuffer)}
}

// Get returns the buffer for a window, creating it on first use.
func (lm *LogManager) Get(id int64) *LogBuffer {
	lm.mu.RLock()
	buf, ok := lm.bufs[id]
	lm.mu.RUnlock()
	if ok {
		return buf
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if buf, ok := lm.bufs[id]; ok {
		return buf
	}
	buf = new(LogBuffer)
	lm.bufs[id] = buf
	return buf
}

// Lookup returns the buffer for a window without creating one.
func (lm *LogManager) Lookup(id int64) (*LogBuffer, bool) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	buf, ok := lm.bufs[id]
	return buf, ok
}

// Drop forgets a window's buffer, e.g. after a configuration reload.
func (lm *LogManager) Drop(id int64) {
	lm.mu.Lock()
	delete(lm.bufs, id)
	lm.mu.Unlock()
}
