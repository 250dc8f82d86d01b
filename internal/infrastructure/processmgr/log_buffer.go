package processmgr

import (
	"sync"
	"time"
)

const logBufferSize = 500

// LogEntry is one captured output line.
type LogEntry struct {
	At   time.Time `json:"at"`
	Line string    `json:"line"`
}

// LogBuffer is a thread-safe ring of the most recent output lines of a
// window's players. Appends never allocate.
type LogBuffer struct {
	mu      sync.RWMutex
	entries [logBufferSize]LogEntry
	head    int // next write position
	size    int
	now     func() time.Time
}

// Append adds a line, overwriting the oldest one when full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := time.Now()
	if b.now != nil {
		at = b.now()
	}
	b.entries[b.head] = LogEntry{At: at, Line: line}
	b.head = (b.head + 1) % logBufferSize
	if b.size < logBufferSize {
		b.size++
	}
}

// Read returns up to lines entries, newest first. lines <= 0 returns all.
// The returned slice is owned by the caller.
func (b *LogBuffer) Read(lines int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	if lines <= 0 || lines > b.size {
		lines = b.size
	}

	out := make([]LogEntry, lines)
	newest := (b.head - 1 + logBufferSize) % logBufferSize
	for i := range out {
		out[i] = b.entries[(newest-i+logBufferSize)%logBufferSize]
	}
	return out
}

// Len returns the number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
