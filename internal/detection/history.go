package detection

import "sync"

// History is a fixed-capacity, newest-first ring of recent detection
// results. Once at capacity the oldest entry is evicted on each insert, so
// length never exceeds capacity.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []Result
}

// NewHistory creates a History holding at most capacity results.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Push inserts r as the newest entry, evicting the oldest when full.
func (h *History) Push(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]Result{r}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// Items returns a newest-first copy of the entries.
func (h *History) Items() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Result, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
