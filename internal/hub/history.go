package hub

import (
	"sync"

	"github.com/opaline-ai/spyglass/internal/event"
)

// History is a bounded in-memory ring of recent events backing the
// polled REST fallback. Nothing here is durable; when the process ends,
// so does the history.
type History struct {
	mu    sync.Mutex
	max   int
	items []*event.Event
}

// NewHistory returns a History bounded to max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 200
	}
	return &History{max: max, items: make([]*event.Event, 0, max)}
}

// Append retains ev, displacing the oldest entry when full.
func (r *History) Append(ev *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.max {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, ev)
}

// Recent returns up to limit most recent entries, oldest first.
// limit <= 0 returns everything retained.
func (r *History) Recent(limit int) []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*event.Event, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

// Len returns the number of retained entries.
func (r *History) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
