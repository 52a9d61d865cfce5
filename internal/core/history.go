package core

import "github.com/dkeye/Relay/internal/domain"

type historyEntry struct {
	event domain.Event
	frame Frame
}

// history is a fixed-capacity ring; the oldest entry is overwritten once full.
type history struct {
	items []historyEntry
	start int
	size  int
}

func newHistory(limit int) *history {
	return &history{items: make([]historyEntry, limit)}
}

func (h *history) append(e historyEntry) {
	limit := len(h.items)
	if h.size < limit {
		h.items[(h.start+h.size)%limit] = e
		h.size++
		return
	}
	h.items[h.start] = e
	h.start = (h.start + 1) % limit
}

func (h *history) each(fn func(historyEntry) bool) {
	for i := 0; i < h.size; i++ {
		if !fn(h.items[(h.start+i)%len(h.items)]) {
			return
		}
	}
}

func (h *history) events() []domain.Event {
	out := make([]domain.Event, 0, h.size)
	h.each(func(e historyEntry) bool {
		out = append(out, e.event)
		return true
	})
	return out
}

func (h *history) reset() {
	clear(h.items)
	h.start, h.size = 0, 0
}

func (h *history) len() int { return h.size }
