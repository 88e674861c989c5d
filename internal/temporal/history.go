package temporal

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// timedEvent is one observation plus its environmental context as kept in
// the analyzer's history.
type timedEvent struct {
	obs behavior.Observation
	env behavior.Environment
}

// history is a fixed-capacity ring buffer of events. The oldest entry is
// overwritten when the buffer is full, so pruning costs nothing per push.
type history struct {
	events   []timedEvent
	capacity int
	head     int // next write position
	size     int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &history{
		events:   make([]timedEvent, capacity),
		capacity: capacity,
	}
}

func (h *history) add(e timedEvent) {
	h.events[h.head] = e
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// snapshot returns the buffered events oldest first.
func (h *history) snapshot() []timedEvent {
	out := make([]timedEvent, 0, h.size)
	start := (h.head - h.size + h.capacity) % h.capacity
	for i := 0; i < h.size; i++ {
		out = append(out, h.events[(start+i)%h.capacity])
	}
	return out
}

// since returns events with observation timestamps at or after the cutoff,
// oldest first.
func (h *history) since(cutoffUnix int64) []timedEvent {
	all := h.snapshot()
	for i, e := range all {
		if e.obs.TimestampUnix >= cutoffUnix {
			return all[i:]
		}
	}
	return nil
}

func (h *history) len() int {
	return h.size
}

func (h *history) clear() {
	for i := range h.events {
		h.events[i] = timedEvent{}
	}
	h.head = 0
	h.size = 0
}
