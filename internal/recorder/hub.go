package recorder

import (
	"sync"

	"webtestflow/recorder/internal/models"
)

// Hub fans recorded steps out to live subscribers. Slow subscribers miss steps rather
// than stall the coordinator.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan models.Step
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan models.Step)}
}

// Subscribe returns a step feed and the function that ends it.
func (h *Hub) Subscribe(buffer int) (<-chan models.Step, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan models.Step, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(step models.Step) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- step:
		default:
		}
	}
}
