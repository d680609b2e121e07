package pipeline

import (
	"sync"

	"github.com/erikprat61/supreme-memory/internal/models"
)

// queue is a bounded FIFO of windows with a wake-up signal for the worker.
// pushFront ignores the bound so a throttled window is never lost.
type queue struct {
	mu       sync.Mutex
	items    []models.TranscriptionChunk
	capacity int
	signal   chan struct{}
}

func newQueue(capacity int) *queue {
	return &queue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// pushBack appends c and reports false when the queue is full.
func (q *queue) pushBack(c models.TranscriptionChunk) (int, bool) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		n := len(q.items)
		q.mu.Unlock()
		return n, false
	}
	q.items = append(q.items, c)
	n := len(q.items)
	q.mu.Unlock()
	q.notify()
	return n, true
}

func (q *queue) pushFront(c models.TranscriptionChunk) {
	q.mu.Lock()
	q.items = append(q.items, models.TranscriptionChunk{})
	copy(q.items[1:], q.items)
	q.items[0] = c
	q.mu.Unlock()
}

func (q *queue) pop() (models.TranscriptionChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.TranscriptionChunk{}, false
	}
	c := q.items[0]
	q.items[0] = models.TranscriptionChunk{}
	q.items = q.items[1:]
	return c, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
