package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
)

// DefaultBuffer is the per-subscriber queue length used when Subscribe is given 0.
const DefaultBuffer = 256

// Listener receives events. OnEvent is called from a goroutine owned by the
// subscription, one event at a time, in emission order.
type Listener interface {
	OnEvent(event models.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(event models.Event)

// OnEvent calls f(event).
func (f ListenerFunc) OnEvent(event models.Event) { f(event) }

// Emitter is the producing side used by the recorder, pipeline and monitor.
// Emit must not block.
type Emitter interface {
	Emit(event models.Event)
}

type discard struct{}

func (discard) Emit(models.Event) {}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type subscription struct {
	name     string
	ch       chan models.Event
	listener Listener
	done     chan struct{}
}

// Bus fans events out to subscribers. Each subscriber has its own bounded queue
// and delivery goroutine; a slow subscriber loses events instead of blocking the
// emitter or other subscribers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	closed  bool
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[*subscription]struct{}),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("events"),
	}
}

// Subscribe registers l under name. The returned function unsubscribes and waits
// for queued events to be delivered.
func (b *Bus) Subscribe(name string, l Listener, buffer int) func() {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &subscription{
		name:     name,
		ch:       make(chan models.Event, buffer),
		listener: l,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		for e := range s.ch {
			s.listener.OnEvent(e)
		}
	}()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return func() { <-s.done }
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
			b.mu.Unlock()
			<-s.done
		})
	}
}

// Emit delivers event to every subscriber without blocking. A zero Timestamp is
// set to the current time in milliseconds.
func (b *Bus) Emit(event models.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- event:
		default:
			b.metrics.RecordEventDropped(s.name)
			b.logger.Warn().
				Str("subscriber", s.name).
				Str("eventType", string(event.Type)).
				Msg("Subscriber queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for every subscriber to drain its queue.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
		close(s.ch)
	}
	b.subs = map[*subscription]struct{}{}
	b.mu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}
