package events

import (
	"sync"
	"testing"
	"time"

	"github.com/erikprat61/supreme-memory/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
	block  chan struct{}
}

func (r *recorder) OnEvent(e models.Event) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Text
	}
	return out
}

func TestBus_DeliversInOrderPerSubscriber(t *testing.T) {
	bus := NewBus()
	a, b := &recorder{}, &recorder{}
	bus.Subscribe("a", a, 0)
	bus.Subscribe("b", b, 0)

	for _, text := range []string{"1", "2", "3", "4"} {
		bus.Emit(models.Event{Type: models.EventTranscriptionReceived, Text: text})
	}
	bus.Close()

	for name, r := range map[string]*recorder{"a": a, "b": b} {
		got := r.texts()
		if len(got) != 4 || got[0] != "1" || got[1] != "2" || got[2] != "3" || got[3] != "4" {
			t.Errorf("subscriber %s: expected [1 2 3 4], got %v", name, got)
		}
	}
}

func TestBus_StampsTimestamp(t *testing.T) {
	bus := NewBus()
	r := &recorder{}
	bus.Subscribe("r", r, 0)

	before := time.Now().UnixMilli()
	bus.Emit(models.Event{Type: models.EventSoundStart})
	bus.Emit(models.Event{Type: models.EventSoundEnd, Timestamp: 42})
	bus.Close()

	if r.events[0].Timestamp < before {
		t.Errorf("expected timestamp to be stamped, got %d", r.events[0].Timestamp)
	}
	if r.events[1].Timestamp != 42 {
		t.Errorf("expected explicit timestamp kept, got %d", r.events[1].Timestamp)
	}
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	slow := &recorder{block: make(chan struct{})}
	fast := &recorder{}
	bus.Subscribe("slow", slow, 1)
	bus.Subscribe("fast", fast, 16)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Emit(models.Event{Type: models.EventSoundStart})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}

	close(slow.block)
	bus.Close()

	if n := len(fast.texts()); n != 10 {
		t.Errorf("expected fast subscriber to receive 10 events, got %d", n)
	}
	if n := len(slow.texts()); n >= 10 {
		t.Errorf("expected slow subscriber to lose events, got %d", n)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	r := &recorder{}
	unsubscribe := bus.Subscribe("r", r, 0)

	bus.Emit(models.Event{Type: models.EventSoundStart, Text: "before"})
	unsubscribe()
	unsubscribe()
	bus.Emit(models.Event{Type: models.EventSoundStart, Text: "after"})
	bus.Close()

	got := r.texts()
	if len(got) != 1 || got[0] != "before" {
		t.Errorf("expected only the event before unsubscribe, got %v", got)
	}
}

func TestBus_EmitAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Emit(models.Event{Type: models.EventSoundStart})
	bus.Close()

	r := &recorder{}
	bus.Subscribe("late", r, 0)()
	if len(r.texts()) != 0 {
		t.Error("expected no delivery after close")
	}
}

func TestListenerFunc(t *testing.T) {
	var got models.EventType
	ListenerFunc(func(e models.Event) { got = e.Type }).OnEvent(models.Event{Type: models.EventSoundEnd})
	if got != models.EventSoundEnd {
		t.Errorf("expected ListenerFunc to forward the event")
	}
	Discard.Emit(models.Event{})
}
