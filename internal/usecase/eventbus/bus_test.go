package eventbus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telehaunt/internal/domain"
)

func newTestBus(opts ...Option) *Bus {
	return New(slog.Default(), opts...)
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventTaskSuperseded, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventTaskSuperseded {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventTaskSuperseded))
	bus.Publish(context.Background(), newEvent(domain.EventRevealCompleted))
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventTransitionStarted))
	bus.Publish(context.Background(), newEvent(domain.EventRevealSkipped))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestDeliveryOrderPerSubscriber(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var keys []string
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		keys = append(keys, e.Key)
		mu.Unlock()
	})

	want := []string{"a", "b", "c", "d", "e"}
	for _, k := range want {
		bus.Publish(context.Background(), domain.Event{Type: domain.EventTaskCancelled, Key: k})
	}
	bus.Close()

	if strings.Join(keys, "") != strings.Join(want, "") {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventTaskSuperseded, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	unsub()
	unsub() // idempotent
	bus.Publish(context.Background(), newEvent(domain.EventTaskSuperseded))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery after unsub, got %d", got.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus(WithBuffer(128))

	var got atomic.Int32
	bus.Subscribe(domain.EventTaskSuperseded, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventTaskSuperseded))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestFullQueueDrops(t *testing.T) {
	bus := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), WithBuffer(1))

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	bus.Publish(context.Background(), newEvent(domain.EventRevealCompleted))
	<-started // first event is in the handler, queue is empty again
	bus.Publish(context.Background(), newEvent(domain.EventRevealCompleted))
	bus.Publish(context.Background(), newEvent(domain.EventRevealCompleted))

	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", bus.Dropped())
	}
	close(release)
	bus.Close()
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	// First subscriber panics
	bus.Subscribe(domain.EventTransitionFailed, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	// Second subscriber should still fire
	bus.Subscribe(domain.EventTransitionFailed, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventTransitionFailed))
	bus.Publish(context.Background(), newEvent(domain.EventTransitionFailed))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventTaskCancelled, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventTaskCancelled))
	bus.Close() // should block until the handler finishes
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	// After close, publishes and subscriptions are no-ops
	bus.Publish(context.Background(), newEvent(domain.EventTaskCancelled))
	unsub := bus.SubscribeAll(func(_ context.Context, _ domain.Event) { got.Add(1) })
	unsub()
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	bus := newTestBus()
	bus.SubscribeAll(LogHandler(logger))
	domain.PublishEvent(context.Background(), bus, domain.EventTaskSuperseded, "page:500",
		map[string]string{"superseded_by": "01J"})
	bus.Close()

	out := buf.String()
	for _, want := range []string{"lifecycle event", "event=task.superseded", "key=page:500", "superseded_by"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output, got %s", want, out)
		}
	}
}
