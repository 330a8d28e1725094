package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversToEverySubscriber(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	want := Event{Kind: TaskCreated, TaskID: "t1"}
	if err := hub.Publish(context.Background(), want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got != want {
				t.Errorf("%s received %+v, want %+v", name, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", name)
		}
	}
}

func TestHubCoalescesPendingEvents(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		hub.Publish(ctx, Event{Kind: TaskUpdated, TaskID: "t1"})
	}

	<-ch
	select {
	case e := <-ch:
		t.Fatalf("expected a single pending event, got another: %+v", e)
	default:
	}
}

func TestHubCancelClosesAndUnregisters(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	if hub.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", hub.Len())
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
	if hub.Len() != 0 {
		t.Fatalf("Len() = %d after cancel, want 0", hub.Len())
	}

	// publishing after cancel must not panic on the closed channel
	hub.Publish(context.Background(), Event{Kind: TaskDeleted})
}
