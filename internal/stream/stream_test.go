package stream

import (
	"context"
	"testing"
	"time"

	"rosterd.org/internal/audit"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(audit.Entry{ID: "e1", Action: "login"})

	for name, ch := range map[string]<-chan audit.Entry{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.ID != "e1" {
				t.Fatalf("subscriber %s received %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive entry", name)
		}
	}
}

func TestSubscriberRemovedOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	cancel()

	// Wait for the channel to close after cancellation.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				// Publishing after removal must not panic.
				s.Publish(audit.Entry{ID: "e2", Action: "logout"})
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context end")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		// More entries than the subscriber buffer holds.
		for i := 0; i < 100; i++ {
			s.Publish(audit.Entry{Action: "login"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
