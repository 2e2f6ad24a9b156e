package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublish_NoSubscribers(t *testing.T) {
	bus := NewBus(nil)
	if n := bus.Publish(Event{Kind: CaptureCompleted, MemoID: "1"}); n != 0 {
		t.Errorf("Publish() delivered to %d, want 0", n)
	}
}

func TestPublish_NilBus(t *testing.T) {
	var bus *Bus
	if n := bus.Publish(Event{Kind: MemoDeleted}); n != 0 {
		t.Errorf("Publish() on nil bus = %d, want 0", n)
	}
}

func TestPublish_Delivers(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)
	defer a.Close()
	defer b.Close()

	if n := bus.Publish(Event{Kind: CaptureCompleted, MemoID: "m1"}); n != 2 {
		t.Fatalf("Publish() delivered to %d, want 2", n)
	}

	for _, s := range []*Subscription{a, b} {
		select {
		case e := <-s.Events():
			if e.Kind != CaptureCompleted || e.MemoID != "m1" {
				t.Errorf("event = %+v", e)
			}
			if e.ID == "" || e.Time.IsZero() {
				t.Errorf("event id/time not filled: %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublish_DropsWhenFull(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe(1)
	defer s.Close()

	if n := bus.Publish(Event{Kind: TagsChanged}); n != 1 {
		t.Fatalf("first Publish() = %d, want 1", n)
	}
	if n := bus.Publish(Event{Kind: TagsChanged}); n != 0 {
		t.Fatalf("second Publish() = %d, want 0 (buffer full)", n)
	}
	if len(s.Events()) != 1 {
		t.Errorf("queued = %d, want 1", len(s.Events()))
	}
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe(0)
	if bus.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", bus.Subscribers())
	}

	s.Close()
	s.Close()

	if bus.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", bus.Subscribers())
	}
	if _, ok := <-s.Events(); ok {
		t.Error("channel still open after Close")
	}
	if n := bus.Publish(Event{Kind: MemoDeleted}); n != 0 {
		t.Errorf("Publish() after Close = %d, want 0", n)
	}
}

func TestPublish_ConcurrentWithClose(t *testing.T) {
	bus := NewBus(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		s := bus.Subscribe(2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(Event{Kind: CaptureStarted})
			}
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
