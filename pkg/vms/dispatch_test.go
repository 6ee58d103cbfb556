package vms

import (
	"testing"
	"time"

	"github.com/vehiclemap/vms/pkg/logging"
)

func newTestDispatcher(t *testing.T) (*dispatcher, *listenerSlot) {
	t.Helper()

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	slot := &listenerSlot{}
	d := newDispatcher(slot, logger)
	t.Cleanup(d.close)
	return d, slot
}

func TestDispatcher_FIFO(t *testing.T) {
	d, slot := newTestDispatcher(t)

	received := make(chan string, 10)
	if err := slot.set(func(msg Message) error {
		received <- string(msg.Payload)
		return nil
	}); err != nil {
		t.Fatalf("set listener failed: %v", err)
	}

	for _, p := range []string{"a", "b", "c", "d"} {
		d.enqueue(Message{Payload: []byte(p)})
	}

	for _, want := range []string{"a", "b", "c", "d"} {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDispatcher_DropsWithoutListener(t *testing.T) {
	d, slot := newTestDispatcher(t)

	// No listener set: messages are dropped, nothing panics, the worker
	// stays alive.
	d.enqueue(Message{Payload: []byte("dropped")})

	received := make(chan string, 1)
	if err := slot.set(func(msg Message) error {
		received <- string(msg.Payload)
		return nil
	}); err != nil {
		t.Fatalf("set listener failed: %v", err)
	}

	d.enqueue(Message{Payload: []byte("kept")})
	select {
	case got := <-received:
		if got != "kept" {
			t.Fatalf("got %q, want %q", got, "kept")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery after listener set")
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.close()
	d.close()

	// Enqueue after close must not block or panic.
	done := make(chan struct{})
	go func() {
		d.enqueue(Message{Payload: []byte("late")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue after close blocked")
	}
}

func TestDispatcher_CloseWaitsForInFlight(t *testing.T) {
	d, slot := newTestDispatcher(t)

	entered := make(chan struct{})
	finished := make(chan struct{})
	if err := slot.set(func(msg Message) error {
		close(entered)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	}); err != nil {
		t.Fatalf("set listener failed: %v", err)
	}

	d.enqueue(Message{Payload: []byte("slow")})
	<-entered
	d.close()

	select {
	case <-finished:
	default:
		t.Error("close returned before the in-flight delivery finished")
	}
}
