package dispatcher

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...any) {}
func (nopLogger) Info(msg string, keysAndValues ...any)  {}
func (nopLogger) Error(msg string, keysAndValues ...any) {}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(nopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDispatch_RoutesToHandler(t *testing.T) {
	d := newTestDispatcher(t)

	var got Event
	d.Register("parcel_update", func(e Event) (any, error) {
		got = e
		return "ok", nil
	})

	data := json.RawMessage(`{"tracking_id":"RD001"}`)
	result, err := d.Dispatch(Event{Type: "parcel_update", Data: data})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result 'ok', got %v", result)
	}
	if string(got.Data) != string(data) {
		t.Errorf("handler received wrong data: %s", got.Data)
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Type: "nonsense"})
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestHasHandler(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register("heartbeat", func(Event) (any, error) { return nil, nil })

	if !d.HasHandler("heartbeat") {
		t.Error("expected handler for 'heartbeat'")
	}
	if d.HasHandler("new_parcel") {
		t.Error("did not expect handler for 'new_parcel'")
	}
}

func TestBuffered_ProcessesAsync(t *testing.T) {
	d := newTestDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Register("new_parcel", func(e Event) (any, error) {
		wg.Done()
		return nil, nil
	}, Buffered(4))

	result, err := d.Dispatch(Event{Type: "new_parcel"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered handler never ran")
	}
}

func TestBuffered_DropsWhenFull(t *testing.T) {
	d := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register("parcel_update", func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1))

	// First fills the worker, second fills the buffer. One of the next
	// dispatches must be rejected.
	var dropErr error
	for i := 0; i < 4; i++ {
		if _, err := d.Dispatch(Event{Type: "parcel_update"}); err != nil {
			dropErr = err
		}
	}
	close(release)

	if dropErr == nil {
		t.Error("expected at least one drop with a full queue")
	}
}

func TestBuffered_BlockingNeverDrops(t *testing.T) {
	d := newTestDispatcher(t)

	var processed atomic.Int64
	d.Register("parcel_update", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	const n = 16
	for i := 0; i < n; i++ {
		if _, err := d.Dispatch(Event{Type: "parcel_update"}); err != nil {
			t.Fatalf("blocking dispatch failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for processed.Load() < n {
		select {
		case <-deadline:
			t.Fatalf("processed %d of %d events", processed.Load(), n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLogged_PassesThrough(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register("heartbeat", func(e Event) (any, error) {
		return "pong", nil
	}, Logged())

	result, err := d.Dispatch(Event{Type: "heartbeat", ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result != "pong" {
		t.Errorf("expected 'pong', got %v", result)
	}
}
