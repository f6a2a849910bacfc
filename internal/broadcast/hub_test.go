package broadcast

import (
	"log/slog"
	"testing"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

func TestHub_SubscribeReceivesPublishedMessage(t *testing.T) {
	h := New(slog.Default())
	defer h.Close()

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Publish(ports.MsgHeartbeat{TimestampUnix: 123})

	select {
	case msg := <-ch:
		hb, ok := msg.(ports.MsgHeartbeat)
		if !ok || hb.TimestampUnix != 123 {
			t.Fatalf("unexpected message: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := New(slog.Default())
	defer h.Close()

	ch, unsubscribe := h.Subscribe()
	unsubscribe()

	// Give the run loop a moment to process the unregister before
	// publishing, since unregister is asynchronous.
	time.Sleep(10 * time.Millisecond)
	h.Publish(ports.MsgHeartbeat{TimestampUnix: 1})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestHub_LateSubscriberDoesNotSeePriorMessages(t *testing.T) {
	h := New(slog.Default())
	defer h.Close()

	h.Publish(ports.MsgHeartbeat{TimestampUnix: 1})
	time.Sleep(10 * time.Millisecond)

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Publish(ports.MsgHeartbeat{TimestampUnix: 2})

	select {
	case msg := <-ch:
		hb := msg.(ports.MsgHeartbeat)
		if hb.TimestampUnix != 2 {
			t.Fatalf("expected only the post-subscribe message, got %#v", hb)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
