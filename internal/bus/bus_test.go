package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"ektifabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	msg := domain.InboundMessage{Channel: "telegram", ChatID: "1", SenderID: "2", Text: "hi"}
	b.Publish(msg)

	select {
	case got := <-b.Subscribe():
		if got.Text != "hi" || got.Channel != "telegram" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message not received")
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	for _, text := range []string{"a", "b", "c"} {
		b.Publish(domain.InboundMessage{Text: text})
	}

	inbound := b.Subscribe()
	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-inbound:
			if got.Text != want {
				t.Errorf("got %q, want %q", got.Text, want)
			}
		case <-time.After(time.Second):
			t.Fatal("message not received")
		}
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic.
	b.Publish(domain.InboundMessage{Text: "late"})

	if _, ok := <-b.Subscribe(); ok {
		t.Error("closed bus should deliver nothing")
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}

func TestSubscribeClosedOnClose(t *testing.T) {
	b := New(10, testLogger())
	inbound := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-inbound:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
