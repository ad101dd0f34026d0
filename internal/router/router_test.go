package router

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"ektifabot/internal/domain"
	"ektifabot/internal/intent"
)

type fakeFetcher struct {
	result domain.EnrichmentResult
	delay  time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context) domain.EnrichmentResult {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.EnrichmentResult{OK: false, ErrorDetail: ctx.Err().Error()}
		}
	}
	return f.result
}

type fakeCompleter struct {
	body string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, userText, systemPrompt string) (domain.CompletionResult, error) {
	if f.err != nil {
		return domain.CompletionResult{}, f.err
	}
	return domain.CompletionResult{Body: f.body}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []domain.TranscriptRecord
	err     error
}

func (f *fakeStore) Append(ctx context.Context, rec domain.TranscriptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

type sentUnit struct {
	kind    domain.UnitKind
	payload string
}

type fakeTransport struct {
	mu      sync.Mutex
	name    string
	sent    []sentUnit
	sendErr error
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) SendText(ctx context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentUnit{domain.UnitText, text})
	return f.sendErr
}

func (f *fakeTransport) SendPhoto(ctx context.Context, chatID, imageRef, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentUnit{domain.UnitPhoto, imageRef})
	return f.sendErr
}

func newTestRouter(fetcher domain.Fetcher, completer domain.Completer, store domain.TranscriptStore, maxUnitLen int) (*Router, *fakeTransport) {
	loc := intent.DefaultLocale()
	rtr := New(Config{
		Classifier:  intent.NewClassifier(loc.Keywords),
		Fetcher:     fetcher,
		Completer:   completer,
		Store:       store,
		Locale:      loc,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		StepTimeout: 2 * time.Second,
	})
	transport := &fakeTransport{name: "telegram"}
	rtr.RegisterTransport(transport, maxUnitLen)
	return rtr, transport
}

func inbound(text string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:    "telegram",
		ChatID:     "42",
		SenderID:   "99",
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

func TestHandle_EnrichmentChunked(t *testing.T) {
	body := strings.Repeat("x", 2500)
	fetcher := &fakeFetcher{result: domain.EnrichmentResult{Body: body, OK: true}}
	store := &fakeStore{}
	rtr, transport := newTestRouter(fetcher, &fakeCompleter{body: "unused"}, store, 1000)

	rec, err := rtr.Handle(context.Background(), inbound("what is ektifa academy?"))
	if err != nil {
		t.Fatal(err)
	}

	if len(transport.sent) != 3 {
		t.Fatalf("expected 3 delivered units, got %d", len(transport.sent))
	}
	for i, want := range []int{1000, 1000, 500} {
		if got := len([]rune(transport.sent[i].payload)); got != want {
			t.Errorf("unit %d length = %d, want %d", i, got, want)
		}
	}
	var joined strings.Builder
	for _, u := range transport.sent {
		joined.WriteString(u.payload)
	}
	if joined.String() != body {
		t.Error("delivered text does not reassemble into the summary")
	}
	if rec.Reply != body {
		t.Error("record reply should be the full summary")
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one appended record, got %d", len(store.records))
	}
}

func TestHandle_EnrichmentWithImage(t *testing.T) {
	fetcher := &fakeFetcher{result: domain.EnrichmentResult{
		Body:     "about the academy",
		ImageRef: "https://example.com/logo.png",
		OK:       true,
	}}
	rtr, transport := newTestRouter(fetcher, &fakeCompleter{}, &fakeStore{}, 1000)

	if _, err := rtr.Handle(context.Background(), inbound("ektifa")); err != nil {
		t.Fatal(err)
	}

	if len(transport.sent) != 2 {
		t.Fatalf("expected photo + text, got %d units", len(transport.sent))
	}
	if transport.sent[0].kind != domain.UnitPhoto {
		t.Error("photo must be delivered before the text")
	}
	if transport.sent[1].payload != "about the academy" {
		t.Errorf("unexpected text payload %q", transport.sent[1].payload)
	}
}

func TestHandle_GeneralQuery(t *testing.T) {
	store := &fakeStore{}
	rtr, transport := newTestRouter(
		&fakeFetcher{result: domain.EnrichmentResult{Body: "should not be used", OK: true}},
		&fakeCompleter{body: "I'm doing well, thanks!"},
		store, 1000,
	)

	rec, err := rtr.Handle(context.Background(), inbound("hello, how are you"))
	if err != nil {
		t.Fatal(err)
	}

	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(transport.sent))
	}
	if transport.sent[0].payload != "I'm doing well, thanks!" {
		t.Errorf("unexpected payload %q", transport.sent[0].payload)
	}
	if rec.Reply != "I'm doing well, thanks!" {
		t.Errorf("record reply = %q", rec.Reply)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one appended record, got %d", len(store.records))
	}
}

// A failed fetch produces the localized fallback as a normal single-unit
// reply, with no photo, and the fallback is what gets recorded.
func TestHandle_EnrichmentFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{result: domain.EnrichmentResult{OK: false, ErrorDetail: "HTTP 503"}}
	store := &fakeStore{}
	rtr, transport := newTestRouter(fetcher, &fakeCompleter{}, store, 1000)

	rec, err := rtr.Handle(context.Background(), inbound("ektifa academy"))
	if err != nil {
		t.Fatal(err)
	}

	fallback := intent.DefaultLocale().FetchFailure
	if len(transport.sent) != 1 {
		t.Fatalf("expected single fallback unit, got %d", len(transport.sent))
	}
	if transport.sent[0].kind != domain.UnitText || transport.sent[0].payload != fallback {
		t.Errorf("unexpected unit: %+v", transport.sent[0])
	}
	if rec.Reply != fallback {
		t.Errorf("record reply = %q, want fallback", rec.Reply)
	}
	if len(store.records) != 1 {
		t.Fatal("record must still be appended")
	}
}

// A slow source is treated like any other fetch failure once the step
// timeout expires.
func TestHandle_EnrichmentFetchTimeout(t *testing.T) {
	fetcher := &fakeFetcher{
		result: domain.EnrichmentResult{Body: "too late", OK: true},
		delay:  5 * time.Second,
	}
	rtr, transport := newTestRouter(fetcher, &fakeCompleter{}, &fakeStore{}, 1000)
	rtr.stepTimeout = 50 * time.Millisecond

	rec, err := rtr.Handle(context.Background(), inbound("ektifa"))
	if err != nil {
		t.Fatal(err)
	}

	if len(transport.sent) != 1 || transport.sent[0].payload != intent.DefaultLocale().FetchFailure {
		t.Errorf("expected fallback unit, got %+v", transport.sent)
	}
	if rec.Reply != intent.DefaultLocale().FetchFailure {
		t.Errorf("record reply = %q", rec.Reply)
	}
}

// A completion failure produces no delivery units, but the exchange is still
// recorded with an empty reply.
func TestHandle_CompletionFailure(t *testing.T) {
	store := &fakeStore{}
	rtr, transport := newTestRouter(
		&fakeFetcher{},
		&fakeCompleter{err: errors.New("quota exceeded")},
		store, 1000,
	)

	rec, err := rtr.Handle(context.Background(), inbound("tell me a joke"))
	if err != nil {
		t.Fatal(err)
	}

	if len(transport.sent) != 0 {
		t.Errorf("no units should be delivered, got %d", len(transport.sent))
	}
	if rec.Reply != "" {
		t.Errorf("record reply = %q, want empty", rec.Reply)
	}
	if len(store.records) != 1 {
		t.Fatal("record must still be appended")
	}
	if store.records[0].Message != "tell me a joke" {
		t.Errorf("record message = %q", store.records[0].Message)
	}
}

// Delivery failure does not prevent persistence.
func TestHandle_DeliveryFailureStillPersists(t *testing.T) {
	store := &fakeStore{}
	rtr, transport := newTestRouter(&fakeFetcher{}, &fakeCompleter{body: "hello"}, store, 1000)
	transport.sendErr = errors.New("connection reset")

	if _, err := rtr.Handle(context.Background(), inbound("hi")); err != nil {
		t.Fatal(err)
	}
	if len(store.records) != 1 {
		t.Fatal("record must be appended even when delivery fails")
	}
}

// A store failure surfaces as an error, but only after delivery was attempted.
func TestHandle_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	rtr, transport := newTestRouter(&fakeFetcher{}, &fakeCompleter{body: "hello"}, store, 1000)

	rec, err := rtr.Handle(context.Background(), inbound("hi"))
	if err == nil {
		t.Fatal("expected error from failed append")
	}
	if len(transport.sent) != 1 {
		t.Error("delivery should have happened before the store failure")
	}
	if rec.Reply != "hello" {
		t.Errorf("record is still returned: reply = %q", rec.Reply)
	}
}

func TestHandle_UnknownChannel(t *testing.T) {
	store := &fakeStore{}
	rtr, _ := newTestRouter(&fakeFetcher{}, &fakeCompleter{body: "hello"}, store, 1000)

	msg := inbound("hi")
	msg.Channel = "matrix"
	if _, err := rtr.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	// No transport, but the exchange is still recorded.
	if len(store.records) != 1 {
		t.Fatal("record must be appended")
	}
}

func TestRun_ConsumesBus(t *testing.T) {
	store := &fakeStore{}
	rtr, transport := newTestRouter(&fakeFetcher{}, &fakeCompleter{body: "ok"}, store, 1000)

	ch := make(chan domain.InboundMessage, 2)
	rtr.bus = stubBus{ch: ch}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		rtr.Run(ctx)
		close(done)
	}()

	ch <- inbound("first")
	ch <- inbound("second")
	close(ch)
	<-done

	// Run returns when the channel closes; the handler goroutines may still
	// be finishing, so poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.records)
		store.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 records, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.sent) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(transport.sent))
	}
}

type stubBus struct {
	ch chan domain.InboundMessage
}

func (s stubBus) Publish(msg domain.InboundMessage)       { s.ch <- msg }
func (s stubBus) Subscribe() <-chan domain.InboundMessage { return s.ch }
func (s stubBus) Close()                                  {}
