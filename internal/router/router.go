// Package router orchestrates the message-handling pipeline: classify the
// inbound message, answer from the knowledge source or the completion
// backend, chunk the reply, deliver it, and append the transcript.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ektifabot/internal/domain"
	"ektifabot/internal/format"
	"ektifabot/internal/intent"
	"ektifabot/internal/metrics"
)

const (
	defaultConcurrency = 5
	defaultStepTimeout = 10 * time.Second
)

// binding pairs a transport with a formatter sized to its unit limit.
type binding struct {
	transport domain.Transport
	formatter *format.Formatter
}

// Router consumes inbound messages and runs each through the pipeline.
type Router struct {
	classifier  *intent.Classifier
	fetcher     domain.Fetcher
	completer   domain.Completer
	store       domain.TranscriptStore
	bus         domain.MessageBus
	transports  map[string]binding
	locale      intent.Locale
	logger      *slog.Logger
	concurrency int
	stepTimeout time.Duration
}

// Config holds all dependencies and tuning parameters for the router.
// Clients are constructed once at startup and injected; there is no
// global lookup.
type Config struct {
	Classifier  *intent.Classifier
	Fetcher     domain.Fetcher
	Completer   domain.Completer
	Store       domain.TranscriptStore
	Bus         domain.MessageBus
	Locale      intent.Locale
	Logger      *slog.Logger
	Concurrency int           // max parallel messages (default 5)
	StepTimeout time.Duration // bound on each external call (default 10s)
}

func New(cfg Config) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	return &Router{
		classifier:  cfg.Classifier,
		fetcher:     cfg.Fetcher,
		completer:   cfg.Completer,
		store:       cfg.Store,
		bus:         cfg.Bus,
		transports:  make(map[string]binding),
		locale:      cfg.Locale,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		stepTimeout: cfg.StepTimeout,
	}
}

// RegisterTransport binds a delivery transport and its per-unit size limit.
func (r *Router) RegisterTransport(t domain.Transport, maxUnitLen int) {
	r.transports[t.Name()] = binding{
		transport: t,
		formatter: format.New(maxUnitLen),
	}
}

// Run consumes the inbound bus with bounded concurrency. Each message is
// one independent task; one task's failure never affects the others.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("router started", "concurrency", r.concurrency)

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, router stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				if _, err := r.Handle(ctx, m); err != nil {
					r.logger.Error("message handling incomplete",
						"channel", m.Channel, "sender", m.SenderID, "err", err)
				}
			}(msg)
		}
	}
}

// Handle runs the full pipeline for one message and returns the transcript
// record that was appended. Delivery happens before persistence, and
// persistence is attempted regardless of delivery outcome.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) (domain.TranscriptRecord, error) {
	metrics.MessagesTotal.Inc()

	msgIntent := r.classifier.Classify(msg.Text)
	r.logger.Info("message classified",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"intent", msgIntent.String(),
		"text_len", len(msg.Text),
	)

	var reply, imageRef string
	switch msgIntent {
	case domain.IntentEnrichment:
		reply, imageRef = r.answerFromSource(ctx)
	default:
		reply = r.answerFromCompletion(ctx, msg.Text)
	}

	if reply != "" {
		r.deliver(ctx, msg, reply, imageRef)
	}

	rec := domain.TranscriptRecord{
		SenderID:  msg.SenderID,
		Message:   msg.Text,
		Reply:     reply,
		Timestamp: time.Now(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	if err := r.store.Append(storeCtx, rec); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Error("transcript append failed", "sender", msg.SenderID, "err", err)
		return rec, fmt.Errorf("append transcript: %w", err)
	}
	return rec, nil
}

// answerFromSource fetches the enrichment summary. A failed or empty fetch
// is replaced by the localized failure message; the error never reaches the
// transport.
func (r *Router) answerFromSource(ctx context.Context) (reply, imageRef string) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	start := time.Now()
	res := r.fetcher.Fetch(fetchCtx)
	metrics.EnrichmentFetchLatency.Observe(time.Since(start).Seconds())

	if !res.OK || res.Body == "" {
		metrics.EnrichmentFailures.Inc()
		r.logger.Warn("enrichment unavailable, using fallback reply", "detail", res.ErrorDetail)
		return r.locale.FetchFailure, ""
	}
	return res.Body, res.ImageRef
}

// answerFromCompletion forwards the query to the completion backend. On
// failure the reply is the empty-string sentinel: no delivery unit is
// produced, but the record is still appended.
func (r *Router) answerFromCompletion(ctx context.Context, text string) string {
	compCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.completer.Complete(compCtx, text, r.locale.Persona)
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompletionFailures.Inc()
		r.logger.Error("completion failed", "err", err)
		return ""
	}
	return res.Body
}

// deliver sends the formatted units in order: photo first when present,
// then text chunks left to right. A failed unit is logged and counted but
// does not stop the remaining units or persistence.
func (r *Router) deliver(ctx context.Context, msg domain.InboundMessage, reply, imageRef string) {
	b, ok := r.transports[msg.Channel]
	if !ok {
		r.logger.Error("no transport registered for channel", "channel", msg.Channel)
		return
	}

	for _, unit := range b.formatter.Format(reply, imageRef) {
		var err error
		switch unit.Kind {
		case domain.UnitPhoto:
			err = b.transport.SendPhoto(ctx, msg.ChatID, unit.Payload, "")
		default:
			err = b.transport.SendText(ctx, msg.ChatID, unit.Payload)
		}
		if err != nil {
			metrics.DeliveryFailures.Inc()
			r.logger.Error("delivery failed",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"kind", string(unit.Kind),
				"err", err,
			)
		}
	}
}
