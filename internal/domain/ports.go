package domain

import "context"

// Transport delivers reply units to a chat network. Both calls are
// fire-and-forget from the router's perspective, but failures are returned
// so the router can log them.
type Transport interface {
	Name() string
	SendText(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, imageRef, caption string) error
}

// Fetcher retrieves a summary from the remote knowledge source. Transport
// and parse failures are reported inside the result, never as a Go error.
type Fetcher interface {
	Fetch(ctx context.Context) EnrichmentResult
}

// Completer forwards a single-turn query to the completion backend.
// There is no conversation memory across calls.
type Completer interface {
	Complete(ctx context.Context, userText, systemPrompt string) (CompletionResult, error)
}

// TranscriptStore durably appends exchange records. Append-only: no read,
// update, or delete operations are part of this core.
type TranscriptStore interface {
	Append(ctx context.Context, rec TranscriptRecord) error
}

// MessageBus carries inbound messages from transports to the router.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	Close()
}
