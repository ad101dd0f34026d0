package domain

import "time"

// Intent is the coarse category assigned to an inbound message before dispatch.
type Intent int

const (
	// IntentGeneralQuery routes to the completion backend.
	IntentGeneralQuery Intent = iota
	// IntentEnrichment routes to the knowledge source fetcher.
	IntentEnrichment
)

func (i Intent) String() string {
	if i == IntentEnrichment {
		return "enrichment"
	}
	return "general_query"
}

// InboundMessage is one user-originated text event, normalized by the
// transport adapter. Created once per event, consumed once by the router.
type InboundMessage struct {
	Channel    string // transport that produced the message ("telegram", "discord")
	ChatID     string
	SenderID   string
	Text       string
	ReceivedAt time.Time
}

// UnitKind classifies a delivery unit.
type UnitKind string

const (
	UnitText  UnitKind = "text"
	UnitPhoto UnitKind = "photo"
)

// DeliveryUnit is one transport-deliverable piece of output: a text chunk
// no longer than the transport's maximum unit length, or a photo reference.
type DeliveryUnit struct {
	Kind    UnitKind
	Payload string // text body, or image URI for photo units
}

// EnrichmentResult is the outcome of one knowledge-source fetch. Failure is
// carried as data (OK=false) so the router never sees a raised error.
type EnrichmentResult struct {
	Body        string
	ImageRef    string
	OK          bool
	ErrorDetail string
}

// CompletionResult is the answer from the completion backend.
type CompletionResult struct {
	Body string
}

// TranscriptRecord is the durable record of a single question/answer
// exchange. Reply always holds the full un-chunked answer text.
type TranscriptRecord struct {
	SenderID  string
	Message   string
	Reply     string
	Timestamp time.Time
}
