// Package intent classifies inbound messages by keyword match. This is
// intentionally a flat keyword set, not a learned classifier: any match
// routes to enrichment, so ties are impossible and no precedence ordering
// is needed.
package intent

import (
	"strings"

	"ektifabot/internal/domain"
)

// Classifier assigns an Intent to message text.
type Classifier struct {
	lowerKeywords []string // pre-computed lowercase keywords
}

// NewClassifier builds a classifier from the locale's keyword set.
// Lowercasing happens once here to avoid repeated ToLower per message.
func NewClassifier(keywords []string) *Classifier {
	lower := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower = append(lower, strings.ToLower(kw))
	}
	return &Classifier{lowerKeywords: lower}
}

// Classify returns IntentEnrichment when any configured keyword appears in
// the text (case-insensitive substring), otherwise IntentGeneralQuery.
func (c *Classifier) Classify(text string) domain.Intent {
	lower := strings.ToLower(text)
	for _, kw := range c.lowerKeywords {
		if strings.Contains(lower, kw) {
			return domain.IntentEnrichment
		}
	}
	return domain.IntentGeneralQuery
}
