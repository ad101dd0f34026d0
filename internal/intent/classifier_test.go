package intent

import (
	"log/slog"
	"os"
	"testing"

	"ektifabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestClassify_KeywordMatch(t *testing.T) {
	c := NewClassifier(DefaultLocale().Keywords)

	cases := []string{
		"What is Ektifa academy?",
		"who is EKTIFA?",
		"tell me about ektifa academy please",
		"ما هي أكاديمية اكتفاء؟",
		"اكتفاء",
	}
	for _, text := range cases {
		if got := c.Classify(text); got != domain.IntentEnrichment {
			t.Errorf("Classify(%q) = %s, want enrichment", text, got)
		}
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := NewClassifier(DefaultLocale().Keywords)

	cases := []string{
		"hello, how are you",
		"what's the weather today?",
		"",
	}
	for _, text := range cases {
		if got := c.Classify(text); got != domain.IntentGeneralQuery {
			t.Errorf("Classify(%q) = %s, want general_query", text, got)
		}
	}
}

// Every configured keyword must route to the enrichment path, regardless of
// case or surrounding text.
func TestClassify_AllConfiguredKeywords(t *testing.T) {
	loc := DefaultLocale()
	c := NewClassifier(loc.Keywords)

	for _, kw := range loc.Keywords {
		for _, text := range []string{kw, "please, " + kw + " info"} {
			if got := c.Classify(text); got != domain.IntentEnrichment {
				t.Errorf("Classify(%q) = %s, want enrichment", text, got)
			}
		}
	}
}

func TestClassify_EmptyKeywordsIgnored(t *testing.T) {
	c := NewClassifier([]string{"", "  ", "ektifa"})
	if got := c.Classify("anything at all"); got != domain.IntentGeneralQuery {
		t.Errorf("blank keywords must not match everything, got %s", got)
	}
	if got := c.Classify("ektifa"); got != domain.IntentEnrichment {
		t.Errorf("real keyword should still match, got %s", got)
	}
}

func TestLoadLocale_MissingFileUsesDefaults(t *testing.T) {
	loc, err := LoadLocale("/nonexistent/locale.yaml", testLogger())
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(loc.Keywords) == 0 || loc.Persona == "" || loc.FetchFailure == "" {
		t.Error("defaults should be populated")
	}
}

func TestLoadLocale_PartialOverlay(t *testing.T) {
	path := t.TempDir() + "/locale.yaml"
	data := "keywords:\n  - custom term\nwelcome: hi there\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	loc, err := LoadLocale(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.Keywords) != 1 || loc.Keywords[0] != "custom term" {
		t.Errorf("keywords not overridden: %v", loc.Keywords)
	}
	if loc.Welcome != "hi there" {
		t.Errorf("welcome not overridden: %q", loc.Welcome)
	}
	if loc.Persona != DefaultLocale().Persona {
		t.Error("persona should fall back to default")
	}
	if loc.FetchFailure != DefaultLocale().FetchFailure {
		t.Error("fetchFailure should fall back to default")
	}
}

func TestLoadLocale_InvalidYAML(t *testing.T) {
	path := t.TempDir() + "/locale.yaml"
	if err := os.WriteFile(path, []byte("keywords: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLocale(path, testLogger()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
