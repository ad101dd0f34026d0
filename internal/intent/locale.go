package intent

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Locale holds the configuration-supplied keyword set and the localized
// strings the gateway sends to users. Loaded from a YAML file so the
// classification terms and persona can change without a rebuild.
type Locale struct {
	// Keywords routes a message to the enrichment path when any of them
	// appears in the text (case-insensitive substring match).
	Keywords []string `yaml:"keywords"`

	// Persona is the fixed system prompt sent with every completion request.
	Persona string `yaml:"persona"`

	// Welcome is the reply to the /start command.
	Welcome string `yaml:"welcome"`

	// FetchFailure is substituted as the reply body when the knowledge
	// source cannot be reached or yields nothing.
	FetchFailure string `yaml:"fetchFailure"`
}

// DefaultLocale returns the built-in Arabic locale for Ektifa Academy.
func DefaultLocale() Locale {
	return Locale{
		Keywords: []string{
			"ektifa",
			"ektifa academy",
			"who is ektifa academy",
			"اكتفاء",
			"أكاديمية اكتفاء",
			"اكاديمية اكتفاء",
		},
		Persona:      "أجب كأنك موظف في أكاديمية اكتفاء، بإيجاز ووضوح وبأسلوب ودود.",
		Welcome:      "أهلاً بك في أكاديمية اكتفاء! كيف يمكنني مساعدتك اليوم؟",
		FetchFailure: "عذراً، لا يمكن الوصول إلى معلومات أكاديمية اكتفاء حالياً. حاول مرة أخرى لاحقاً.",
	}
}

// LoadLocale reads a locale YAML file. Missing path falls back to the
// built-in defaults; missing fields are filled from the defaults so a
// partial file only overrides what it names.
func LoadLocale(path string, logger *slog.Logger) (Locale, error) {
	loc := DefaultLocale()
	if path == "" {
		return loc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("locale file not found, using built-in defaults", "path", path)
			return loc, nil
		}
		return loc, fmt.Errorf("read locale file %s: %w", path, err)
	}

	var overlay Locale
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return loc, fmt.Errorf("parse locale file %s: %w", path, err)
	}

	if len(overlay.Keywords) > 0 {
		loc.Keywords = overlay.Keywords
	}
	if overlay.Persona != "" {
		loc.Persona = overlay.Persona
	}
	if overlay.Welcome != "" {
		loc.Welcome = overlay.Welcome
	}
	if overlay.FetchFailure != "" {
		loc.FetchFailure = overlay.FetchFailure
	}

	logger.Info("locale loaded", "path", path, "keywords", len(loc.Keywords))
	return loc, nil
}
