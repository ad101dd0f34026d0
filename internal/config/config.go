package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the Ektifa gateway.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Channels   ChannelsConfig   `json:"channels"`
	Completion CompletionConfig `json:"completion"`
	Enrichment EnrichmentConfig `json:"enrichment"`
	Transcript TranscriptConfig `json:"transcript"`
	Locale     LocaleConfig     `json:"locale"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"` // bound on enrichment/completion/store calls
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

type TelegramConfig struct {
	Enabled     bool   `json:"enabled"`
	Token       string `json:"token"`
	Port        int    `json:"port"`
	WebhookPath string `json:"webhookPath"`
	SecretToken string `json:"secretToken,omitempty"` // X-Telegram-Bot-Api-Secret-Token check
	ParseMode   string `json:"parseMode"`
	MaxUnitLen  int    `json:"maxUnitLen"` // transport max chars per text unit
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	GuildID    string `json:"guildId,omitempty"` // optional: restrict to specific guild
	MaxUnitLen int    `json:"maxUnitLen"`
}

type CompletionConfig struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model"`
}

type EnrichmentConfig struct {
	SourceURL     string        `json:"sourceUrl"`
	MaxSummaryLen int           `json:"maxSummaryLen"` // chars, rune-safe truncation
	Browser       BrowserConfig `json:"browser"`
}

// BrowserConfig enables the headless-Chrome fallback for pages whose
// content only appears after script execution.
type BrowserConfig struct {
	Enabled    bool   `json:"enabled"`
	ProfileDir string `json:"profileDir,omitempty"`
}

type TranscriptConfig struct {
	DBPath string `json:"dbPath"`
}

// LocaleConfig points at the YAML file holding the enrichment keywords,
// persona prompt, and localized user-facing messages. Built-in defaults
// apply when the path is empty or the file is missing.
type LocaleConfig struct {
	Path string `json:"path,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.ektifabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ektifabot"
	}
	return filepath.Join(home, ".ektifabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Transcript.DBPath = ExpandPath(cfg.Transcript.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Locale.Path = ExpandPath(cfg.Locale.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.RequestTimeoutSeconds < 1 {
		errs = append(errs, "general.requestTimeoutSeconds must be >= 1")
	}

	if cfg.Channels.Telegram.Port < 0 || cfg.Channels.Telegram.Port > 65535 {
		errs = append(errs, "channels.telegram.port must be between 0 and 65535")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if cfg.Channels.Telegram.MaxUnitLen < 1 || cfg.Channels.Telegram.MaxUnitLen > 4096 {
		errs = append(errs, "channels.telegram.maxUnitLen must be between 1 and 4096")
	}
	if cfg.Channels.Discord.MaxUnitLen < 1 || cfg.Channels.Discord.MaxUnitLen > 2000 {
		errs = append(errs, "channels.discord.maxUnitLen must be between 1 and 2000")
	}

	if cfg.Completion.APIBase == "" {
		errs = append(errs, "completion.apiBase is required")
	}
	if cfg.Completion.Model == "" {
		errs = append(errs, "completion.model is required")
	}

	if cfg.Enrichment.SourceURL == "" {
		errs = append(errs, "enrichment.sourceUrl is required")
	}
	if cfg.Enrichment.MaxSummaryLen < 1 || cfg.Enrichment.MaxSummaryLen > 4000 {
		errs = append(errs, "enrichment.maxSummaryLen must be between 1 and 4000")
	}

	if cfg.Transcript.DBPath == "" {
		errs = append(errs, "transcript.dbPath is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
