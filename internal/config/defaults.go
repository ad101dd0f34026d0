package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
			RequestTimeoutSeconds: 10,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:     false,
				Port:        8080,
				WebhookPath: "/webhook",
				ParseMode:   "Markdown",
				MaxUnitLen:  4000,
			},
			Discord: DiscordConfig{
				Enabled:    false,
				MaxUnitLen: 2000,
			},
		},
		Completion: CompletionConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Enrichment: EnrichmentConfig{
			SourceURL:     "https://www.ektifa.academy/",
			MaxSummaryLen: 3500,
			Browser: BrowserConfig{
				Enabled: false,
			},
		},
		Transcript: TranscriptConfig{
			DBPath: "~/.ektifabot/transcript.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
