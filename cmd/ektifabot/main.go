package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ektifabot/internal/bus"
	"ektifabot/internal/channel"
	"ektifabot/internal/completion"
	"ektifabot/internal/config"
	"ektifabot/internal/enrich"
	"ektifabot/internal/intent"
	"ektifabot/internal/metrics"
	"ektifabot/internal/router"
	"ektifabot/internal/transcript"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "ektifabot",
		Short: "Conversational gateway for Ektifa Academy",
		Long:  "ektifabot answers chat messages about Ektifa Academy from its public page or from a completion backend, and records every exchange.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.ektifabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ektifabot v" + version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (webhook server + message pipeline)",
		Long:  "Starts the enabled transports and the message router. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = newLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locale, err := intent.LoadLocale(cfg.Locale.Path, logger)
	if err != nil {
		return fmt.Errorf("locale: %w", err)
	}

	messageBus := bus.New(100, logger)

	store, err := transcript.NewSQLiteStore(cfg.Transcript.DBPath, logger)
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	defer store.Close()

	stepTimeout := time.Duration(cfg.General.RequestTimeoutSeconds) * time.Second

	var renderer enrich.Renderer
	if cfg.Enrichment.Browser.Enabled {
		renderer = enrich.NewBrowser(enrich.BrowserConfig{
			ProfileDir: cfg.Enrichment.Browser.ProfileDir,
			Logger:     logger,
		})
		logger.Info("browser renderer enabled")
	}
	fetcher := enrich.NewFetcher(enrich.FetcherConfig{
		SourceURL: cfg.Enrichment.SourceURL,
		MaxLen:    cfg.Enrichment.MaxSummaryLen,
		Renderer:  renderer,
		Logger:    logger,
	})

	completer := completion.NewClient(completion.ClientConfig{
		APIKey:  cfg.Completion.APIKey,
		APIBase: cfg.Completion.APIBase,
		Model:   cfg.Completion.Model,
		Timeout: stepTimeout,
		Logger:  logger,
	})
	if err := completer.Healthy(ctx); err != nil {
		logger.Warn("completion backend unhealthy at startup", "err", err)
	} else {
		logger.Info("completion backend healthy", "model", cfg.Completion.Model)
	}

	rtr := router.New(router.Config{
		Classifier:  intent.NewClassifier(locale.Keywords),
		Fetcher:     fetcher,
		Completer:   completer,
		Store:       store,
		Bus:         messageBus,
		Locale:      locale,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentMessages,
		StepTimeout: stepTimeout,
	})

	var metricsHandler http.HandlerFunc
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Collector.Handler()
	}

	started := 0
	if cfg.Channels.Telegram.Enabled {
		telegramCh := channel.NewTelegram(channel.TelegramConfig{
			Token:       cfg.Channels.Telegram.Token,
			Port:        cfg.Channels.Telegram.Port,
			WebhookPath: cfg.Channels.Telegram.WebhookPath,
			SecretToken: cfg.Channels.Telegram.SecretToken,
			ParseMode:   cfg.Channels.Telegram.ParseMode,
			Welcome:     locale.Welcome,
			Metrics:     metricsHandler,
			Logger:      logger,
		})
		rtr.RegisterTransport(telegramCh, cfg.Channels.Telegram.MaxUnitLen)
		go func() {
			if err := telegramCh.Start(ctx, messageBus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
		started++
	}

	if cfg.Channels.Discord.Enabled {
		discordCh := channel.NewDiscord(channel.DiscordConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Welcome: locale.Welcome,
			Logger:  logger,
		})
		rtr.RegisterTransport(discordCh, cfg.Channels.Discord.MaxUnitLen)
		go func() {
			if err := discordCh.Start(ctx, messageBus); err != nil {
				logger.Error("discord channel error", "err", err)
			}
		}()
		logger.Info("discord channel enabled")
		started++
	}

	if started == 0 {
		return fmt.Errorf("no channels enabled; enable telegram or discord in %s", cfgPath)
	}

	go rtr.Run(ctx)

	logger.Info("gateway started. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutting down gateway...")
	messageBus.Close()
	return nil
}

func newLogger(cfg config.GeneralConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", cfg.LogFile, err)
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
