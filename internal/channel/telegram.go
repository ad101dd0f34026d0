package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ektifabot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxSendRetries = 3
	telegramMaxBodyBytes   = 1 << 20 // 1MB webhook payload cap
	secretTokenHeader      = "X-Telegram-Bot-Api-Secret-Token"
)

// Telegram implements domain.Transport for Telegram and runs the webhook
// HTTP server that receives bot updates.
type Telegram struct {
	token       string
	port        int
	webhookPath string
	secretToken string
	parseMode   string
	welcome     string

	bot     *tgbotapi.BotAPI
	bus     domain.MessageBus
	logger  *slog.Logger
	server  *http.Server
	metrics http.HandlerFunc
}

type TelegramConfig struct {
	Token       string
	Port        int
	WebhookPath string
	SecretToken string // verified against the X-Telegram-Bot-Api-Secret-Token header
	ParseMode   string
	Welcome     string // reply to /start
	Metrics     http.HandlerFunc
	Logger      *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:       cfg.Token,
		port:        cfg.Port,
		webhookPath: cfg.WebhookPath,
		secretToken: cfg.SecretToken,
		parseMode:   cfg.ParseMode,
		welcome:     cfg.Welcome,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and serves the webhook endpoint until the
// context is cancelled.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	mux := http.NewServeMux()
	mux.HandleFunc(t.webhookPath, t.handleWebhook)
	if t.metrics != nil {
		mux.HandleFunc("/metrics", t.metrics)
	}

	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	t.logger.Info("telegram webhook server starting", "port", t.port, "path", t.webhookPath)

	errCh := make(chan error, 1)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("telegram webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("telegram webhook server: %w", err)
	}
}

func (t *Telegram) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if t.secretToken != "" && r.Header.Get(secretTokenHeader) != t.secretToken {
		http.Error(rw, "Forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, telegramMaxBodyBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Always acknowledge; Telegram retries non-2xx responses and the
	// pipeline handles each message asynchronously.
	rw.WriteHeader(http.StatusOK)

	t.handleUpdate(update)
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	if update.Message.IsCommand() {
		t.handleCommand(chatID, update.Message)
		return
	}

	t.logger.Info("telegram message received",
		"user_id", update.Message.From.ID,
		"chat_id", chatID,
		"text_len", len(text),
	)

	if t.bot != nil {
		typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		_, _ = t.bot.Send(typing)
	}

	t.bus.Publish(domain.InboundMessage{
		Channel:    "telegram",
		ChatID:     strconv.FormatInt(chatID, 10),
		SenderID:   strconv.FormatInt(update.Message.From.ID, 10),
		Text:       text,
		ReceivedAt: time.Unix(int64(update.Message.Date), 0),
	})
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		if err := t.sendChunk(chatID, t.welcome); err != nil {
			t.logger.Error("welcome send failed", "chat_id", chatID, "err", err)
		}
	default:
		// Unknown commands are ignored rather than routed to the pipeline.
		t.logger.Debug("ignoring command", "command", msg.Command())
	}
}

// SendText delivers a single pre-chunked text unit.
func (t *Telegram) SendText(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	return t.sendChunk(id, text)
}

// SendPhoto delivers a photo by URL with an optional caption.
func (t *Telegram) SendPhoto(ctx context.Context, chatID string, imageRef string, caption string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(imageRef))
	photo.Caption = caption
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram send photo: %w", err)
	}
	return nil
}

// sendChunk sends one message with retry and rate limit handling.
// Strategy: try the configured parse mode first, on parse error fall back
// to plain text, retry transient errors with backoff.
func (t *Telegram) sendChunk(chatID int64, text string) error {
	const maxAttempts = telegramMaxSendRetries

	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}
		// On subsequent attempts: send as plain text (parse mode may be malformed).

		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Markdown parse error on first attempt: immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return nil
			}
			// Plain also failed; fall through to the backoff loop.
		}

		if attempt < maxAttempts {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("telegram send after %d attempts: %w", maxAttempts+1, lastErr)
}
