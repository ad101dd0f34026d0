package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ektifabot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Discord implements domain.Transport for Discord.
type Discord struct {
	token   string
	guildID string
	welcome string
	session *discordgo.Session
	bus     domain.MessageBus
	logger  *slog.Logger
}

// DiscordConfig configures the Discord transport.
type DiscordConfig struct {
	Token   string
	GuildID string // optional: restrict to specific guild
	Welcome string // reply to /start
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		welcome: cfg.Welcome,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and listens until the
// context is cancelled.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(d.onMessage)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot's own messages.
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if d.guildID != "" && m.GuildID != d.guildID {
		return
	}
	if m.Content == "" {
		return
	}

	if m.Content == "/start" {
		if _, err := s.ChannelMessageSend(m.ChannelID, d.welcome); err != nil {
			d.logger.Error("welcome send failed", "channel_id", m.ChannelID, "err", err)
		}
		return
	}

	d.logger.Info("discord message received",
		"author", m.Author.Username,
		"channel_id", m.ChannelID,
		"content_len", len(m.Content),
	)

	d.bus.Publish(domain.InboundMessage{
		Channel:    "discord",
		ChatID:     m.ChannelID,
		SenderID:   m.Author.ID,
		Text:       m.Content,
		ReceivedAt: time.Now(),
	})
}

// SendText delivers a single pre-chunked text unit.
func (d *Discord) SendText(ctx context.Context, chatID string, text string) error {
	if _, err := d.session.ChannelMessageSend(chatID, text); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// SendPhoto delivers a photo by URL as an embed with an optional caption.
func (d *Discord) SendPhoto(ctx context.Context, chatID string, imageRef string, caption string) error {
	embed := &discordgo.MessageEmbed{
		Description: caption,
		Image:       &discordgo.MessageEmbedImage{URL: imageRef},
	}
	if _, err := d.session.ChannelMessageSendEmbed(chatID, embed); err != nil {
		return fmt.Errorf("discord send photo: %w", err)
	}
	return nil
}
