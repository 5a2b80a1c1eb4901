package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/reviewbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// API is the part of tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Repository represents the interface for accessing data for the bot
type Repository interface {
	AddUser(ctx context.Context, id int64, username string) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdateReminders(ctx context.Context, id int64, perDay int) error
	AddWord(ctx context.Context, word *models.Word) error
	GetUserStats(ctx context.Context, userID int64, now time.Time) (*models.Stats, error)
	LogActivity(ctx context.Context, userID int64, action string) error
}

// Conversations routes free text into open reviews
type Conversations interface {
	Handle(ctx context.Context, userID int64, text string) (bool, error)
	Cancel(userID int64) bool
}

// Config controls the Telegram transport
type Config struct {
	// RatePerSec caps outgoing messages across all chats
	RatePerSec int
	// PollTimeout is the long polling timeout in seconds
	PollTimeout int
}

// Bot is the Telegram gateway: it delivers messages and routes incoming updates
type Bot struct {
	api     API
	repo    Repository
	conv    Conversations
	limiter *rate.Limiter
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time
}

// NewAPI authorizes against Telegram with token
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// New creates a new bot instance. SetConversations must be called before Start.
func New(api API, repo Repository, cfg Config, log zerolog.Logger) *Bot {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	return &Bot{
		api:     api,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		cfg:     cfg,
		log:     log.With().Str("component", "bot").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetConversations wires the review machine. It is separate from New because the
// machine itself sends through the bot.
func (b *Bot) SetConversations(conv Conversations) {
	b.conv = conv
}

// Send delivers a Markdown message to the user's private chat
func (b *Bot) Send(ctx context.Context, userID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	// В Telegram user ID и chat ID совпадают для личных чатов
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.api.Send(msg)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		// user supplied text broke the markup, retry as plain text
		msg.ParseMode = ""
		_, err = b.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send message to user %d: %w", userID, err)
	}
	return nil
}

// Start receives updates until ctx is cancelled. Updates are handled one at a time
// so that a learner's answer and confirmation are processed in order.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.PollTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.log.Info().Msg("receiving updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.HandleMessage(ctx, update.Message)
			}
		}
	}
}

// HandleMessage handles one incoming message
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil || !message.Chat.IsPrivate() {
		return
	}

	var err error
	if message.IsCommand() {
		err = b.handleCommand(ctx, message)
	} else {
		err = b.handleText(ctx, message)
	}
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", message.From.ID).Str("command", message.Command()).Msg("failed to handle message")
		if sendErr := b.Send(ctx, message.From.ID, msgDatabaseError); sendErr != nil {
			b.log.Warn().Err(sendErr).Int64("user_id", message.From.ID).Msg("failed to report error")
		}
	}
}

func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	if b.conv != nil {
		handled, err := b.conv.Handle(ctx, userID, message.Text)
		if err != nil {
			// the review state is intact, only the reply was lost
			b.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to deliver review reply")
			return nil
		}
		if handled {
			return nil
		}
	}
	return b.Send(ctx, userID, msgNoReview)
}
