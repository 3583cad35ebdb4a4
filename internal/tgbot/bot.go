// Package tgbot runs the Telegram bot: the guided registration dialogue for
// community members and the administrative commands on top of it.
package tgbot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/i18n"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/tokenstore"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
)

// apiClient is the sending surface of the Telegram API, narrowed for tests.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// tokenStore is the slice of the token store the bot needs.
type tokenStore interface {
	IssueDeeplink(ctx context.Context, generatedBy domain.TelegramID, ttl time.Duration) (string, error)
	ValidateDeeplink(ctx context.Context, token string) (bool, error)
	ConsumeDeeplink(ctx context.Context, token string) (domain.TelegramID, error)
}

// Bot handles Telegram updates.
type Bot struct {
	api    *tgbotapi.BotAPI
	client apiClient

	cfg      *config.Config
	bundle   *i18n.Bundle
	regSvc   *service.RegistrationService
	adminSvc *service.AdminService
	tokens   tokenStore

	sessions    *sessionStore
	botUsername string
	logger      *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the bot logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// New wires a bot over an authorized API client.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	bundle *i18n.Bundle,
	regSvc *service.RegistrationService,
	adminSvc *service.AdminService,
	tokens *tokenstore.Store,
	opts ...Option,
) *Bot {
	b := &Bot{
		api:         api,
		client:      api,
		cfg:         cfg,
		bundle:      bundle,
		regSvc:      regSvc,
		adminSvc:    adminSvc,
		tokens:      tokens,
		sessions:    newSessionStore(),
		botUsername: api.Self.UserName,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started", slog.String("username", b.botUsername))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleDialogMessage(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.sendLocalized(msg.Chat.ID, b.sessionLang(msg), "help-text", nil)
	case "cancel":
		b.sessions.reset(msg.Chat.ID)
		b.sendLocalized(msg.Chat.ID, b.sessionLang(msg), "cancelled", nil)
	case "admin":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.reply(msg.Chat.ID, b.bundle.T(lang, "admin-panel-title")+"\n"+adminHelpText)
		})
	case "users":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleListRegistrations(ctx, msg.Chat.ID, lang)
		})
	case "bans":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleListBans(ctx, msg.Chat.ID, lang)
		})
	case "accounts":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleListServerAccounts(ctx, msg.Chat.ID, lang)
		})
	case "online":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleListOnline(ctx, msg.Chat.ID, lang)
		})
	case "ban":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleBan(ctx, msg, lang)
		})
	case "unban":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleUnban(ctx, msg, lang)
		})
	case "delete_user":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleDeleteVoiceAccount(ctx, msg, lang)
		})
	case "generate":
		b.requireAdmin(msg, func(lang domain.LanguageCode) {
			b.handleGenerateDeeplink(ctx, msg.Chat.ID, lang)
		})
	default:
		b.sendLocalized(msg.Chat.ID, b.sessionLang(msg), "invalid-choice", nil)
	}
}

// requireAdmin runs fn only for configured administrators; others get no
// response at all, so the command set stays undiscoverable.
func (b *Bot) requireAdmin(msg *tgbotapi.Message, fn func(lang domain.LanguageCode)) {
	if !b.isAdmin(domain.TelegramID(msg.From.ID)) {
		return
	}
	fn(b.adminLang())
}

func (b *Bot) isAdmin(id domain.TelegramID) bool {
	for _, adminID := range b.cfg.Telegram.AdminTelegramIDs() {
		if adminID == id {
			return true
		}
	}
	return false
}

func (b *Bot) adminLang() domain.LanguageCode {
	return domain.ParseLanguageCodeOrDefault(b.cfg.Telegram.AdminLang)
}

func (b *Bot) sessionLang(msg *tgbotapi.Message) domain.LanguageCode {
	return b.sessions.get(msg.Chat.ID).lang
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendLocalized(chatID int64, lang domain.LanguageCode, key string, args map[string]string) {
	b.send(tgbotapi.NewMessage(chatID, b.bundle.TArgs(lang, key, args)))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.client.Send(c); err != nil {
		b.logger.Warn("failed to send telegram message", slog.String("error", err.Error()))
	}
}
