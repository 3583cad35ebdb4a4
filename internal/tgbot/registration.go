package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
)

// handleStart opens the registration dialogue. A command payload is treated
// as a single-use invitation token.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	b.sessions.reset(msg.Chat.ID)
	sess := b.sessions.get(msg.Chat.ID)
	registrant := domain.TelegramID(msg.From.ID)

	token := strings.TrimSpace(msg.CommandArguments())
	if token != "" {
		if !b.cfg.Telegram.DeeplinkRegistrationEnabled {
			b.sendLocalized(msg.Chat.ID, sess.lang, "deeplink-disabled", nil)
			return
		}
		live, err := b.tokens.ValidateDeeplink(ctx, token)
		if err != nil {
			b.logger.Error("deeplink validation failed", slog.String("error", err.Error()))
			b.sendLocalized(msg.Chat.ID, sess.lang, "username-check-error", nil)
			return
		}
		if !live {
			b.sendLocalized(msg.Chat.ID, sess.lang, "deeplink-used-already", nil)
			return
		}
		sess.deeplinkToken = token
	} else if !b.cfg.Telegram.PublicRegistrationEnabled && !b.isAdmin(registrant) {
		b.sendLocalized(msg.Chat.ID, sess.lang, "registration-disabled", nil)
		return
	}

	eligibility, err := b.regSvc.CheckEligibility(ctx, registrant)
	if err != nil {
		b.logger.Error("eligibility check failed",
			slog.Int64("telegram_id", registrant.Int64()),
			slog.String("error", err.Error()),
		)
		b.sendLocalized(msg.Chat.ID, sess.lang, "username-check-error", nil)
		return
	}
	switch eligibility {
	case service.EligibilityBanned:
		b.sendLocalized(msg.Chat.ID, sess.lang, "banned-cannot-register", nil)
		return
	case service.EligibilityAlreadyRegistered:
		b.sendLocalized(msg.Chat.ID, sess.lang, "already-registered", nil)
		return
	}

	sess.suggestedNickname = telegramDisplayName(msg.From)

	if forced := b.cfg.Telegram.ForceUserLang; forced != "" {
		sess.lang = domain.ParseLanguageCodeOrDefault(forced)
		b.askUsername(sess, msg.Chat.ID)
		return
	}

	sess.state = stateChoosingLanguage
	b.sendLanguageKeyboard(msg.Chat.ID, sess.lang)
}

// handleDialogMessage advances the registration dialogue by one step.
func (b *Bot) handleDialogMessage(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.sessions.get(msg.Chat.ID)
	text := strings.TrimSpace(msg.Text)

	switch sess.state {
	case stateIdle:
		b.sendLocalized(msg.Chat.ID, sess.lang, "help-text", nil)

	case stateChoosingLanguage:
		code, ok := domain.ParseLanguageCode(text)
		if !ok || !b.bundle.Has(code) {
			b.sendLanguageKeyboard(msg.Chat.ID, sess.lang)
			return
		}
		sess.lang = code
		b.sendLocalized(msg.Chat.ID, sess.lang, "language-set", nil)
		b.askUsername(sess, msg.Chat.ID)

	case stateAwaitingUsername:
		b.stepUsername(ctx, sess, msg.Chat.ID, text)

	case stateAwaitingPassword:
		b.stepPassword(sess, msg.Chat.ID, text)

	case stateAwaitingNicknameChoice:
		b.stepNicknameChoice(ctx, sess, msg, text)

	case stateAwaitingNickname:
		nickname, err := domain.ParseNickname(text)
		if err != nil {
			b.sendLocalized(msg.Chat.ID, sess.lang, "nickname-empty-error", nil)
			return
		}
		sess.nickname = nickname
		b.afterNickname(ctx, sess, msg)

	case stateAwaitingAccountType:
		b.stepAccountType(ctx, sess, msg, text)
	}
}

func (b *Bot) askUsername(sess *session, chatID int64) {
	sess.state = stateAwaitingUsername
	reply := tgbotapi.NewMessage(chatID, b.bundle.T(sess.lang, "username-prompt"))
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(reply)
}

func (b *Bot) stepUsername(ctx context.Context, sess *session, chatID int64, text string) {
	username, err := domain.ParseUsername(text)
	if err != nil {
		b.sendLocalized(chatID, sess.lang, "username-empty-error", nil)
		return
	}

	taken, err := b.regSvc.IsUsernameTaken(ctx, username)
	if err != nil {
		b.logger.Warn("username check failed",
			slog.String("username", username.String()),
			slog.String("error", err.Error()),
		)
		b.sendLocalized(chatID, sess.lang, "username-check-error", nil)
		return
	}
	if taken {
		b.sendLocalized(chatID, sess.lang, "username-taken", nil)
		return
	}

	sess.username = username
	sess.state = stateAwaitingPassword
	b.sendLocalized(chatID, sess.lang, "password-prompt", nil)
}

func (b *Bot) stepPassword(sess *session, chatID int64, text string) {
	password, err := domain.ParsePassword(text)
	if err != nil {
		b.sendLocalized(chatID, sess.lang, "password-empty-error", nil)
		return
	}
	sess.password = password

	if sess.suggestedNickname == "" {
		sess.state = stateAwaitingNickname
		b.sendLocalized(chatID, sess.lang, "nickname-prompt-enter", nil)
		return
	}

	sess.state = stateAwaitingNicknameChoice
	text = b.bundle.TArgs(sess.lang, "nickname-prompt-choice", map[string]string{
		"nickname": sess.suggestedNickname,
	})
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = b.yesNoKeyboard(sess.lang)
	b.send(reply)
}

func (b *Bot) stepNicknameChoice(ctx context.Context, sess *session, msg *tgbotapi.Message, text string) {
	switch text {
	case b.bundle.T(sess.lang, "btn-yes"):
		nickname, err := domain.ParseNickname(sess.suggestedNickname)
		if err != nil {
			sess.state = stateAwaitingNickname
			b.sendLocalized(msg.Chat.ID, sess.lang, "nickname-prompt-enter", nil)
			return
		}
		sess.nickname = nickname
		b.afterNickname(ctx, sess, msg)
	case b.bundle.T(sess.lang, "btn-no"):
		sess.state = stateAwaitingNickname
		reply := tgbotapi.NewMessage(msg.Chat.ID, b.bundle.T(sess.lang, "nickname-prompt-enter"))
		reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(reply)
	default:
		b.sendLocalized(msg.Chat.ID, sess.lang, "invalid-choice", nil)
	}
}

// afterNickname either asks administrators for the account type or finalizes
// a regular registration right away.
func (b *Bot) afterNickname(ctx context.Context, sess *session, msg *tgbotapi.Message) {
	if !b.isAdmin(domain.TelegramID(msg.From.ID)) {
		b.finalizeRegistration(ctx, sess, msg, domain.AccountDefault)
		return
	}

	sess.state = stateAwaitingAccountType
	reply := tgbotapi.NewMessage(msg.Chat.ID, b.bundle.T(sess.lang, "tt-account-type-prompt"))
	reply.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(b.bundle.T(sess.lang, "tt-account-user")),
			tgbotapi.NewKeyboardButton(b.bundle.T(sess.lang, "tt-account-admin")),
		),
	)
	b.send(reply)
}

func (b *Bot) stepAccountType(ctx context.Context, sess *session, msg *tgbotapi.Message, text string) {
	switch text {
	case b.bundle.T(sess.lang, "tt-account-user"):
		b.finalizeRegistration(ctx, sess, msg, domain.AccountDefault)
	case b.bundle.T(sess.lang, "tt-account-admin"):
		b.finalizeRegistration(ctx, sess, msg, domain.AccountAdmin)
	default:
		b.sendLocalized(msg.Chat.ID, sess.lang, "invalid-choice", nil)
	}
}

func (b *Bot) finalizeRegistration(ctx context.Context, sess *session, msg *tgbotapi.Message, accountType domain.AccountType) {
	registrant := domain.TelegramID(msg.From.ID)
	sourceInfo := service.FormatSourceInfo(service.SourceInfo{
		Lang:       sess.lang,
		TGUsername: msg.From.UserName,
		FullName:   telegramDisplayName(msg.From),
	})

	result, err := b.regSvc.Register(ctx, service.RegisterParams{
		Username:    sess.username,
		Password:    sess.password,
		Nickname:    sess.nickname,
		AccountType: accountType,
		Source:      domain.SourceTelegram(registrant),
		SourceInfo:  sourceInfo,
		Registrant:  registrant,
	})
	if err != nil {
		if voice.IsServerRejected(err) {
			b.askUsername(sess, msg.Chat.ID)
			b.sendLocalized(msg.Chat.ID, sess.lang, "username-taken", nil)
			return
		}
		b.sendLocalized(msg.Chat.ID, sess.lang, "register-error", map[string]string{
			"error": err.Error(),
		})
		b.sessions.reset(msg.Chat.ID)
		return
	}

	if sess.deeplinkToken != "" {
		if _, err := b.tokens.ConsumeDeeplink(ctx, sess.deeplinkToken); err != nil {
			b.logger.Warn("failed to consume deeplink token", slog.String("error", err.Error()))
		}
	}

	successKey := "register-success"
	if result.DBSyncError != "" {
		successKey = "register-success-db-sync-issue"
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, b.bundle.T(sess.lang, successKey))
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(reply)

	b.deliverAssets(sess, msg.Chat.ID, result.Assets)
	b.sessions.reset(msg.Chat.ID)
}

// deliverAssets sends the generated .tt file, the quick-connect link and,
// when a client template is configured, the preconfigured client archive.
func (b *Bot) deliverAssets(sess *session, chatID int64, assets service.RegistrationAssets) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  assets.Filename,
		Bytes: []byte(assets.Content),
	})
	doc.Caption = b.bundle.T(sess.lang, "file-caption")
	if _, err := b.client.Send(doc); err != nil {
		b.logger.Warn("failed to send connection file", slog.String("error", err.Error()))
		b.sendLocalized(chatID, sess.lang, "file-send-error", nil)
	}

	b.sendLocalized(chatID, sess.lang, "link-text", map[string]string{"link": assets.Link})

	b.deliverClientZip(sess, chatID, assets)
}

func (b *Bot) deliverClientZip(sess *session, chatID int64, assets service.RegistrationAssets) {
	zipPath := filepath.Join(b.cfg.Files.TempDir, fmt.Sprintf("%s_client.zip", sess.username.String()))
	if !b.regSvc.TryCreateClientZip(zipPath, assets) {
		return
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to remove client archive", slog.String("error", err.Error()))
		}
	}()

	payload, err := os.ReadFile(zipPath)
	if err != nil {
		b.logger.Warn("failed to read client archive", slog.String("error", err.Error()))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("%s_TeamTalk.zip", sess.username.String()),
		Bytes: payload,
	})
	doc.Caption = b.bundle.T(sess.lang, "file-caption")
	if _, err := b.client.Send(doc); err != nil {
		b.logger.Warn("failed to send client archive", slog.String("error", err.Error()))
	}
}

func (b *Bot) sendLanguageKeyboard(chatID int64, lang domain.LanguageCode) {
	available := b.bundle.Available()
	buttons := make([]tgbotapi.KeyboardButton, 0, len(available))
	for _, code := range available {
		buttons = append(buttons, tgbotapi.NewKeyboardButton(code.String()))
	}

	reply := tgbotapi.NewMessage(chatID, b.bundle.T(lang, "language-prompt"))
	keyboard := tgbotapi.NewReplyKeyboard(buttons)
	keyboard.OneTimeKeyboard = true
	reply.ReplyMarkup = keyboard
	b.send(reply)
}

func (b *Bot) yesNoKeyboard(lang domain.LanguageCode) tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(b.bundle.T(lang, "btn-yes")),
			tgbotapi.NewKeyboardButton(b.bundle.T(lang, "btn-no")),
		),
	)
	keyboard.OneTimeKeyboard = true
	return keyboard
}

// telegramDisplayName builds the registrant's human name from the Telegram
// profile, falling back to the @username.
func telegramDisplayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name != "" {
		return name
	}
	return user.UserName
}
