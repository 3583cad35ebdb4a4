package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// adminHelpText lists the administrator commands. Command names are not
// localized, so the list stays in one place.
const adminHelpText = `/users - registered users
/bans - recorded bans
/accounts - accounts on the voice server
/online - users connected right now
/ban <tg_id|username> [reason] - ban a registrant
/unban <tg_id> - lift a ban
/delete_user <username> - delete a voice account
/generate - one-time invite link`

// defaultBanReason is recorded when an administrator gives none.
const defaultBanReason = "Banned by administrator"

func (b *Bot) handleListRegistrations(ctx context.Context, chatID int64, lang domain.LanguageCode) {
	registrations, err := b.adminSvc.ListRegistrations(ctx)
	if err != nil {
		b.sendListError(chatID, lang, err)
		return
	}

	lines := make([]string, 0, len(registrations))
	for _, reg := range registrations {
		lines = append(lines, fmt.Sprintf("%d - %s", reg.TelegramID.Int64(), reg.VoiceUsername))
	}
	b.sendList(chatID, lang, "admin-registrations-header", lines)
}

func (b *Bot) handleListBans(ctx context.Context, chatID int64, lang domain.LanguageCode) {
	bans, err := b.adminSvc.ListBans(ctx)
	if err != nil {
		b.sendListError(chatID, lang, err)
		return
	}

	lines := make([]string, 0, len(bans))
	for _, ban := range bans {
		line := fmt.Sprintf("%d", ban.TelegramID.Int64())
		if ban.VoiceUsername != "" {
			line += " (" + ban.VoiceUsername + ")"
		}
		if ban.Reason != "" {
			line += ": " + ban.Reason
		}
		lines = append(lines, line)
	}
	b.sendList(chatID, lang, "admin-bans-header", lines)
}

func (b *Bot) handleListServerAccounts(ctx context.Context, chatID int64, lang domain.LanguageCode) {
	accounts, err := b.adminSvc.ListServerAccounts(ctx)
	if err != nil {
		b.sendListError(chatID, lang, err)
		return
	}
	b.sendList(chatID, lang, "admin-accounts-header", accounts)
}

func (b *Bot) handleListOnline(ctx context.Context, chatID int64, lang domain.LanguageCode) {
	users, err := b.adminSvc.ListOnlineUsers(ctx)
	if err != nil {
		b.sendListError(chatID, lang, err)
		return
	}

	lines := make([]string, 0, len(users))
	for _, user := range users {
		name := user.Nickname
		if name == "" {
			name = user.Username
		}
		lines = append(lines, fmt.Sprintf("%s (%s), channel %d", name, user.Username, user.ChannelID))
	}
	b.sendList(chatID, lang, "admin-online-header", lines)
}

// handleBan bans by Telegram id or, when the argument is not numeric, by the
// voice username linked to a registration.
func (b *Bot) handleBan(ctx context.Context, msg *tgbotapi.Message, lang domain.LanguageCode) {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) == 0 {
		b.sendLocalized(msg.Chat.ID, lang, "admin-ban-invalid", nil)
		return
	}

	target := fields[0]
	reason := strings.Join(fields[1:], " ")
	if reason == "" {
		reason = defaultBanReason
	}
	bannedBy := domain.TelegramID(msg.From.ID)

	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		if err := b.adminSvc.BanTelegramUser(ctx, domain.TelegramID(id), bannedBy, reason); err != nil {
			b.logger.Error("ban failed", slog.Int64("target", id), slog.String("error", err.Error()))
			b.sendLocalized(msg.Chat.ID, lang, "admin-ban-fail", map[string]string{"tg_id": target})
			return
		}
		b.sendLocalized(msg.Chat.ID, lang, "admin-ban-success", map[string]string{"tg_id": target})
		return
	}

	registrant, err := b.adminSvc.BanVoiceUsername(ctx, target, bannedBy, reason)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			b.sendLocalized(msg.Chat.ID, lang, "username-not-found", nil)
			return
		}
		b.logger.Error("ban failed", slog.String("target", target), slog.String("error", err.Error()))
		b.sendLocalized(msg.Chat.ID, lang, "admin-ban-fail", map[string]string{"tg_id": target})
		return
	}
	b.sendLocalized(msg.Chat.ID, lang, "admin-ban-success", map[string]string{"tg_id": registrant.String()})
}

func (b *Bot) handleUnban(ctx context.Context, msg *tgbotapi.Message, lang domain.LanguageCode) {
	arg := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.sendLocalized(msg.Chat.ID, lang, "admin-unban-fail", map[string]string{"tg_id": arg})
		return
	}

	lifted, err := b.adminSvc.Unban(ctx, domain.TelegramID(id))
	if err != nil || !lifted {
		if err != nil {
			b.logger.Error("unban failed", slog.Int64("target", id), slog.String("error", err.Error()))
		}
		b.sendLocalized(msg.Chat.ID, lang, "admin-unban-fail", map[string]string{"tg_id": arg})
		return
	}
	b.sendLocalized(msg.Chat.ID, lang, "admin-unbanned", map[string]string{"tg_id": arg})
}

// handleDeleteVoiceAccount queues the server-side deletion. The lifecycle
// pipeline confirms the removal to every administrator once the server
// reports it, so only failures are answered here directly.
func (b *Bot) handleDeleteVoiceAccount(ctx context.Context, msg *tgbotapi.Message, lang domain.LanguageCode) {
	username, err := domain.ParseUsername(msg.CommandArguments())
	if err != nil {
		b.sendLocalized(msg.Chat.ID, lang, "admin-tt-delete-prompt", nil)
		return
	}

	if err := b.adminSvc.DeleteVoiceAccount(ctx, username); err != nil {
		b.sendLocalized(msg.Chat.ID, lang, "admin-tt-delete-fail", map[string]string{
			"username": username.String(),
			"error":    err.Error(),
		})
		return
	}
	b.sendLocalized(msg.Chat.ID, lang, "admin-tt-deleted", map[string]string{
		"username": username.String(),
	})
}

func (b *Bot) handleGenerateDeeplink(ctx context.Context, chatID int64, lang domain.LanguageCode) {
	if !b.cfg.Telegram.DeeplinkRegistrationEnabled {
		b.sendLocalized(chatID, lang, "deeplink-disabled", nil)
		return
	}
	if b.botUsername == "" {
		b.sendLocalized(chatID, lang, "deeplink-bot-username-missing", nil)
		return
	}

	token, err := b.tokens.IssueDeeplink(ctx, domain.TelegramID(chatID), b.cfg.Files.PendingRegistrationTTL)
	if err != nil {
		b.logger.Error("deeplink generation failed", slog.String("error", err.Error()))
		b.sendLocalized(chatID, lang, "deeplink-generate-error", nil)
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", b.botUsername, token)
	b.sendLocalized(chatID, lang, "deeplink-link", map[string]string{"link": link})
}

func (b *Bot) sendList(chatID int64, lang domain.LanguageCode, headerKey string, lines []string) {
	if len(lines) == 0 {
		b.sendLocalized(chatID, lang, "admin-list-empty", nil)
		return
	}
	b.reply(chatID, b.bundle.T(lang, headerKey)+"\n"+strings.Join(lines, "\n"))
}

func (b *Bot) sendListError(chatID int64, lang domain.LanguageCode, err error) {
	b.logger.Error("admin list request failed", slog.String("error", err.Error()))
	b.sendLocalized(chatID, lang, "admin-list-error", map[string]string{"error": err.Error()})
}
