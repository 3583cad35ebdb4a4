// Package notify fans lifecycle and administrative notifications out to the
// configured admin chats. Delivery is best-effort: a failed recipient is
// logged and skipped, never propagated.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/i18n"
)

// Sender delivers one text message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID domain.TelegramID, text string) error
}

// AdminNotifier translates lifecycle events into localized admin messages.
type AdminNotifier struct {
	sender    Sender
	bundle    *i18n.Bundle
	adminIDs  []domain.TelegramID
	adminLang domain.LanguageCode
	logger    *slog.Logger
}

// Option configures AdminNotifier.
type Option func(*AdminNotifier)

// WithLogger sets the notifier logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *AdminNotifier) {
		n.logger = logger
	}
}

// NewAdminNotifier creates a notifier delivering to the given admin chats in
// the given language.
func NewAdminNotifier(
	sender Sender,
	bundle *i18n.Bundle,
	adminIDs []domain.TelegramID,
	adminLang domain.LanguageCode,
	opts ...Option,
) *AdminNotifier {
	n := &AdminNotifier{
		sender:    sender,
		bundle:    bundle,
		adminIDs:  adminIDs,
		adminLang: adminLang,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AccountCreated announces a server-side account creation.
func (n *AdminNotifier) AccountCreated(ctx context.Context, username string) {
	n.broadcast(ctx, "tt-account-created", map[string]string{"account_username_str": username})
}

// AccountChanged announces a server-side account update.
func (n *AdminNotifier) AccountChanged(ctx context.Context, username string) {
	n.broadcast(ctx, "tt-account-changed", map[string]string{"account_username_str": username})
}

// AccountRemoved announces a confirmed account removal.
func (n *AdminNotifier) AccountRemoved(ctx context.Context, username string) {
	n.broadcast(ctx, "tt-account-removed", map[string]string{"username": username})
}

// AccountRemovedBanned announces the automatic ban of the registrant linked
// to a removed account.
func (n *AdminNotifier) AccountRemovedBanned(ctx context.Context, username string, registrant domain.TelegramID) {
	n.broadcast(ctx, "tt-account-removed-banned", map[string]string{
		"username": username,
		"tg_id":    fmt.Sprintf("%d", registrant.Int64()),
	})
}

// AccountRemovedNoLink announces a removal with no linked registration.
func (n *AdminNotifier) AccountRemovedNoLink(ctx context.Context, username string) {
	n.broadcast(ctx, "tt-account-removed-no-link", map[string]string{"username": username})
}

// Announce sends an arbitrary localized message to every admin.
func (n *AdminNotifier) Announce(ctx context.Context, key string, args map[string]string) {
	n.broadcast(ctx, key, args)
}

func (n *AdminNotifier) broadcast(ctx context.Context, key string, args map[string]string) {
	text := n.bundle.TArgs(n.adminLang, key, args)
	for _, adminID := range n.adminIDs {
		if err := n.sender.SendMessage(ctx, adminID, text); err != nil {
			n.logger.Warn("failed to notify admin",
				slog.Int64("admin_id", adminID.Int64()),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
