package voice

import (
	"context"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// LifecycleNotifier receives debounced, application-meaningful account
// lifecycle notifications. Delivery is best-effort; implementations must not
// propagate per-recipient failures.
type LifecycleNotifier interface {
	AccountCreated(ctx context.Context, username string)
	AccountChanged(ctx context.Context, username string)
	AccountRemoved(ctx context.Context, username string)
	AccountRemovedBanned(ctx context.Context, username string, registrant domain.TelegramID)
	AccountRemovedNoLink(ctx context.Context, username string)
}

// Registry links voice accounts to local registrations and records bans.
type Registry interface {
	// FindByVoiceUsername returns the registrant linked to a voice account,
	// with found=false when no link exists.
	FindByVoiceUsername(ctx context.Context, username string) (registrant domain.TelegramID, found bool, err error)
	// Ban records the registrant as banned.
	Ban(ctx context.Context, registrant domain.TelegramID, username, reason string) error
}
