package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Debounce defaults.
const (
	// DefaultRemovalDebounce is how long a removal event waits for a
	// contradicting creation event before it is treated as a real deletion.
	DefaultRemovalDebounce = 2 * time.Second

	// finalizeTimeout bounds the registry and notification work of one
	// confirmed removal.
	finalizeTimeout = 30 * time.Second
)

// BanReasonRemoved is recorded when a removal is confirmed and the account
// had a linked registration.
const BanReasonRemoved = "Account deleted from TeamTalk server"

// deletionDebouncer converts raw created/removed events into debounced
// notifications. A server-side account update manifests as a removal
// immediately followed by a creation for the same username; the debouncer
// suppresses the false deletion and reports a single "changed" instead.
//
// Finalization runs on timer goroutines, never on the worker loop, so
// notification latency cannot stall event polling.
type deletionDebouncer struct {
	mu      sync.Mutex
	pending map[string]*time.Timer

	delay    time.Duration
	notifier LifecycleNotifier
	registry Registry
	logger   *slog.Logger
}

func newDeletionDebouncer(delay time.Duration, notifier LifecycleNotifier, registry Registry, logger *slog.Logger) *deletionDebouncer {
	if delay <= 0 {
		delay = DefaultRemovalDebounce
	}
	return &deletionDebouncer{
		pending:  make(map[string]*time.Timer),
		delay:    delay,
		notifier: notifier,
		registry: registry,
		logger:   logger,
	}
}

// accountRemoved schedules a cancellable finalization for username. At most
// one pending deletion exists per username; a repeated removal restarts the
// window.
func (d *deletionDebouncer) accountRemoved(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[username]; ok {
		prev.Stop()
	}
	d.logger.Debug("account removed from server, starting debounce timer",
		slog.String("username", username),
	)
	d.pending[username] = time.AfterFunc(d.delay, func() {
		d.finalize(username)
	})
}

// accountCreated classifies a creation event: it either cancels a pending
// deletion (the account was updated, not deleted) or reports a plain
// creation.
func (d *deletionDebouncer) accountCreated(ctx context.Context, username string) {
	d.mu.Lock()
	timer, wasPending := d.pending[username]
	if wasPending {
		delete(d.pending, username)
	}
	d.mu.Unlock()

	// Stop reports false when the finalizer already started; it is then
	// allowed to complete, and this creation stands on its own.
	if wasPending && timer.Stop() {
		d.logger.Debug("account recreated within debounce window, cancelled removal",
			slog.String("username", username),
		)
		d.notifier.AccountChanged(ctx, username)
		return
	}

	d.notifier.AccountCreated(ctx, username)
}

// finalize is the scheduled confirmed-removal action. Removing its own entry
// under the lock is its first action, linearizing against accountCreated so
// the side effect happens at most once.
func (d *deletionDebouncer) finalize(username string) {
	d.mu.Lock()
	delete(d.pending, username)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	d.logger.Debug("debounce window elapsed, confirming account removal",
		slog.String("username", username),
	)
	d.notifier.AccountRemoved(ctx, username)

	registrant, found, err := d.registry.FindByVoiceUsername(ctx, username)
	if err != nil {
		d.logger.Error("failed to look up registration for removed account",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
	if err != nil || !found {
		d.notifier.AccountRemovedNoLink(ctx, username)
		return
	}

	if banErr := d.registry.Ban(ctx, registrant, username, BanReasonRemoved); banErr != nil {
		d.logger.Error("failed to record ban for removed account",
			slog.String("username", username),
			slog.Int64("registrant", registrant.Int64()),
			slog.String("error", banErr.Error()),
		)
	}
	d.notifier.AccountRemovedBanned(ctx, username, registrant)
}

// stopAll cancels every pending finalization, used on worker shutdown.
func (d *deletionDebouncer) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for username, timer := range d.pending {
		timer.Stop()
		delete(d.pending, username)
	}
}
