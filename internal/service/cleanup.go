package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
)

// PendingStore is the slice of the pending-registration repository the
// cleanup task needs.
type PendingStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupTask periodically removes expired generated files and stale pending
// registrations. Download and deeplink tokens expire in Redis on their own.
type CleanupTask struct {
	cfg     config.FilesConfig
	pending PendingStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewCleanupTask wires a cleanup task.
func NewCleanupTask(cfg config.FilesConfig, pending PendingStore, logger *slog.Logger) *CleanupTask {
	return &CleanupTask{
		cfg:     cfg,
		pending: pending,
		logger:  logger,
		now:     time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (t *CleanupTask) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass.
func (t *CleanupTask) Sweep(ctx context.Context) {
	removed := t.removeExpiredTempFiles()
	if removed > 0 {
		t.logger.Info("removed expired generated files", slog.Int("count", removed))
	}

	if t.pending == nil {
		return
	}
	cutoff := t.now().Add(-t.cfg.PendingRegistrationTTL)
	dropped, err := t.pending.DeleteExpired(ctx, cutoff)
	if err != nil {
		t.logger.Error("failed to drop expired pending registrations", slog.String("error", err.Error()))
		return
	}
	if dropped > 0 {
		t.logger.Info("dropped expired pending registrations", slog.Int64("count", dropped))
	}
}

// removeExpiredTempFiles deletes generated files older than their TTL.
func (t *CleanupTask) removeExpiredTempFiles() int {
	entries, err := os.ReadDir(t.cfg.TempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("failed to read temp dir", slog.String("error", err.Error()))
		}
		return 0
	}

	cutoff := t.now().Add(-t.cfg.GeneratedFileTTL)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(t.cfg.TempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			t.logger.Warn("failed to remove expired file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed
}
