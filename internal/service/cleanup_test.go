package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
)

type recordingPendingStore struct {
	cutoffs []time.Time
	dropped int64
}

func (s *recordingPendingStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.dropped, nil
}

func TestCleanupSweepRemovesOnlyExpiredFiles(t *testing.T) {
	tempDir := t.TempDir()
	oldFile := filepath.Join(tempDir, "old.tt")
	freshFile := filepath.Join(tempDir, "fresh.tt")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(freshFile, []byte("x"), 0o644))

	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	pending := &recordingPendingStore{dropped: 3}
	task := NewCleanupTask(config.FilesConfig{
		TempDir:                tempDir,
		GeneratedFileTTL:       time.Hour,
		PendingRegistrationTTL: 30 * time.Minute,
		CleanupInterval:        time.Minute,
	}, pending, slog.Default())

	task.Sweep(context.Background())

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, freshFile)
	require.Len(t, pending.cutoffs, 1)
	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), pending.cutoffs[0], time.Minute)
}

func TestCleanupSweepMissingTempDir(t *testing.T) {
	task := NewCleanupTask(config.FilesConfig{
		TempDir:          filepath.Join(t.TempDir(), "missing"),
		GeneratedFileTTL: time.Hour,
	}, nil, slog.Default())

	// Must not panic or create the directory.
	task.Sweep(context.Background())
}
