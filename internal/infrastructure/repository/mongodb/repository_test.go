package mongodb

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

func TestHandleMongoError(t *testing.T) {
	assert.NoError(t, HandleMongoError(nil, "registration"))
	assert.ErrorIs(t, HandleMongoError(mongo.ErrNoDocuments, "registration"), errs.ErrNotFound)

	wrapped := HandleMongoError(errors.New("socket closed"), "registration")
	assert.ErrorContains(t, wrapped, "registration")
}

func TestDocumentToRegistration(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	doc := &registrationDocument{
		TelegramID:    101,
		VoiceUsername: "alice",
		BaseDocument:  BaseDocument{CreatedAt: created},
	}

	reg := documentToRegistration(doc)
	assert.Equal(t, domain.TelegramID(101), reg.TelegramID)
	assert.Equal(t, "alice", reg.VoiceUsername)
	assert.Equal(t, created, reg.CreatedAt)
}

func TestDocumentToBan(t *testing.T) {
	bannedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	doc := &banDocument{
		TelegramID:    101,
		VoiceUsername: "alice",
		BannedAt:      bannedAt,
		BannedBy:      5,
		Reason:        "spam",
	}

	ban := documentToBan(doc)
	assert.Equal(t, domain.TelegramID(101), ban.TelegramID)
	assert.Equal(t, domain.TelegramID(5), ban.BannedBy)
	assert.Equal(t, "spam", ban.Reason)
	assert.Equal(t, bannedAt, ban.BannedAt)
}

func TestDocumentToPending(t *testing.T) {
	doc := &pendingDocument{
		RequestKey: "abc123",
		TelegramID: 101,
		Username:   "alice",
		Password:   "secret",
		Nickname:   "Alice",
		SourceInfo: "Telegram ID: 101",
	}

	pending := documentToPending(doc)
	assert.Equal(t, "abc123", pending.RequestKey)
	assert.Equal(t, domain.TelegramID(101), pending.Registrant)
	assert.Equal(t, "alice", pending.Username)
	assert.Equal(t, "Telegram ID: 101", pending.SourceInfo)
}

func TestBaseDocumentSetTimestamps(t *testing.T) {
	var doc BaseDocument
	doc.SetTimestamps()
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())

	created := doc.CreatedAt
	doc.SetTimestamps()
	assert.Equal(t, created, doc.CreatedAt, "CreatedAt must not move on later writes")
}

func TestMongoRegistrationRepository(t *testing.T) {
	t.Skip("Requires MongoDB integration test setup")
}

func TestMongoBanRepository(t *testing.T) {
	t.Skip("Requires MongoDB integration test setup")
}

func TestMongoPendingRegistrationRepository(t *testing.T) {
	t.Skip("Requires MongoDB integration test setup")
}
