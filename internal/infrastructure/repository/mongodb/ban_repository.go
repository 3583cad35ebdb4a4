package mongodb

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// banDocument is the stored form of a domain.Ban.
type banDocument struct {
	TelegramID    int64     `bson:"telegram_id"`
	VoiceUsername string    `bson:"voice_username,omitempty"`
	BannedAt      time.Time `bson:"banned_at"`
	BannedBy      int64     `bson:"banned_by,omitempty"`
	Reason        string    `bson:"reason,omitempty"`
}

// MongoBanRepository persists registration bans.
type MongoBanRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// BanRepoOption configures MongoBanRepository.
type BanRepoOption func(*MongoBanRepository)

// WithBanRepoLogger sets the repository logger.
func WithBanRepoLogger(logger *slog.Logger) BanRepoOption {
	return func(r *MongoBanRepository) {
		r.logger = logger
	}
}

// NewMongoBanRepository creates a ban repository over the given collection.
func NewMongoBanRepository(collection *mongo.Collection, opts ...BanRepoOption) *MongoBanRepository {
	r := &MongoBanRepository{
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ban records a ban. Banning an already banned user refreshes the record,
// so repeated automatic bans stay idempotent.
func (r *MongoBanRepository) Ban(ctx context.Context, ban domain.Ban) error {
	if ban.BannedAt.IsZero() {
		ban.BannedAt = time.Now().UTC()
	}

	doc := banDocument{
		TelegramID:    ban.TelegramID.Int64(),
		VoiceUsername: ban.VoiceUsername,
		BannedAt:      ban.BannedAt,
		BannedBy:      ban.BannedBy.Int64(),
		Reason:        ban.Reason,
	}

	filter := bson.M{"telegram_id": doc.TelegramID}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": doc}, UpsertOptions())
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record ban",
			slog.Int64("telegram_id", doc.TelegramID),
			slog.String("error", err.Error()),
		)
		return HandleMongoError(err, "ban")
	}
	return nil
}

// Unban lifts a ban and reports whether one existed.
func (r *MongoBanRepository) Unban(ctx context.Context, registrant domain.TelegramID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"telegram_id": registrant.Int64()})
	if err != nil {
		return false, HandleMongoError(err, "ban")
	}
	return res.DeletedCount > 0, nil
}

// Find returns the ban of a Telegram user, or errs.ErrNotFound.
func (r *MongoBanRepository) Find(ctx context.Context, registrant domain.TelegramID) (*domain.Ban, error) {
	var doc banDocument
	err := r.collection.FindOne(ctx, bson.M{"telegram_id": registrant.Int64()}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "ban")
	}
	return documentToBan(&doc), nil
}

// IsBanned reports whether the Telegram user is banned.
func (r *MongoBanRepository) IsBanned(ctx context.Context, registrant domain.TelegramID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"telegram_id": registrant.Int64()})
	if err != nil {
		return false, HandleMongoError(err, "ban")
	}
	return count > 0, nil
}

// List returns every ban, oldest first.
func (r *MongoBanRepository) List(ctx context.Context) ([]domain.Ban, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "banned_at", Value: 1}}))
	if err != nil {
		return nil, HandleMongoError(err, "ban")
	}
	defer cursor.Close(ctx)

	var bans []domain.Ban
	for cursor.Next(ctx) {
		var doc banDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, HandleMongoError(err, "ban")
		}
		bans = append(bans, *documentToBan(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "ban")
	}
	return bans, nil
}

func documentToBan(doc *banDocument) *domain.Ban {
	return &domain.Ban{
		TelegramID:    domain.TelegramID(doc.TelegramID),
		VoiceUsername: doc.VoiceUsername,
		BannedAt:      doc.BannedAt,
		BannedBy:      domain.TelegramID(doc.BannedBy),
		Reason:        doc.Reason,
	}
}
