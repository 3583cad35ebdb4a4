package mongodb

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// pendingDocument is the stored form of a domain.PendingRegistration.
type pendingDocument struct {
	RequestKey   string `bson:"request_key"`
	TelegramID   int64  `bson:"telegram_id"`
	Username     string `bson:"username"`
	Password     string `bson:"password"`
	Nickname     string `bson:"nickname"`
	SourceInfo   string `bson:"source_info"`
	BaseDocument `bson:",inline"`
}

// MongoPendingRegistrationRepository persists registration requests awaiting
// admin approval.
type MongoPendingRegistrationRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// PendingRepoOption configures MongoPendingRegistrationRepository.
type PendingRepoOption func(*MongoPendingRegistrationRepository)

// WithPendingRepoLogger sets the repository logger.
func WithPendingRepoLogger(logger *slog.Logger) PendingRepoOption {
	return func(r *MongoPendingRegistrationRepository) {
		r.logger = logger
	}
}

// NewMongoPendingRegistrationRepository creates a pending-registration
// repository over the given collection.
func NewMongoPendingRegistrationRepository(collection *mongo.Collection, opts ...PendingRepoOption) *MongoPendingRegistrationRepository {
	r := &MongoPendingRegistrationRepository{
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add stores a pending registration keyed by its request key.
func (r *MongoPendingRegistrationRepository) Add(ctx context.Context, pending domain.PendingRegistration) error {
	if pending.RequestKey == "" {
		return errs.ErrInvalidInput
	}

	doc := pendingDocument{
		RequestKey: pending.RequestKey,
		TelegramID: pending.Registrant.Int64(),
		Username:   pending.Username,
		Password:   pending.Password,
		Nickname:   pending.Nickname,
		SourceInfo: pending.SourceInfo,
	}
	doc.SetTimestamps()

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			r.logger.ErrorContext(ctx, "failed to insert pending registration",
				slog.String("request_key", pending.RequestKey),
				slog.String("error", err.Error()),
			)
		}
		return HandleMongoError(err, "pending registration")
	}
	return nil
}

// Find returns the pending registration for key, or errs.ErrNotFound.
func (r *MongoPendingRegistrationRepository) Find(ctx context.Context, key string) (*domain.PendingRegistration, error) {
	var doc pendingDocument
	err := r.collection.FindOne(ctx, bson.M{"request_key": key}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "pending registration")
	}
	return documentToPending(&doc), nil
}

// Delete removes a handled request and reports whether it existed.
func (r *MongoPendingRegistrationRepository) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"request_key": key})
	if err != nil {
		return false, HandleMongoError(err, "pending registration")
	}
	return res.DeletedCount > 0, nil
}

// DeleteExpired removes requests created before the cutoff and returns how
// many were dropped. Used by the periodic cleanup task.
func (r *MongoPendingRegistrationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, HandleMongoError(err, "pending registration")
	}
	return res.DeletedCount, nil
}

func documentToPending(doc *pendingDocument) *domain.PendingRegistration {
	return &domain.PendingRegistration{
		RequestKey: doc.RequestKey,
		Registrant: domain.TelegramID(doc.TelegramID),
		Username:   doc.Username,
		Password:   doc.Password,
		Nickname:   doc.Nickname,
		SourceInfo: doc.SourceInfo,
		CreatedAt:  doc.CreatedAt,
	}
}
