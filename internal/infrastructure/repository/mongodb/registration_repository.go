package mongodb

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// registrationDocument is the stored form of a domain.Registration.
type registrationDocument struct {
	TelegramID    int64  `bson:"telegram_id"`
	VoiceUsername string `bson:"voice_username"`
	BaseDocument  `bson:",inline"`
}

// MongoRegistrationRepository persists Telegram-to-voice-account links.
type MongoRegistrationRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// RegistrationRepoOption configures MongoRegistrationRepository.
type RegistrationRepoOption func(*MongoRegistrationRepository)

// WithRegistrationRepoLogger sets the repository logger.
func WithRegistrationRepoLogger(logger *slog.Logger) RegistrationRepoOption {
	return func(r *MongoRegistrationRepository) {
		r.logger = logger
	}
}

// NewMongoRegistrationRepository creates a registration repository over the
// given collection.
func NewMongoRegistrationRepository(collection *mongo.Collection, opts ...RegistrationRepoOption) *MongoRegistrationRepository {
	r := &MongoRegistrationRepository{
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add stores a new registration. A second registration for the same
// Telegram user fails with errs.ErrAlreadyExists.
func (r *MongoRegistrationRepository) Add(ctx context.Context, registrant domain.TelegramID, voiceUsername string) error {
	if voiceUsername == "" {
		return errs.ErrInvalidInput
	}

	doc := registrationDocument{
		TelegramID:    registrant.Int64(),
		VoiceUsername: voiceUsername,
	}
	doc.SetTimestamps()

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			r.logger.ErrorContext(ctx, "failed to insert registration",
				slog.Int64("telegram_id", registrant.Int64()),
				slog.String("error", err.Error()),
			)
		}
		return HandleMongoError(err, "registration")
	}
	return nil
}

// IsRegistered reports whether the Telegram user already has an account.
func (r *MongoRegistrationRepository) IsRegistered(ctx context.Context, registrant domain.TelegramID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"telegram_id": registrant.Int64()})
	if err != nil {
		return false, HandleMongoError(err, "registration")
	}
	return count > 0, nil
}

// FindByTelegramID returns the registration of a Telegram user.
func (r *MongoRegistrationRepository) FindByTelegramID(ctx context.Context, registrant domain.TelegramID) (*domain.Registration, error) {
	var doc registrationDocument
	err := r.collection.FindOne(ctx, bson.M{"telegram_id": registrant.Int64()}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "registration")
	}
	return documentToRegistration(&doc), nil
}

// FindByVoiceUsername returns the registration owning a voice account.
func (r *MongoRegistrationRepository) FindByVoiceUsername(ctx context.Context, voiceUsername string) (*domain.Registration, error) {
	if voiceUsername == "" {
		return nil, errs.ErrInvalidInput
	}

	var doc registrationDocument
	err := r.collection.FindOne(ctx, bson.M{"voice_username": voiceUsername}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find registration by voice username",
				slog.String("voice_username", voiceUsername),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "registration")
	}
	return documentToRegistration(&doc), nil
}

// Delete removes the registration of a Telegram user and reports whether one
// existed.
func (r *MongoRegistrationRepository) Delete(ctx context.Context, registrant domain.TelegramID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"telegram_id": registrant.Int64()})
	if err != nil {
		return false, HandleMongoError(err, "registration")
	}
	return res.DeletedCount > 0, nil
}

// List returns every registration, oldest first.
func (r *MongoRegistrationRepository) List(ctx context.Context) ([]domain.Registration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, SortByCreatedAsc())
	if err != nil {
		return nil, HandleMongoError(err, "registration")
	}
	defer cursor.Close(ctx)

	var registrations []domain.Registration
	for cursor.Next(ctx) {
		var doc registrationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, HandleMongoError(err, "registration")
		}
		registrations = append(registrations, *documentToRegistration(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, HandleMongoError(err, "registration")
	}
	return registrations, nil
}

func documentToRegistration(doc *registrationDocument) *domain.Registration {
	return &domain.Registration{
		TelegramID:    domain.TelegramID(doc.TelegramID),
		VoiceUsername: doc.VoiceUsername,
		CreatedAt:     doc.CreatedAt,
	}
}
