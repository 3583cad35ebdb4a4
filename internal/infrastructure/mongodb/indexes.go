// Package mongodb provides MongoDB infrastructure components including index
// management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names as constants for consistency.
const (
	CollectionRegistrations        = "registrations"
	CollectionBans                 = "bans"
	CollectionPendingRegistrations = "pending_registrations"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// CreateAllIndexes creates all necessary indexes for the application.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	for _, idx := range GetAllIndexDefinitions() {
		coll := db.Collection(idx.Collection)
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options,
		}

		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on collection %s: %w", idx.Collection, err)
		}
	}
	return nil
}

// GetAllIndexDefinitions returns all index definitions for all collections.
func GetAllIndexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		{
			// One registration per Telegram user.
			Collection: CollectionRegistrations,
			Keys:       bson.D{{Key: "telegram_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_registrations_telegram_id_unique"),
		},
		{
			// One registration per voice account; also serves the reverse
			// lookup on removal events.
			Collection: CollectionRegistrations,
			Keys:       bson.D{{Key: "voice_username", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_registrations_voice_username_unique"),
		},
		{
			Collection: CollectionBans,
			Keys:       bson.D{{Key: "telegram_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_bans_telegram_id_unique"),
		},
		{
			Collection: CollectionPendingRegistrations,
			Keys:       bson.D{{Key: "request_key", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_pending_request_key_unique"),
		},
		{
			// Serves the periodic expired-request cleanup.
			Collection: CollectionPendingRegistrations,
			Keys:       bson.D{{Key: "created_at", Value: 1}},
			Options:    options.Index().SetName("idx_pending_created_at"),
		},
	}
}
