// Package mongodb implements the persistence layer over MongoDB collections.
package mongodb

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// HandleMongoError maps a MongoDB error to a domain error:
//   - nil when err == nil
//   - errs.ErrNotFound when no document matched
//   - errs.ErrAlreadyExists on a unique index violation
//   - a wrapped error otherwise
func HandleMongoError(err error, resourceType string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrAlreadyExists
	}

	return fmt.Errorf("failed to operate on %s: %w", resourceType, err)
}

// BaseDocument carries the shared timestamp fields of stored documents.
type BaseDocument struct {
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SetTimestamps stamps both fields; CreatedAt only when still zero.
func (d *BaseDocument) SetTimestamps() {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

// UpsertOptions returns the standard options for upsert writes.
func UpsertOptions() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetUpsert(true)
}

// SortByCreatedAsc returns find options sorted by creation time, oldest
// first.
func SortByCreatedAsc() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
}
