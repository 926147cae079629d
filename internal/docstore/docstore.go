// Package docstore provides a minimal capability interface over a document
// database: find, insert, update, and delete against named databases and
// collections. Filters and patches use the bson query/update sublanguage
// (exact match on top-level and dotted fields, $elemMatch, $set, $push,
// $pull).
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by FindOne when no document matches the filter.
var ErrNotFound = errors.New("document not found")

// UpdateResult reports how many documents satisfied the filter and how many
// were actually changed by the patch.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

// Store is the document-store capability contract consumed by the rest of
// the service. There is one production implementation (MongoStore) and one
// in-memory implementation used by tests and local development.
type Store interface {
	FindOne(ctx context.Context, db, collection string, filter bson.M) (bson.M, error)
	FindMany(ctx context.Context, db, collection string, filter bson.M) ([]bson.M, error)
	InsertOne(ctx context.Context, db, collection string, document bson.M) (primitive.ObjectID, error)
	UpdateOne(ctx context.Context, db, collection string, filter, update bson.M) (UpdateResult, error)
	DeleteOne(ctx context.Context, db, collection string, filter bson.M) (DeleteResult, error)
}
