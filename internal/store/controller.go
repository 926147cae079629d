// Package store holds the data models and the repository facade that
// decouples callers from the concrete document store.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"secularreview/api/internal/docstore"
)

const (
	ChaptersCollection = "chapters"
	UsersCollection    = "users"
)

// Controller forwards typed calls to the document store adapter, fixing the
// database name so callers only name collections.
type Controller struct {
	store  docstore.Store
	dbName string
}

func NewController(store docstore.Store, dbName string) *Controller {
	return &Controller{store: store, dbName: dbName}
}

func (c *Controller) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	return c.store.FindOne(ctx, c.dbName, collection, filter)
}

func (c *Controller) FindMany(ctx context.Context, collection string, filter bson.M) ([]bson.M, error) {
	return c.store.FindMany(ctx, c.dbName, collection, filter)
}

func (c *Controller) InsertOne(ctx context.Context, collection string, document bson.M) (primitive.ObjectID, error) {
	return c.store.InsertOne(ctx, c.dbName, collection, document)
}

func (c *Controller) UpdateOne(ctx context.Context, collection string, filter, update bson.M) (docstore.UpdateResult, error) {
	return c.store.UpdateOne(ctx, c.dbName, collection, filter, update)
}

func (c *Controller) DeleteOne(ctx context.Context, collection string, filter bson.M) (docstore.DeleteResult, error) {
	return c.store.DeleteOne(ctx, c.dbName, collection, filter)
}
