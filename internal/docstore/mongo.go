package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store against a MongoDB deployment.
type MongoStore struct {
	client *mongo.Client
}

// Connect opens a client for the given URL and verifies connectivity.
func Connect(ctx context.Context, mongoURL string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{client: client}, nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client) *MongoStore {
	return &MongoStore{client: client}
}

func (s *MongoStore) collection(db, name string) *mongo.Collection {
	return s.client.Database(db).Collection(name)
}

func (s *MongoStore) FindOne(ctx context.Context, db, collection string, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := s.collection(db, collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) FindMany(ctx context.Context, db, collection string, filter bson.M) ([]bson.M, error) {
	cursor, err := s.collection(db, collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) InsertOne(ctx context.Context, db, collection string, document bson.M) (primitive.ObjectID, error) {
	result, err := s.collection(db, collection).InsertOne(ctx, document)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert one: %w", err)
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("insert one: unexpected id type %T", result.InsertedID)
	}
	return id, nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, db, collection string, filter, update bson.M) (UpdateResult, error) {
	result, err := s.collection(db, collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update one: %w", err)
	}
	return UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, db, collection string, filter bson.M) (DeleteResult, error) {
	result, err := s.collection(db, collection).DeleteOne(ctx, filter)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete one: %w", err)
	}
	return DeleteResult{DeletedCount: result.DeletedCount}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
