package store

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoEngine maps tables onto collections of one database
type MongoEngine struct {
	db *mongo.Database
}

func NewMongoEngine(db *mongo.Database) *MongoEngine {
	return &MongoEngine{db: db}
}

func (e *MongoEngine) Select(ctx context.Context, table string, filter Filter) ([]Document, error) {
	cursor, err := e.db.Collection(table).Find(ctx, bson.M(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (e *MongoEngine) Insert(ctx context.Context, table string, doc Document) (Document, error) {
	stored, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	if id, ok := stored["_id"].(string); !ok || id == "" {
		stored["_id"] = uuid.NewString()
	}
	if _, err := e.db.Collection(table).InsertOne(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (e *MongoEngine) Update(ctx context.Context, table string, filter Filter, patch Document) error {
	set := Document{}
	for k, v := range patch {
		if k != "_id" {
			set[k] = v
		}
	}
	_, err := e.db.Collection(table).UpdateMany(ctx, bson.M(filter), bson.M{"$set": set})
	return err
}

func (e *MongoEngine) Delete(ctx context.Context, table string, filter Filter) (bool, error) {
	res, err := e.db.Collection(table).DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
