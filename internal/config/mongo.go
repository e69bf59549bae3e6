package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := CreateIndexes(ctx, client.Database(cfg.DBName)); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// CreateIndexes declares the lookups the repositories filter on
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"posts": {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "campaign_id", Value: 1}}},
			{Keys: bson.D{{Key: "scheduled_time", Value: 1}}},
		},
		"campaigns": {
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"content": {
			{Keys: bson.D{{Key: "url", Value: 1}}},
		},
		"templates": {
			{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "category", Value: 1}}},
		},
		"post_analytics": {
			{Keys: bson.D{{Key: "post_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "platform", Value: 1}}},
		},
		"system_alerts": {
			{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "platform", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", collection, err)
		}
	}
	return nil
}
