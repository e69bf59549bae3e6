package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"clicksprout/internal/config"
	"clicksprout/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var tables = []string{
	store.TablePosts,
	store.TableCampaigns,
	store.TableContent,
	store.TableTemplates,
	store.TableAnalytics,
	store.TableAlerts,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  create-indexes  - Create the indexes the repositories filter on")
		fmt.Println("  verify          - Print document and index counts per collection")
		fmt.Println("  backfill-posts  - Fill max_retries and hashtags on posts stored without them")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)

	switch command {
	case "create-indexes":
		if err := config.CreateIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "verify":
		if err := verify(ctx, db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}

	case "backfill-posts":
		if err := backfillPosts(ctx, db, cfg.DefaultMaxRetries); err != nil {
			log.Fatalf("Backfill failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func verify(ctx context.Context, db *mongo.Database) error {
	fmt.Printf("Verifying database %s\n", db.Name())

	for _, name := range tables {
		coll := db.Collection(name)
		count, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("failed to count documents in %s: %v", name, err)
		}

		cursor, err := coll.Indexes().List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list indexes for %s: %v", name, err)
		}
		var indexes []bson.M
		if err := cursor.All(ctx, &indexes); err != nil {
			return err
		}
		fmt.Printf("  %-15s %6d documents, %d indexes\n", name, count, len(indexes))
	}
	return nil
}

// backfillPosts repairs posts written before max_retries and hashtags were
// always set
func backfillPosts(ctx context.Context, db *mongo.Database, maxRetries int) error {
	posts := db.Collection(store.TablePosts)

	res, err := posts.UpdateMany(ctx,
		bson.M{"max_retries": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"max_retries": maxRetries}})
	if err != nil {
		return fmt.Errorf("failed to backfill max_retries: %v", err)
	}
	fmt.Printf("max_retries set on %d posts\n", res.ModifiedCount)

	res, err = posts.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"hashtags": nil}, bson.M{"hashtags": bson.M{"$exists": false}}}},
		bson.M{"$set": bson.M{"hashtags": bson.A{}}})
	if err != nil {
		return fmt.Errorf("failed to backfill hashtags: %v", err)
	}
	fmt.Printf("hashtags set on %d posts\n", res.ModifiedCount)
	return nil
}
