package persistent

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/bsonx"
)

func ensurePostsIndexes(ctx context.Context, posts *mongo.Collection) error {
	indexModels := []mongo.IndexModel{
		{
			Keys: bsonx.Doc{
				{Key: "createdAt", Value: bsonx.Int32(-1)},
			},
		},
		{
			Keys: bsonx.Doc{
				{Key: "author", Value: bsonx.Int32(1)},
				{Key: "createdAt", Value: bsonx.Int32(-1)},
			},
		},
		{
			Keys: bsonx.Doc{
				{Key: "tags", Value: bsonx.Int32(1)},
				{Key: "createdAt", Value: bsonx.Int32(-1)},
			},
		},
	}
	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)

	_, err := posts.Indexes().CreateMany(ctx, indexModels, opts)
	if err != nil {
		return fmt.Errorf("failed to ensure indexes %w", err)
	}
	return nil
}
