// Package export dumps every post, newest first, as one JSON document and hands
// it to a Sink.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"blogposts/service"
	"blogposts/storage"
	"blogposts/storage/models"
)

const LatestName = "latest.json"

type Sink interface {
	// Write stores data under name and also makes it the latest export.
	Write(ctx context.Context, name string, data []byte) (string, error)
	// Latest returns nil without an error when nothing was exported yet.
	Latest(ctx context.Context) ([]byte, error)
}

type PostLister interface {
	ListAllPosts(ctx context.Context, opts service.ListOptions) ([]*models.Post, error)
}

type Result struct {
	Location   string    `json:"location"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exportedAt"`
}

func FileName(at time.Time) string {
	return fmt.Sprintf("posts-%d.json", at.Unix())
}

func Run(ctx context.Context, posts PostLister, sink Sink) (Result, error) {
	all, err := posts.ListAllPosts(ctx, service.ListOptions{
		SortBy:    models.FieldCreatedAt,
		SortOrder: string(models.Descending),
	})
	if err != nil {
		return Result{}, err
	}
	data, err := json.Marshal(all)
	if err != nil {
		return Result{}, fmt.Errorf("failed to dump posts to json: %s %w", err.Error(), storage.InternalError)
	}

	now := storage.Timestamp()
	location, err := sink.Write(ctx, FileName(now), data)
	if err != nil {
		return Result{}, err
	}
	log.Info().Str("location", location).Int("count", len(all)).Msg("Exported posts")
	return Result{Location: location, Count: len(all), ExportedAt: now}, nil
}
