package persistent_redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"blogposts/storage"
	"blogposts/storage/models"
)

const (
	postKeyPrefix = "posts:"
	indexKey      = "posts.index"
	sequenceKey   = "posts.seq"

	maxUpdateAttempts = 10
)

var _ storage.Storage = (*RedisStorage)(nil)

// RedisStorage keeps every post as a JSON value and an insertion-ordered index of
// ids in a sorted set. Filtering and sorting happen in process.
type RedisStorage struct {
	client *redis.Client
}

func postKey(id string) string {
	return postKeyPrefix + id
}

func (s *RedisStorage) Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error) {
	if err := storage.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	post := draft.NewPost(uuid.New().String(), storage.Timestamp())
	j, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("failed to dump post to json: %s %w", err.Error(), storage.InternalError)
	}
	seq, err := s.client.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate post sequence: %s %w", err.Error(), storage.UnavailableError)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, postKey(post.Id), j, 0)
		pipe.ZAdd(ctx, indexKey, &redis.Z{Score: float64(seq), Member: post.Id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save post to redis: %s %w", err.Error(), storage.UnavailableError)
	}
	return post, nil
}

func (s *RedisStorage) Find(ctx context.Context, filter models.Filter, sort models.SortOptions) ([]*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read post index: %s %w", err.Error(), storage.UnavailableError)
	}
	posts := make([]*models.Post, 0, len(ids))
	if len(ids) == 0 {
		return posts, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, postKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get posts from redis: %s %w", err.Error(), storage.UnavailableError)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between reading the index and the values
			continue
		}
		var p models.Post
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode error: %s %w", err.Error(), storage.InternalError)
		}
		if filter.Matches(&p) {
			posts = append(posts, &p)
		}
	}

	storage.SortPosts(posts, sort)
	return posts, nil
}

func (s *RedisStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	return getPost(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getPost(ctx context.Context, c getter, id string) (*models.Post, error) {
	val, err := c.Get(ctx, postKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post %s from redis: %s %w", id, err.Error(), storage.UnavailableError)
	}
	var p models.Post
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode error: %s %w", err.Error(), storage.InternalError)
	}
	return &p, nil
}

// UpdateById is an optimistic read-modify-write on the post key, retried when a
// concurrent writer touches the key first.
func (s *RedisStorage) UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error) {
	if err := storage.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	key := postKey(id)
	var updated *models.Post
	txf := func(tx *redis.Tx) error {
		post, err := getPost(ctx, tx, id)
		if err != nil || post == nil {
			updated = nil
			return err
		}
		if patch != nil {
			patch.Apply(post)
		}
		post.UpdatedAt = storage.NextUpdatedAt(storage.Timestamp(), post.UpdatedAt)
		j, err := json.Marshal(post)
		if err != nil {
			return fmt.Errorf("failed to dump post to json: %s %w", err.Error(), storage.InternalError)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, j, 0)
			return nil
		})
		if err == nil {
			updated = post
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, storage.InternalError) || errors.Is(err, storage.ClientError) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return nil, fmt.Errorf("failed to update post %s: too many concurrent writers %w", id, storage.UnavailableError)
}

func (s *RedisStorage) DeleteById(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return models.DeleteResult{}, err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, postKey(id))
		pipe.ZRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("failed to remove post %s from redis: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return models.DeleteResult{DeletedCount: del.Val()}, nil
}

func (s *RedisStorage) Close(ctx context.Context) error {
	return s.client.Close()
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func CreateRedisStorage(redisUrl string) storage.Storage {
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisUrl,
	})
	return NewRedisStorage(redisClient)
}
