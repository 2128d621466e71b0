package persistent_bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"blogposts/storage"
	"blogposts/storage/models"
)

const bucketPosts = "posts"

var _ storage.Storage = (*BoltStorage)(nil)

// record is the stored value; Seq keeps insertion order across the random ids.
type record struct {
	Seq  uint64       `json:"seq"`
	Post *models.Post `json:"post"`
}

type BoltStorage struct {
	db *bbolt.DB
}

func (s *BoltStorage) Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error) {
	if err := storage.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	post := draft.NewPost(uuid.New().String(), storage.Timestamp())
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return putRecord(b, &record{Seq: seq, Post: post})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.UnavailableError)
	}
	return post, nil
}

func (s *BoltStorage) Find(ctx context.Context, filter models.Filter, opts models.SortOptions) ([]*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	var records []record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("error deserializing post %s: %w", k, err)
			}
			if filter.Matches(r.Post) {
				records = append(records, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %s %w", err.Error(), storage.UnavailableError)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	posts := make([]*models.Post, 0, len(records))
	for _, r := range records {
		posts = append(posts, r.Post)
	}
	storage.SortPosts(posts, opts)
	return posts, nil
}

func (s *BoltStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	var post *models.Post
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		r, err := getRecord(b, id)
		if r != nil {
			post = r.Post
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error getting post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return post, nil
}

func (s *BoltStorage) UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error) {
	if err := storage.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	var post *models.Post
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		r, err := getRecord(b, id)
		if err != nil || r == nil {
			return err
		}
		if patch != nil {
			patch.Apply(r.Post)
		}
		r.Post.UpdatedAt = storage.NextUpdatedAt(storage.Timestamp(), r.Post.UpdatedAt)
		if err := putRecord(b, r); err != nil {
			return err
		}
		post = r.Post
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return post, nil
}

func (s *BoltStorage) DeleteById(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return models.DeleteResult{}, err
	}

	var res models.DeleteResult
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		if b.Get([]byte(id)) == nil {
			return nil
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		res.DeletedCount = 1
		return nil
	})
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("failed to delete post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return res, nil
}

func (s *BoltStorage) Close(ctx context.Context) error {
	return s.db.Close()
}

func getRecord(b *bbolt.Bucket, id string) (*record, error) {
	if id == "" {
		return nil, nil
	}
	v := b.Get([]byte(id))
	if v == nil {
		return nil, nil
	}
	var r record
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("error deserializing post: %w", err)
	}
	return &r, nil
}

func putRecord(b *bbolt.Bucket, r *record) error {
	v, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize post: %w", err)
	}
	if err := b.Put([]byte(r.Post.Id), v); err != nil {
		return fmt.Errorf("failed to put post in bucket: %w", err)
	}
	return nil
}

// OpenBoltStorage opens (or creates) the database file and its posts bucket.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt file: %s %w", err.Error(), storage.UnavailableError)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketPosts))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posts bucket: %s %w", err.Error(), storage.UnavailableError)
	}
	return &BoltStorage{db: db}, nil
}

func CreateBoltStorage(path string) storage.Storage {
	s, err := OpenBoltStorage(path)
	if err != nil {
		panic(err)
	}
	return s
}
