package persistent_postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blogposts/storage"
	"blogposts/storage/models"
)

var _ storage.Storage = (*PostgresStorage)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		seq BIGSERIAL NOT NULL,
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL CHECK (title <> ''),
		content TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_tags_idx ON posts USING GIN (tags)`,
}

// sortColumns maps post fields to ORDER BY expressions. Fields missing here
// order by insertion sequence only.
var sortColumns = map[string]string{
	models.FieldId:        `id COLLATE "C"`,
	models.FieldTitle:     `title COLLATE "C"`,
	models.FieldContent:   `content COLLATE "C"`,
	models.FieldAuthor:    `author COLLATE "C"`,
	models.FieldTags:      `tags`,
	models.FieldCreatedAt: `created_at`,
	models.FieldUpdatedAt: `updated_at`,
}

const postColumns = `id, title, content, author, tags, created_at, updated_at`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	if err := row.Scan(&p.Id, &p.Title, &p.Content, &p.Author, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *PostgresStorage) Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error) {
	if err := storage.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	post := draft.NewPost(uuid.New().String(), storage.Timestamp())
	const q = `
	INSERT INTO posts (` + postColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := s.pool.Exec(ctx, q, post.Id, post.Title, post.Content, post.Author, post.Tags, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.UnavailableError)
	}
	return post, nil
}

func (s *PostgresStorage) Find(ctx context.Context, filter models.Filter, sort models.SortOptions) ([]*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	if filter.MatchesNothing() {
		return make([]*models.Post, 0), nil
	}

	q := `SELECT ` + postColumns + ` FROM posts WHERE TRUE`
	var args []any
	if filter.Author != nil {
		args = append(args, *filter.Author)
		q += fmt.Sprintf(` AND author = $%d`, len(args))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		q += fmt.Sprintf(` AND $%d = ANY(tags)`, len(args))
	}
	q += orderBy(sort)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %s %w", err.Error(), storage.UnavailableError)
	}
	defer rows.Close()

	posts := make([]*models.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %s %w", err.Error(), storage.InternalError)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts: %s %w", err.Error(), storage.UnavailableError)
	}
	return posts, nil
}

func orderBy(sort models.SortOptions) string {
	dir := "DESC"
	if sort.Ascending() {
		dir = "ASC"
	}
	if col, ok := sortColumns[sort.SortBy]; ok {
		return fmt.Sprintf(` ORDER BY %s %s, seq %s`, col, dir, dir)
	}
	return fmt.Sprintf(` ORDER BY seq %s`, dir)
}

func (s *PostgresStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	const q = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	p, err := scanPost(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return p, nil
}

// UpdateById replaces only the non-NULL arguments. updated_at moves to now, or one
// millisecond past its stored value when the clock has not advanced.
func (s *PostgresStorage) UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error) {
	if err := storage.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	if patch == nil {
		patch = &models.PostPatch{}
	}

	var tags any
	if patch.Tags != nil {
		t := *patch.Tags
		if t == nil {
			t = []string{}
		}
		tags = t
	}
	const q = `
	UPDATE posts SET
		title = COALESCE($2, title),
		content = COALESCE($3, content),
		author = COALESCE($4, author),
		tags = COALESCE($5::text[], tags),
		updated_at = GREATEST($6, updated_at + interval '1 millisecond')
	WHERE id = $1
	RETURNING ` + postColumns
	p, err := scanPost(s.pool.QueryRow(ctx, q, id, patch.Title, patch.Content, patch.Author, tags, storage.Timestamp()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return p, nil
}

func (s *PostgresStorage) DeleteById(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return models.DeleteResult{}, err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("failed to delete post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return models.DeleteResult{DeletedCount: tag.RowsAffected()}, nil
}

func (s *PostgresStorage) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// ConnectPostgresStorage opens a pool and creates the posts table if needed.
func ConnectPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %s %w", err.Error(), storage.ClientError)
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %s %w", err.Error(), storage.UnavailableError)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %s %w", err.Error(), storage.UnavailableError)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure schema: %s %w", err.Error(), storage.UnavailableError)
		}
	}
	return &PostgresStorage{pool: pool}, nil
}

func CreatePostgresStorage(dsn string) storage.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := ConnectPostgresStorage(ctx, dsn)
	if err != nil {
		panic(err)
	}
	return s
}
