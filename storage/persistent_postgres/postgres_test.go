package persistent_postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"blogposts/storage"
	"blogposts/storage/models"
	"blogposts/storage/storagetest"
)

func TestPostgresStorage(t *testing.T) {
	dsn, found := os.LookupEnv("POSTGRES_URL")
	if !found {
		t.Skip("'POSTGRES_URL' not specified")
	}

	suite.Run(t, &storagetest.StorageSuite{
		NewStorage: func(t *testing.T) storage.Storage {
			ctx := context.Background()
			s, err := ConnectPostgresStorage(ctx, dsn)
			require.NoError(t, err)
			_, err = s.pool.Exec(ctx, `TRUNCATE posts`)
			require.NoError(t, err)
			return s
		},
	})
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name     string
		sort     models.SortOptions
		expected string
	}{
		{
			name:     "default",
			sort:     models.SortOptions{SortBy: "createdAt", SortOrder: models.Descending},
			expected: ` ORDER BY created_at DESC, seq DESC`,
		},
		{
			name:     "text column",
			sort:     models.SortOptions{SortBy: "title", SortOrder: models.Ascending},
			expected: ` ORDER BY title COLLATE "C" ASC, seq ASC`,
		},
		{
			name:     "unknown field",
			sort:     models.SortOptions{SortBy: "title; DROP TABLE posts", SortOrder: models.Ascending},
			expected: ` ORDER BY seq ASC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, orderBy(tt.sort))
		})
	}
}
