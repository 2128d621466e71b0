package storage

import (
	"sort"
	"strings"
	"time"

	"blogposts/storage/models"
)

// Timestamp returns the current time at the precision the stores persist.
func Timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NextUpdatedAt returns now unless it does not come after prev, in which case it
// returns prev plus one millisecond, so updatedAt always moves forward.
func NextUpdatedAt(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}

// SortPosts orders posts in place. posts must be in insertion order: it is the
// tie breaker, reversed for descending sorts. Unknown fields compare equal.
func SortPosts(posts []*models.Post, opts models.SortOptions) {
	asc := opts.Ascending()
	if !asc {
		for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
			posts[i], posts[j] = posts[j], posts[i]
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		c := compareField(posts[i], posts[j], opts.SortBy, asc)
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func compareField(a, b *models.Post, field string, asc bool) int {
	switch field {
	case models.FieldId:
		return strings.Compare(a.Id, b.Id)
	case models.FieldTitle:
		return strings.Compare(a.Title, b.Title)
	case models.FieldContent:
		return strings.Compare(a.Content, b.Content)
	case models.FieldAuthor:
		return strings.Compare(a.Author, b.Author)
	case models.FieldTags:
		return strings.Compare(tagsSortKey(a.Tags, asc), tagsSortKey(b.Tags, asc))
	case models.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case models.FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

// tagsSortKey follows document store array ordering: the smallest element for
// ascending sorts, the largest for descending ones.
func tagsSortKey(tags []string, asc bool) string {
	if len(tags) == 0 {
		return ""
	}
	key := tags[0]
	for _, t := range tags[1:] {
		if (asc && t < key) || (!asc && t > key) {
			key = t
		}
	}
	return key
}
