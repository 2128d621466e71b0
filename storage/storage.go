package storage

import (
	"context"
	"errors"
	"fmt"

	"blogposts/storage/models"
)

var (
	InternalError    = errors.New("storage internal error")
	ClientError      = errors.New("storage client error")
	ValidationError  = fmt.Errorf("%w.validation", ClientError)
	UnavailableError = fmt.Errorf("%w.unavailable", InternalError)
)

// Storage is the post store contract shared by every backend.
// Lookups of unknown ids are not errors: FindById and UpdateById return a nil post
// and DeleteById reports zero deletions.
type Storage interface {
	Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error)
	Find(ctx context.Context, filter models.Filter, sort models.SortOptions) ([]*models.Post, error)
	FindById(ctx context.Context, id string) (*models.Post, error)
	UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error)
	DeleteById(ctx context.Context, id string) (models.DeleteResult, error)
	Close(ctx context.Context) error
}

func ValidateDraft(draft *models.PostDraft) error {
	if draft == nil {
		return fmt.Errorf("%s %w", models.ErrTitleRequired, ValidationError)
	}
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("post validation failed: %s %w", err.Error(), ValidationError)
	}
	return nil
}

func ValidatePatch(patch *models.PostPatch) error {
	if patch == nil {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("post validation failed: %s %w", err.Error(), ValidationError)
	}
	return nil
}

// CheckContext reports a cancelled or expired context as an unavailable store,
// before the caller touches any data.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err)
	}
	return nil
}

func Unavailable(err error) error {
	return fmt.Errorf("%s %w", err.Error(), UnavailableError)
}
