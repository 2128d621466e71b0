package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrTitleRequired    = errors.New("`title` is required")
	ErrInvalidSortOrder = errors.New("invalid sort order")
)

type Post struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Author    string    `json:"author,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PostDraft holds the caller-supplied fields of a post that does not exist yet.
type PostDraft struct {
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content,omitempty"`
	Author  string   `json:"author,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	if fe.Field() == "title" {
		return ErrTitleRequired
	}
	return fmt.Errorf("`%s` failed on the '%s' rule", fe.Field(), fe.Tag())
}

func (d *PostDraft) Validate() error {
	return validationError(validate.Struct(d))
}

// NewPost builds the record a store persists for the draft.
// Tags are never nil so that every record serializes them as an array.
func (d *PostDraft) NewPost(id string, now time.Time) *Post {
	tags := make([]string, len(d.Tags))
	copy(tags, d.Tags)
	return &Post{
		Id:        id,
		Title:     d.Title,
		Content:   d.Content,
		Author:    d.Author,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PostPatch is a partial update. A nil field is left untouched.
type PostPatch struct {
	Title   *string   `json:"title,omitempty" validate:"omitnil,min=1"`
	Content *string   `json:"content,omitempty"`
	Author  *string   `json:"author,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

func (p *PostPatch) Validate() error {
	return validationError(validate.Struct(p))
}

// Apply copies the supplied fields onto post. Timestamps are the caller's job.
func (p *PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Author != nil {
		post.Author = *p.Author
	}
	if p.Tags != nil {
		tags := make([]string, len(*p.Tags))
		copy(tags, *p.Tags)
		post.Tags = tags
	}
}

// Filter selects posts. Nil fields match everything.
type Filter struct {
	Author *string
	Tag    *string
}

// MatchesNothing is true for an empty author: a post without an author has no
// author field to compare, so it never matches one.
func (f Filter) MatchesNothing() bool {
	return f.Author != nil && *f.Author == ""
}

func (f Filter) Matches(p *Post) bool {
	if f.MatchesNothing() {
		return false
	}
	if f.Author != nil && p.Author != *f.Author {
		return false
	}
	if f.Tag != nil && !p.HasTag(*f.Tag) {
		return false
	}
	return true
}

type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

// ParseSortOrder accepts the client spellings of a direction.
// An empty string means the default, descending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(s) {
	case "", "descending", "desc", "-1":
		return Descending, nil
	case "ascending", "asc", "1":
		return Ascending, nil
	}
	return "", ErrInvalidSortOrder
}

const (
	FieldId        = "id"
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldAuthor    = "author"
	FieldTags      = "tags"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"

	DefaultSortBy = FieldCreatedAt
)

type SortOptions struct {
	SortBy    string
	SortOrder SortOrder
}

func (o SortOptions) Ascending() bool {
	return o.SortOrder == Ascending
}

type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}
