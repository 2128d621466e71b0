package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blogposts/storage"
	"blogposts/storage/models"
)

const postsCollection = "posts"

var _ storage.Storage = (*MongoStorage)(nil)

type Post struct {
	Id        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content,omitempty"`
	Author    string             `bson:"author,omitempty"`
	Tags      []string           `bson:"tags"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (p *Post) toModel() *models.Post {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Post{
		Id:        p.Id.Hex(),
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.Author,
		Tags:      tags,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

type MongoStorage struct {
	client *mongo.Client
	posts  *mongo.Collection
}

func (s *MongoStorage) Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error) {
	if err := storage.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	record := draft.NewPost("", storage.Timestamp())
	post := Post{
		Title:     record.Title,
		Content:   record.Content,
		Author:    record.Author,
		Tags:      record.Tags,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	res, err := s.posts.InsertOne(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.UnavailableError)
	}
	post.Id = res.InsertedID.(primitive.ObjectID)
	return post.toModel(), nil
}

func (s *MongoStorage) Find(ctx context.Context, filter models.Filter, sort models.SortOptions) ([]*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	if filter.MatchesNothing() {
		return make([]*models.Post, 0), nil
	}

	query := bson.M{}
	if filter.Author != nil {
		query["author"] = *filter.Author
	}
	if filter.Tag != nil {
		query["tags"] = *filter.Tag
	}

	opts := options.Find().SetSort(sortDocument(sort))
	cursor, err := s.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, findError(err)
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		if err := cursor.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Cursor closing failed")
		}
	}(cursor, ctx)

	posts := make([]*models.Post, 0)
	for cursor.Next(ctx) {
		var next Post
		if err := cursor.Decode(&next); err != nil {
			return nil, fmt.Errorf("decode error: %s %w", err.Error(), storage.InternalError)
		}
		posts = append(posts, next.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, findError(err)
	}
	return posts, nil
}

// Server error codes for a sort specification the server refuses, such as a
// key starting with '$' or an empty field path.
var badSortCodes = map[int32]bool{
	2:     true, // BadValue
	9:     true, // FailedToParse
	15974: true,
	15998: true,
	16410: true,
	31249: true,
}

func findError(err error) error {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && badSortCodes[cmdErr.Code] {
		return fmt.Errorf("invalid sort: %s %w", err.Error(), storage.ValidationError)
	}
	return fmt.Errorf("failed to find posts: %s %w", err.Error(), storage.UnavailableError)
}

// sortDocument maps a post field to its document key. Unknown fields are sorted
// by as-is; ties fall back to _id, which grows with insertion.
func sortDocument(sort models.SortOptions) bson.D {
	dir := -1
	if sort.Ascending() {
		dir = 1
	}
	key := sort.SortBy
	if key == models.FieldId {
		key = "_id"
	}
	if key == "_id" {
		return bson.D{{Key: "_id", Value: dir}}
	}
	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}}
}

func (s *MongoStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	postMongoId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var result Post
	err = s.posts.FindOne(ctx, bson.M{"_id": postMongoId}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return result.toModel(), nil
}

// UpdateById runs a single pipeline update so that the new updatedAt can be
// computed from the stored one: never earlier than one millisecond after it.
func (s *MongoStorage) UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error) {
	if err := storage.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	postMongoId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	set := bson.M{
		"updatedAt": bson.M{"$max": bson.A{
			storage.Timestamp(),
			bson.M{"$add": bson.A{"$updatedAt", 1}},
		}},
	}
	if patch != nil {
		// $literal keeps user values starting with "$" from being read as field paths.
		if patch.Title != nil {
			set["title"] = bson.M{"$literal": *patch.Title}
		}
		if patch.Content != nil {
			set["content"] = bson.M{"$literal": *patch.Content}
		}
		if patch.Author != nil {
			set["author"] = bson.M{"$literal": *patch.Author}
		}
		if patch.Tags != nil {
			tags := *patch.Tags
			if tags == nil {
				tags = []string{}
			}
			set["tags"] = bson.M{"$literal": tags}
		}
	}
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(false)
	var result Post
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": postMongoId}, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return result.toModel(), nil
}

func (s *MongoStorage) DeleteById(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return models.DeleteResult{}, err
	}
	postMongoId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.DeleteResult{DeletedCount: 0}, nil
	}

	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": postMongoId})
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("failed to delete post %s: %s %w", id, err.Error(), storage.UnavailableError)
	}
	return models.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ConnectMongoStorage connects, checks the server is reachable and makes sure
// the posts indexes exist.
func ConnectMongoStorage(ctx context.Context, dbUrl, dbName string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dbUrl))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %s %w", err.Error(), storage.UnavailableError)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %s %w", err.Error(), storage.UnavailableError)
	}
	posts := client.Database(dbName).Collection(postsCollection)
	if err := ensurePostsIndexes(ctx, posts); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &MongoStorage{
		client: client,
		posts:  posts,
	}, nil
}

func CreateMongoStorage(dbUrl, dbName string) storage.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := ConnectMongoStorage(ctx, dbUrl, dbName)
	if err != nil {
		panic(err)
	}
	return s
}
