package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogposts/service"
	"blogposts/storage"
	"blogposts/storage/in_memory"
	"blogposts/storage/models"
)

func TestRunWritesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := service.NewPostService(in_memory.CreateInMemoryStorage())
	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.CreatePost(ctx, models.PostDraft{Title: title})
		require.NoError(t, err)
	}

	dir := t.TempDir()
	sink := NewFileSink(dir)
	res, err := Run(ctx, svc, sink)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, filepath.Join(dir, FileName(res.ExportedAt)), res.Location)

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	var exported []models.Post
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Len(t, exported, 3)
	for i := 1; i < len(exported); i++ {
		assert.False(t, exported[i].CreatedAt.After(exported[i-1].CreatedAt))
	}

	latest, err := sink.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, latest)
}

func TestRunEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc := service.NewPostService(in_memory.CreateInMemoryStorage())
	sink := NewFileSink(t.TempDir())

	res, err := Run(ctx, svc, sink)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)

	latest, err := sink.Latest(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(latest))
}

func TestFileSinkLatestMissing(t *testing.T) {
	latest, err := NewFileSink(filepath.Join(t.TempDir(), "nothing")).Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := service.NewPostService(in_memory.CreateInMemoryStorage())

	_, err := Run(ctx, svc, NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, storage.UnavailableError)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type failingS3 struct{ fakeS3 }

func (f *failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("connection refused")
}

func TestS3Sink(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	sink := &S3Sink{client: client, bucket: "blog"}

	latest, err := sink.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	location, err := sink.Write(ctx, "posts-1.json", []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "s3://blog/exports/posts-1.json", location)
	assert.Equal(t, "application/json", client.types["exports/posts-1.json"])
	assert.Contains(t, client.objects, "exports/latest.json")

	latest, err = sink.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(latest))
}

func TestS3SinkUnavailable(t *testing.T) {
	sink := &S3Sink{client: &failingS3{}, bucket: "blog"}
	_, err := sink.Write(context.Background(), "posts-1.json", []byte(`[]`))
	require.ErrorIs(t, err, storage.UnavailableError)
}
