package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"blogposts/storage"
)

const s3Prefix = "exports/"

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Sink struct {
	client s3API
	bucket string
}

// NewS3Sink uses the default AWS credential chain (env, shared config, role).
func NewS3Sink(ctx context.Context, bucket string) (*S3Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %s %w", err.Error(), storage.UnavailableError)
	}
	return &S3Sink{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *S3Sink) put(ctx context.Context, key string, data []byte) error {
	contentType := "application/json"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %s %w", key, err.Error(), storage.UnavailableError)
	}
	return nil
}

func (s *S3Sink) Write(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s3Prefix, name)
	if err := s.put(ctx, key, data); err != nil {
		return "", err
	}
	if err := s.put(ctx, path.Join(s3Prefix, LatestName), data); err != nil {
		return "", err
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3Sink) Latest(ctx context.Context) ([]byte, error) {
	key := path.Join(s3Prefix, LatestName)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest export: %s %w", err.Error(), storage.UnavailableError)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest export: %s %w", err.Error(), storage.UnavailableError)
	}
	return body, nil
}
