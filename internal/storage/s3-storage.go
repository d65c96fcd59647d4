package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type s3Storage struct {
	client *minio.Client
	region string

	mu      sync.Mutex
	buckets map[string]bool
}

// NewS3Storage connects to an S3-compatible endpoint. Containers map to buckets.
func NewS3Storage(cfg *config.Config) (Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &s3Storage{
		client:  client,
		region:  cfg.S3Region,
		buckets: make(map[string]bool),
	}, nil
}

// ensureBucket creates the bucket on first write to it.
func (s *s3Storage) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	s.buckets[bucket] = true
	return nil
}

func (s *s3Storage) Upload(ctx context.Context, loc partition.Location, data []byte, contentType string) error {
	if err := s.ensureBucket(ctx, loc.Container); err != nil {
		return err
	}

	reader := bytes.NewReader(data)

	_, err := s.client.PutObject(
		ctx,
		loc.Container,
		loc.Path,
		reader,
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to upload to %s: %w", loc, err)
	}

	return nil
}

func (s *s3Storage) Download(ctx context.Context, loc partition.Location) ([]byte, error) {
	object, err := s.client.GetObject(ctx, loc.Container, loc.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(loc, err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(object)
	if err != nil {
		return nil, s.translate(loc, err)
	}

	return buf.Bytes(), nil
}

func (s *s3Storage) Delete(ctx context.Context, loc partition.Location) error {
	err := s.client.RemoveObject(ctx, loc.Container, loc.Path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", loc, err)
	}

	return nil
}

func (s *s3Storage) List(ctx context.Context, container, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, container, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			if isMissing(obj.Err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list %s/%s: %w", container, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *s3Storage) translate(loc partition.Location, err error) error {
	if isMissing(err) {
		return fmt.Errorf("%s: %w", loc, ErrNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", loc, err)
}

func isMissing(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
