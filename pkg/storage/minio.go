package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore implements BlobStore over an S3-compatible MinIO endpoint.
type MinIOStore struct {
	client *minio.Client
}

// MinIOConfig is the connection configuration for a MinIOStore.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// NewMinIOStore connects to a MinIO endpoint.
func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to minio %q: %w", cfg.Endpoint, err)
	}
	return &MinIOStore{client: client}, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}

// Upload stores size bytes from r under bucket/object
func (s *MinIOStore) Upload(ctx context.Context, bucket, object string, r io.Reader, size int64) error {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	if _, err := s.client.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Download returns the full content of bucket/object
func (s *MinIOStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, object, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("download %s/%s: %w", bucket, object, err)
	}
	return buf.Bytes(), nil
}

// Delete removes bucket/object
func (s *MinIOStore) Delete(ctx context.Context, bucket, object string) error {
	if err := s.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, object, err)
	}
	return nil
}
