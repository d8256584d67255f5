package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements BlobStore on the local filesystem, one directory per
// bucket under a base path.
type LocalStore struct {
	base string
}

// NewLocalStore creates a store rooted at base, creating it if needed.
func NewLocalStore(base string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{base: base}, nil
}

func (s *LocalStore) path(bucket, object string) (string, error) {
	if strings.Contains(bucket, "..") || strings.Contains(object, "..") {
		return "", fmt.Errorf("invalid bucket or object name")
	}
	dir := filepath.Join(s.base, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}
	return filepath.Join(dir, object), nil
}

// Upload stores size bytes from r under bucket/object
func (s *LocalStore) Upload(_ context.Context, bucket, object string, r io.Reader, size int64) error {
	path, err := s.path(bucket, object)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object %s/%s: %w", bucket, object, err)
	}
	defer f.Close()

	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Download returns the full content of bucket/object
func (s *LocalStore) Download(_ context.Context, bucket, object string) ([]byte, error) {
	path, err := s.path(bucket, object)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Delete removes bucket/object
func (s *LocalStore) Delete(_ context.Context, bucket, object string) error {
	path, err := s.path(bucket, object)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, object)
		}
		return fmt.Errorf("delete object %s/%s: %w", bucket, object, err)
	}
	return nil
}
