// Package storage provides the object-storage collaborator pipeline stages
// write payloads through.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound indicates a download or delete target does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore stores opaque objects in named buckets.
type BlobStore interface {
	// Upload stores size bytes from r under bucket/object
	Upload(ctx context.Context, bucket, object string, r io.Reader, size int64) error

	// Download returns the full content of bucket/object
	Download(ctx context.Context, bucket, object string) ([]byte, error)

	// Delete removes bucket/object
	Delete(ctx context.Context, bucket, object string) error
}
