// Package storage abstracts the object store that holds asset binaries
// and generated previews.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// PutOptions carries optional metadata for an upload.
type PutOptions struct {
	ContentType string
}

// ObjectStore is the blob interface the asset pipeline writes through.
// The production implementation is MinIO; tests use the in-memory store.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	// PresignedURL returns a time-limited download URL for the object.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
