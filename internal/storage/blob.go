package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore holds activity media (audio, video, images).
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(key string) string
}
