package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a stored file does not exist.
var ErrObjectNotFound = errors.New("stored object not found")

// Object is an open stored file.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// FileStore is the contract resource uploads are persisted through.
type FileStore interface {
	SaveStream(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (*Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
