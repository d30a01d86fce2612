package core

import (
	"context"
	"io"
)

// FileStore persists uploaded files and returns their public URL.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	Delete(ctx context.Context, key string) error
}
