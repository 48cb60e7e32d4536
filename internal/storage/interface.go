package storage

import (
	"context"
	"io"
)

// ObjectStorage mirrors cached image files to an object store.
type ObjectStorage interface {
	// Upload stores an object under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Delete removes the object at key; a missing object is not an error
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for key, or "" when no public URL is configured
	GetURL(key string) string

	// Key maps a cache file name to its object key
	Key(name string) string
}
