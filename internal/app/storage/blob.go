package storage

import (
	"context"
	"io"
	"time"
)

// BlobStore persists raw audio bytes. Locations are opaque keys; public access
// goes through short-lived signed URLs, never raw bucket URLs.
type BlobStore interface {
	// Upload stores the bytes and returns the location key.
	Upload(ctx context.Context, userID, filename, contentType string, r io.Reader, size int64) (string, error)

	// Fetch opens the stored object for reading.
	Fetch(ctx context.Context, location string) (io.ReadCloser, int64, error)

	// Remove deletes the object, used for rollback after a failed metadata
	// insert.
	Remove(ctx context.Context, location string) error

	// SignedURL issues a presigned download URL valid for ttl.
	SignedURL(ctx context.Context, location string, ttl time.Duration) (string, error)
}
