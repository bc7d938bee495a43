package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Read when the key holds no artifact.
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore keeps cover images and book PDFs under opaque keys.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	// Delete removes the artifact; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
