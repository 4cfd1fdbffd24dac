// Package storage defines the object store used to persist checkpoints and
// compiled corpora. Implementations live in the local, memory, and gcs
// subpackages so a run can target the filesystem or a bucket with the same code.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads and writes whole objects by path.
type ObjectStore interface {
	// PutObject replaces the object at path and returns a URI describing where it landed.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the full object contents or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
