// Package storage defines the blob store contract for console artifacts:
// reseller logos, prepaid card batch exports, and rendered invoice PDFs.
// Concrete implementations live in the gcs, local, and memory
// subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes immutable artifacts and returns a URI the console can
// hand to its callers. Implementations overwrite silently; paths are the
// caller's namespace discipline.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
