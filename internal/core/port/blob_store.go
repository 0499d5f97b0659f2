package port

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Open when nothing is stored at the path.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore keeps uploaded files addressed by a relative path.
type BlobStore interface {
	// Save stores r under folder with a generated file name and returns its relative path.
	Save(ctx context.Context, r io.Reader, folder string, ext string) (string, error)
	// Delete removes the blob; it reports false when nothing was stored at path.
	Delete(ctx context.Context, path string) (bool, error)
	Exists(ctx context.Context, path string) (bool, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// URL returns the public URL of path, or nil for an empty path.
	URL(path string) *string
}
