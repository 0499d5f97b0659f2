package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
)

// ErrInvalidPath is returned for paths that escape the storage root.
var ErrInvalidPath = errors.New("storage: invalid path")

// LocalStore keeps blobs on the local filesystem below root and serves them under publicURL.
type LocalStore struct {
	root      string
	publicURL string
	logger    *zap.Logger
}

// NewLocalStore creates root when missing. publicURL is the base the relative paths are appended to.
func NewLocalStore(root, publicURL string, logger *zap.Logger) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Save writes r to folder/<ulid>.<ext>. Partial files are removed on failure.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, folder string, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder = strings.Trim(path.Clean("/"+folder), "/")
	name := ids.NewULID()
	if ext = strings.TrimPrefix(strings.ToLower(ext), "."); ext != "" {
		name += "." + ext
	}
	rel := path.Join(folder, name)

	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob folder: %w", err)
	}

	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close blob: %w", err)
	}

	s.logger.Debug("blob stored", zap.String("path", rel))
	return rel, nil
}

// Delete removes the blob at p. Missing blobs report false without error.
func (s *LocalStore) Delete(_ context.Context, p string) (bool, error) {
	if strings.TrimSpace(p) == "" {
		return false, nil
	}
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete blob: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	if strings.TrimSpace(p) == "" {
		return false, nil
	}
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return !info.IsDir(), nil
}

func (s *LocalStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, port.ErrBlobNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// URL returns publicURL/p, or nil when p is empty.
func (s *LocalStore) URL(p string) *string {
	if strings.TrimSpace(p) == "" {
		return nil
	}
	escaped := (&url.URL{Path: strings.TrimLeft(p, "/")}).EscapedPath()
	value := s.publicURL + "/" + escaped
	return &value
}

func (s *LocalStore) resolve(p string) (string, error) {
	cleaned := path.Clean("/" + filepath.ToSlash(p))
	if cleaned == "/" || strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

var _ port.BlobStore = (*LocalStore)(nil)
