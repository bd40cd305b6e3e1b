// Package mirror fans artifact writes out to a primary store and an optional
// secondary copy.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

// Store writes to Primary first and then copies to Secondary. Secondary
// failures are logged and never surface to the caller.
type Store struct {
	primary   crawler.BlobStore
	secondary crawler.BlobStore
	logger    *zap.Logger
}

// New wraps primary. A nil secondary makes the store a pass-through.
func New(primary, secondary crawler.BlobStore, logger *zap.Logger) (*Store, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{primary: primary, secondary: secondary, logger: logger}, nil
}

// PutObject implements crawler.BlobStore. The returned URI is the primary's.
func (s *Store) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	if s.secondary == nil {
		return s.primary.PutObject(ctx, path, contentType, data)
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	uri, err := s.primary.PutObject(ctx, path, contentType, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	if mirrorURI, err := s.secondary.PutObject(ctx, path, contentType, bytes.NewReader(buf)); err != nil {
		s.logger.Warn("mirror write failed", zap.String("path", path), zap.Error(err))
	} else {
		s.logger.Debug("mirrored object", zap.String("path", path), zap.String("uri", mirrorURI))
	}
	return uri, nil
}

// Exists consults the primary only.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	return s.primary.Exists(ctx, path)
}
