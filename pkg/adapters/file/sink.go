package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/google/uuid"
)

// DocumentSink implements ports.DocumentSink by writing exports into a directory.
type DocumentSink struct {
	BasePath string
	unique   bool
}

// Option configures the DocumentSink.
type Option func(*DocumentSink)

// WithUniqueNames suffixes every file with a random id instead of overwriting
// the previous export.
func WithUniqueNames() Option {
	return func(s *DocumentSink) {
		s.unique = true
	}
}

// NewDocumentSink creates a sink rooted at basePath.
// If basePath is empty, it defaults to "exports".
func NewDocumentSink(basePath string, opts ...Option) *DocumentSink {
	if basePath == "" {
		basePath = "exports"
	}
	s := &DocumentSink{BasePath: basePath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver writes the document atomically and returns its path.
func (s *DocumentSink) Deliver(ctx context.Context, doc ports.Document) (string, error) {
	name := filepath.Base(doc.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid document name %q", doc.Name)
	}
	if s.unique {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), uuid.NewString()[:8], ext)
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure export directory: %w", err)
	}
	destPath := filepath.Join(s.BasePath, name)

	// Write next to the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*-"+name)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(doc.Data); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return "", fmt.Errorf("failed to fsync export: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	// os.Rename cannot replace an existing file on Windows.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return "", fmt.Errorf("failed to replace previous export: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return destPath, nil
}
