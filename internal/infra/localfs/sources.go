// Package localfs stores uploaded CSV files on the local filesystem.
package localfs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

const uriScheme = "file://"

// SourceStore implements uploads.SourceStore under a root directory.
type SourceStore struct {
	root string
}

// NewSourceStore creates the root directory if needed.
func NewSourceStore(root string) (*SourceStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", abs, err)
	}
	return &SourceStore{root: abs}, nil
}

// Put implements uploads.SourceStore. Files land in <root>/<uploadID>/<filename>.
func (s *SourceStore) Put(ctx context.Context, uploadID, filename string, content io.Reader) (string, error) {
	dir := filepath.Join(s.root, filepath.Base(uploadID))
	target := filepath.Join(dir, filepath.Base(filename))
	if dir == s.root || !s.contains(target) || filepath.Dir(target) != dir {
		return "", fmt.Errorf("invalid upload path %q/%q", uploadID, filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file %q: %w", target, err)
	}

	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write file %q: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file %q: %w", target, err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}

// Open implements uploads.SourceStore. Only files below the root are served.
func (s *SourceStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid file URI: %s", uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse file URI %q: %w", uri, err)
	}

	p := filepath.Clean(filepath.FromSlash(u.Path))
	if !s.contains(p) {
		return nil, fmt.Errorf("file URI outside upload dir: %s", uri)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", p, err)
	}
	return f, nil
}

var _ uploads.SourceStore = (*SourceStore)(nil)

// contains reports whether p lies strictly below the root. Names that merely
// start with ".." are fine.
func (s *SourceStore) contains(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
