package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the object-storage capability used for order images and
// generated PDFs. Names may contain slashes; they map to nested paths.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (url string, err error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// FSStore stores objects under a root directory and serves them by
// relative URL.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates a filesystem-backed store rooted at root.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Put writes an object and returns its public URL.
func (s *FSStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	p := s.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to create object %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("failed to write object %s: %w", name, err)
	}

	return s.baseURL + "/" + name, nil
}

// List returns object names under the given prefix.
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

// Delete removes one object.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
