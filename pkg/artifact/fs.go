package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultRoot = "data/processed"

// Filesystem reads artifacts from files under a root directory.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at root (default data/processed).
// The directory is not required to exist; missing files surface as
// fs.ErrNotExist on Open.
func NewFilesystem(root string) *Filesystem {
	if root == "" {
		root = defaultRoot
	}
	return &Filesystem{root: root}
}

func (s *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the directory artifacts are read from.
func (s *Filesystem) Root() string { return s.root }

func (s *Filesystem) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.root, k))
}

// sanitizeKey keeps keys relative to the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key: %s", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key traversal: %s", key)
	}
	return clean, nil
}
