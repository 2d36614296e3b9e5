package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolve checks that path exists and is writable by the caller and returns
// its absolute form. It is the only place relative paths are interpreted.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", ErrNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := checkEntry(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// checkEntry reports ErrNotFound or ErrPermissionDenied for a single entry
func checkEntry(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return err
	}
	if !writable(path) {
		return fmt.Errorf("%s: %w", path, ErrPermissionDenied)
	}
	return nil
}

// checkTree runs checkEntry over path and, for directories, every descendant.
// Nothing is mutated until the whole tree has passed.
func checkTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%s: %w", p, ErrNotFound)
			}
			if errors.Is(err, fs.ErrPermission) {
				return fmt.Errorf("%s: %w", p, ErrPermissionDenied)
			}
			return err
		}
		return checkEntry(p)
	})
}

// HasTrailingSeparator reports whether path was written in the "dir/" form,
// whose base name is empty.
func HasTrailingSeparator(path string) bool {
	return len(path) > 1 && strings.HasSuffix(path, string(filepath.Separator))
}

// IsUnsafePath checks if the given path is unsafe to remove
func IsUnsafePath(path string) bool {
	// Check the original input first so "." and ".." are caught before Clean
	base := filepath.Base(path)
	if base == "." || base == ".." {
		return true
	}
	if filepath.Clean(path) == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, "//")
}

// Within reports whether path is root or lies below it
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
