// Package size measures filesystem entries and renders byte counts.
package size

import (
	"fmt"
	"os"
	"path/filepath"
)

var units = []string{"bytes", "KB", "MB", "GB", "TB"}

// Size returns the size of path in bytes. For a directory this is the size
// reported for the directory entry itself plus the recursive size of every
// child.
func Size(path string) (int64, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.IsDir() {
		return fi.Size(), nil
	}

	total := fi.Size()
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", path, err)
	}
	for _, entry := range entries {
		n, err := Size(filepath.Join(path, entry.Name()))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// HumanReadable renders n with one fractional digit in the first unit whose
// magnitude stays below 1024. Anything past TB is still rendered in TB.
func HumanReadable(n int64) string {
	v := float64(n)
	for i, unit := range units {
		if v < 1024 || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return "" // unreachable
}
