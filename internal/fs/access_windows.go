//go:build windows

package fs

import "os"

func writable(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.Mode().Perm()&0200 != 0
}
