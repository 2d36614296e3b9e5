// Package fs relocates and deletes file trees for the trash can.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	cp "github.com/otiai10/copy"
)

// MoveTree moves source into destDir, keeping its base name.
//
// A directory is rebuilt under destDir (reusing a same-named directory that
// already exists there), its children are moved one by one and the emptied
// source is removed. A file is renamed into destDir, replacing any file of the
// same name.
func MoveTree(source, destDir string) error {
	src, err := Resolve(source)
	if err != nil {
		return err
	}
	if err := checkTree(src); err != nil {
		return err
	}
	return moveTree(src, destDir)
}

func moveTree(src, destDir string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return &MoveError{Op: "stat", Src: src, Err: err}
	}
	dst := filepath.Join(destDir, filepath.Base(src))

	if !fi.IsDir() {
		return relocate(src, dst)
	}

	if err := os.Mkdir(dst, fi.Mode().Perm()); err != nil && !errors.Is(err, os.ErrExist) {
		return &MoveError{Op: "mkdir", Src: src, Dst: dst, Err: err}
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return &MoveError{Op: "readdir", Src: src, Err: err}
	}
	for _, entry := range entries {
		if err := moveTree(filepath.Join(src, entry.Name()), dst); err != nil {
			return err
		}
	}

	if err := os.Remove(src); err != nil {
		return &MoveError{Op: "rmdir", Src: src, Err: err}
	}
	// Mkdir is subject to umask
	if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
		return &MoveError{Op: "chmod", Src: src, Dst: dst, Err: err}
	}
	return nil
}

// relocate renames a single non-directory entry, falling back to copy and
// delete when src and dst live on different devices.
func relocate(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return &MoveError{Op: "rename", Src: src, Dst: dst, Err: err}
	}

	opts := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Shallow
		},
		PreserveTimes: true,
		Sync:          true,
	}
	if err := cp.Copy(src, dst, opts); err != nil {
		return &MoveError{Op: "copy", Src: src, Dst: dst, Err: err}
	}
	if err := os.Remove(src); err != nil {
		// Do not leave two copies behind
		if rmErr := os.Remove(dst); rmErr != nil {
			return &MoveError{
				Op:  "cleanup",
				Src: src,
				Dst: dst,
				Err: fmt.Errorf("failed to remove both source and destination: %v, %v", err, rmErr),
			}
		}
		return &MoveError{Op: "remove_source", Src: src, Dst: dst, Err: err}
	}
	return nil
}

// DeleteTree permanently removes path. Directories are emptied child by child
// before being removed themselves.
func DeleteTree(path string) error {
	abs, err := Resolve(path)
	if err != nil {
		return err
	}
	if err := checkTree(abs); err != nil {
		return err
	}
	return deleteTree(abs)
}

func deleteTree(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return &MoveError{Op: "stat", Src: path, Err: err}
	}
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return &MoveError{Op: "readdir", Src: path, Err: err}
		}
		for _, entry := range entries {
			if err := deleteTree(filepath.Join(path, entry.Name())); err != nil {
				return err
			}
		}
	}
	if err := os.Remove(path); err != nil {
		return &MoveError{Op: "remove", Src: path, Err: err}
	}
	return nil
}
