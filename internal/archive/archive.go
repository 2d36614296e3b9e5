// Package archive packs trash can entries into zip files and back.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/babarot/smartrm/internal/fs"
	"github.com/babarot/smartrm/internal/utils/log"
	"github.com/google/uuid"
)

const (
	// Ext is appended to an entry name to form its archive file name
	Ext = ".zip"

	// TempPrefix marks in-progress archive files inside the root
	TempPrefix = ".smartrm-"
)

var ErrZipSlip = errors.New("archive entry escapes the trash can")

// Archiver compresses entries that live directly under root. All archive
// writes and extractions are serialized by a single lock.
type Archiver struct {
	root   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New returns an Archiver for the trash can at root
func New(root string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = log.Discard()
	}
	return &Archiver{root: root, logger: logger}
}

// Path returns the archive file path of the entry name
func (a *Archiver) Path(name string) string {
	return filepath.Join(a.root, name+Ext)
}

// Exists reports whether name is stored as an archive
func (a *Archiver) Exists(name string) bool {
	fi, err := os.Lstat(a.Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Archive writes <root>/<name> into <root>/<name>.zip, keyed by paths relative
// to root, then deletes the uncompressed tree.
func (a *Archiver) Archive(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	src := filepath.Join(a.root, name)
	if _, err := os.Lstat(src); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, fs.ErrNotFound)
		}
		return err
	}

	a.logger.Debug("archive started", "name", name)
	tmp := filepath.Join(a.root, TempPrefix+uuid.NewString()+".tmp")
	if err := a.write(src, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive %s: %w", name, err)
	}
	if err := os.Rename(tmp, a.Path(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive %s: %w", name, err)
	}

	if err := fs.DeleteTree(src); err != nil {
		return fmt.Errorf("remove archived tree %s: %w", name, err)
	}
	a.logger.Debug("archive finished", "name", name, "path", a.Path(name))
	return nil
}

func (a *Archiver) write(src, dst string) error {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		return addEntry(zw, path, filepath.ToSlash(rel), info)
	})
	if err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func addEntry(zw *zip.Writer, path, name string, info iofs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name

	switch {
	case info.IsDir():
		header.Name += "/"
		header.Method = zip.Store
		_, err := zw.CreateHeader(header)
		return err

	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		header.Method = zip.Store
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, target)
		return err

	case info.Mode().IsRegular():
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		r, err := os.Open(path)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(w, r)
		return err

	default:
		// sockets, devices and pipes have no content to keep
		return nil
	}
}

// Unarchive extracts <root>/<name>.zip back under root and deletes the
// archive once every entry has been written.
func (a *Archiver) Unarchive(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.Path(name)
	a.logger.Debug("unarchive started", "name", name)
	if err := a.extract(path); err != nil {
		return fmt.Errorf("unarchive %s: %w", name, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove archive %s: %w", name, err)
	}
	a.logger.Debug("unarchive finished", "name", name)
	return nil
}

func (a *Archiver) extract(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, fs.ErrNotFound)
		}
		return err
	}
	defer r.Close()

	type dirMode struct {
		path string
		mode iofs.FileMode
	}
	var dirs []dirMode

	for _, f := range r.File {
		target := filepath.Join(a.root, filepath.FromSlash(f.Name))
		if target == a.root || !fs.Within(a.root, target) {
			return fmt.Errorf("%s: %w", f.Name, ErrZipSlip)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(target, 0700); err != nil {
				return err
			}
			dirs = append(dirs, dirMode{path: target, mode: mode.Perm()})

		case mode&os.ModeSymlink != 0:
			if err := extractSymlink(f, target); err != nil {
				return err
			}

		default:
			if err := extractFile(f, target); err != nil {
				return err
			}
		}
	}

	// Directory modes are applied last so read-only directories can be filled
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].mode); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(target, f.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(target, f.Modified, f.Modified)
}

func extractSymlink(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	link, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	os.Remove(target)
	return os.Symlink(string(link), target)
}
