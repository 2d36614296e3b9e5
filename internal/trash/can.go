// Package trash implements the trash can: moving paths into it, restoring
// them, deleting them for good and reporting what it holds.
package trash

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/babarot/smartrm/internal/archive"
	"github.com/babarot/smartrm/internal/fs"
	"github.com/babarot/smartrm/internal/metadata"
	"github.com/babarot/smartrm/internal/size"
	"github.com/babarot/smartrm/internal/utils/log"
	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// EmptyMessage is what Info reports for a can without entries
const EmptyMessage = "Trash can is empty"

// Can is a trash can rooted at a single directory
type Can struct {
	root         string
	store        *metadata.Store
	archiver     *archive.Archiver
	protect      *protector
	pruneExclude []glob.Glob
	logger       *slog.Logger
	opts         options

	// replaced in tests
	freeSpace func(string) (uint64, error)
}

// New opens the can described by cfg, creating its root directory when it
// does not exist yet. An existing root is used as is.
func New(cfg Config, opts ...Option) (*Can, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}

	root := cfg.Root
	if root == "" {
		def, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		root = def
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ensureRoot(root); err != nil {
		return nil, err
	}

	protect, err := newProtector(root, cfg.Protect)
	if err != nil {
		return nil, err
	}
	exclude, err := CompileGlobs(cfg.PruneExclude)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With("trash_dir", root)
	return &Can{
		root:         root,
		store:        metadata.NewStore(root, logger),
		archiver:     archive.New(root, logger),
		protect:      protect,
		pruneExclude: exclude,
		logger:       logger,
		opts:         o,
		freeSpace:    fs.FreeSpace,
	}, nil
}

func ensureRoot(root string) error {
	fi, err := os.Stat(root)
	switch {
	case err == nil:
		if !fi.IsDir() {
			return fmt.Errorf("trash can %s is not a directory", root)
		}
		return nil
	case !errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("stat trash can: %w", err)
	}

	if err := os.MkdirAll(root, 0o777); err != nil {
		return fmt.Errorf("create trash can: %w", err)
	}
	// MkdirAll is subject to umask
	if err := os.Chmod(root, 0o777); err != nil {
		return fmt.Errorf("chmod trash can: %w", err)
	}
	return nil
}

// Root returns the absolute path of the can
func (c *Can) Root() string {
	return c.root
}

// MoveToBin moves path into the can and records it. A path written with a
// trailing separator that names a directory trashes each of its children
// instead of the directory itself.
func (c *Can) MoveToBin(path string) error {
	if fs.HasTrailingSeparator(path) {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			return c.moveChildren(path)
		}
	}
	return c.moveOne(path)
}

func (c *Can) moveChildren(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return opError("put", dir, err)
	}
	var errs []error
	for _, e := range entries {
		if err := c.MoveToBin(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Can) moveOne(path string) error {
	if err := c.protect.checkInput(path); err != nil {
		return opError("put", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return opError("put", path, err)
	}
	if err := c.protect.check(abs); err != nil {
		return opError("put", path, err)
	}
	src, err := fs.Resolve(abs)
	if err != nil {
		return opError("put", path, err)
	}

	name := filepath.Base(src)
	if reserved(name) {
		return opError("put", path, fmt.Errorf("%s is reserved: %w", name, ErrProtectedPath))
	}

	n, err := size.Size(src)
	if err != nil {
		return opError("put", path, err)
	}
	if c.opts.checkSpace {
		free, err := c.freeSpace(c.root)
		if err != nil {
			c.logger.Warn("cannot determine free space", "error", err)
		} else if uint64(n) > free {
			return opError("put", path, fmt.Errorf("%s needed, %s available: %w",
				size.HumanReadable(n), size.HumanReadable(int64(free)), ErrInsufficientSpace))
		}
	}

	if owner, ok := c.claimedBy(name, name); ok {
		return opError("put", path, fmt.Errorf("%s holds the archive of entry %s: %w", name, owner, ErrFileExists))
	}

	// one recorded state per name, the newest removal wins
	if err := c.dropContent(name); err != nil {
		return opError("put", path, err)
	}

	if err := c.store.Begin(metadata.OpMove, name, src); err != nil {
		return opError("put", path, err)
	}
	if err := fs.MoveTree(src, c.root); err != nil {
		c.fail(metadata.OpMove, name, err)
		return opError("put", path, err)
	}

	archived := false
	if c.opts.compress {
		if owner, ok := c.claimedBy(name+archive.Ext, name); ok {
			c.logger.Warn("keeping entry uncompressed", "name", name, "archive_taken_by", owner)
		} else if err := c.archiver.Archive(name); err != nil {
			c.logger.Warn("keeping entry uncompressed", "name", name, "error", err)
		} else {
			archived = true
		}
	}

	entry := metadata.Entry{
		Name:        name,
		OriginalDir: filepath.Dir(src),
		RemovedAt:   metadata.NewTime(c.opts.now()),
		Size:        metadata.Bytes(n),
		Archived:    archived,
	}
	if err := c.store.Save(entry); err != nil {
		c.fail(metadata.OpMove, name, err)
		return opError("put", path, err)
	}
	c.commit(metadata.OpMove, name)

	c.logger.Info("moved to trash can", "path", src, "size", n, "archived", archived)
	return nil
}

// Restore moves the entry name back to the directory it was removed from.
// The record is dropped only once the content is back in place.
func (c *Can) Restore(name string) error {
	entry, err := c.store.Get(name)
	if err != nil {
		return opError("restore", name, err)
	}
	archived := c.isArchived(entry)
	dest := filepath.Join(entry.OriginalDir, name)

	if err := c.store.Begin(metadata.OpRestore, name, dest); err != nil {
		return opError("restore", name, err)
	}
	if archived {
		if err := c.archiver.Unarchive(name); err != nil {
			c.fail(metadata.OpRestore, name, err)
			return opError("restore", name, err)
		}
	}

	if err := c.putBack(name, entry.OriginalDir); err != nil {
		if archived {
			if aerr := c.archiver.Archive(name); aerr != nil {
				c.fail(metadata.OpRestore, name, errors.Join(err, aerr))
				return opError("restore", name, err)
			}
		}
		c.commit(metadata.OpRestore, name)
		return opError("restore", name, err)
	}

	if err := c.store.RemoveKey(name); err != nil {
		c.fail(metadata.OpRestore, name, err)
		return opError("restore", name, err)
	}
	c.commit(metadata.OpRestore, name)

	c.logger.Info("restored from trash can", "path", dest)
	return nil
}

func (c *Can) putBack(name, dir string) error {
	src := filepath.Join(c.root, name)
	fi, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, fs.ErrNotFound)
		}
		return err
	}
	if dst, err := os.Lstat(filepath.Join(dir, name)); err == nil && dst.IsDir() != fi.IsDir() {
		return fmt.Errorf("%s: %w", filepath.Join(dir, name), ErrFileExists)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recreate %s: %w", dir, err)
	}
	return fs.MoveTree(src, dir)
}

// Remove permanently deletes the entry name and its record
func (c *Can) Remove(name string) error {
	entry, err := c.store.Get(name)
	if err != nil {
		return opError("remove", name, err)
	}
	if err := c.store.Begin(metadata.OpRemove, name, ""); err != nil {
		return opError("remove", name, err)
	}

	found, err := c.deleteContent(entry)
	if err != nil {
		c.fail(metadata.OpRemove, name, err)
		return opError("remove", name, err)
	}
	if !found {
		c.logger.Warn("record without content", "name", name)
	}
	if err := c.store.RemoveKey(name); err != nil {
		c.fail(metadata.OpRemove, name, err)
		return opError("remove", name, err)
	}
	c.commit(metadata.OpRemove, name)

	c.logger.Info("removed permanently", "name", name)
	return nil
}

// ClearCan permanently deletes every entry of the can. Files found in the can
// without a record are deleted too. All removals run even when some fail and
// their errors are returned together.
func (c *Can) ClearCan() error {
	entries, err := c.store.Load()
	if err != nil {
		return opError("clear", "", err)
	}
	dirents, err := os.ReadDir(c.root)
	if err != nil {
		return opError("clear", "", err)
	}

	var orphans []string
	for _, d := range dirents {
		if reserved(d.Name()) {
			continue
		}
		if _, ok := entries[c.entryName(d.Name(), entries)]; !ok {
			orphans = append(orphans, d.Name())
		}
	}

	p := pool.New().WithMaxGoroutines(c.opts.concurrency).WithErrors()
	for _, name := range lo.Keys(entries) {
		p.Go(func() error {
			return c.Remove(name)
		})
	}
	for _, orphan := range orphans {
		p.Go(func() error {
			c.logger.Warn("deleting orphan", "name", orphan)
			return opError("clear", orphan, fs.DeleteTree(filepath.Join(c.root, orphan)))
		})
	}
	err = p.Wait()

	c.logger.Info("trash can cleared", "entries", len(entries), "orphans", len(orphans), "error", err)
	return err
}

// List returns every entry sorted by name
func (c *Can) List() ([]metadata.Entry, error) {
	entries, err := c.store.Load()
	if err != nil {
		return nil, opError("list", "", err)
	}
	list := lo.Values(entries)
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Prune permanently deletes every entry removed at least olderThan ago,
// except names matching the configured exclusions. It returns the names that
// were deleted.
func (c *Can) Prune(olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, opError("prune", "", fmt.Errorf("invalid duration %s", olderThan))
	}
	list, err := c.List()
	if err != nil {
		return nil, err
	}
	targets := Filter(list, FilterOptions{
		OlderThan: olderThan,
		Exclude:   c.pruneExclude,
		Now:       c.opts.now(),
	})

	var (
		mu      sync.Mutex
		removed []string
	)
	var g errgroup.Group
	g.SetLimit(c.opts.concurrency)
	for _, entry := range targets {
		g.Go(func() error {
			if err := c.Remove(entry.Name); err != nil {
				return err
			}
			mu.Lock()
			removed = append(removed, entry.Name)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	sort.Strings(removed)

	c.logger.Info("pruned trash can", "older_than", olderThan, "removed", len(removed))
	return removed, err
}

// Pending returns operations that started and never finished
func (c *Can) Pending() ([]metadata.Pending, error) {
	return c.store.Pending()
}

func (c *Can) isArchived(entry metadata.Entry) bool {
	if entry.Archived {
		return true
	}
	if _, err := os.Lstat(filepath.Join(c.root, entry.Name)); err == nil {
		return false
	}
	// <name>.zip is the content of the entry of that name, if there is one
	if _, err := c.store.Get(entry.Name + archive.Ext); err == nil {
		return false
	}
	return c.archiver.Exists(entry.Name)
}

// entryName maps a file found in the root to the entry it belongs to
func (c *Can) entryName(file string, entries map[string]metadata.Entry) string {
	if e, ok := entries[file]; ok && !e.Archived {
		return file
	}
	if name, ok := strings.CutSuffix(file, archive.Ext); ok {
		if _, ok := entries[name]; ok {
			return name
		}
	}
	return file
}

// claimedBy reports which entry other than self owns file in the root. An
// entry owns its own name, archived or not, and <name>.zip when archived.
func (c *Can) claimedBy(file, self string) (string, bool) {
	if file != self {
		if _, err := c.store.Get(file); err == nil {
			return file, true
		}
	}
	if base, ok := strings.CutSuffix(file, archive.Ext); ok && base != self {
		if e, err := c.store.Get(base); err == nil && c.isArchived(e) {
			return base, true
		}
	}
	return "", false
}

// dropContent deletes the content recorded under name, if any
func (c *Can) dropContent(name string) error {
	prev, err := c.store.Get(name)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	found, err := c.deleteContent(prev)
	if found && err == nil {
		c.logger.Debug("replaced previous entry", "name", name)
	}
	return err
}

// contentPath is the file in the root holding entry
func (c *Can) contentPath(entry metadata.Entry) string {
	if c.isArchived(entry) {
		return c.archiver.Path(entry.Name)
	}
	return filepath.Join(c.root, entry.Name)
}

// deleteContent deletes the form of entry its record names and reports
// whether it existed
func (c *Can) deleteContent(entry metadata.Entry) (bool, error) {
	p := c.contentPath(entry)
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := fs.DeleteTree(p); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Can) commit(op metadata.Op, name string) {
	if err := c.store.Commit(op, name); err != nil {
		c.logger.Warn("failed to clear pending marker", "op", op, "name", name, "error", err)
	}
}

func (c *Can) fail(op metadata.Op, name string, cause error) {
	c.logger.Error("operation interrupted", "op", op, "name", name, "error", cause)
	if err := c.store.Fail(op, name, cause); err != nil {
		c.logger.Warn("failed to mark pending operation", "op", op, "name", name, "error", err)
	}
}
