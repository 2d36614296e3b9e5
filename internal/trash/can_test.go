package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/babarot/smartrm/internal/archive"
	"github.com/babarot/smartrm/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCan returns a can rooted in a temp dir together with a separate
// directory to create files in
func newTestCan(t *testing.T, opts ...Option) (*Can, string) {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "src")
	require.NoError(t, os.Mkdir(src, 0o755))

	c, err := New(Config{Root: filepath.Join(base, "can")}, opts...)
	require.NoError(t, err)
	return c, src
}

// writeTree creates files (and, for keys ending in "/", directories) under dir
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// readTree is the inverse of writeTree
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, _ := filepath.Rel(dir, p)
		if d.IsDir() {
			files[filepath.ToSlash(rel)+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func rootNames(t *testing.T, c *Can) []string {
	t.Helper()
	entries, err := os.ReadDir(c.Root())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "can")

	c, err := New(Config{Root: root})
	require.NoError(t, err)
	assert.Equal(t, root, c.Root())

	fi, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, os.FileMode(0o777), fi.Mode().Perm())
}

func TestNewKeepsExistingRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"left-over": "x"})

	_, err := New(Config{Root: root})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"left-over": "x"}, readTree(t, root))
}

func TestNewRootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0o644))

	_, err := New(Config{Root: root})
	assert.Error(t, err)
}

func TestNewInvalidGlob(t *testing.T) {
	_, err := New(Config{Root: t.TempDir(), Protect: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	tree := map[string]string{
		"project/README.md":        "# hello\n",
		"project/src/main.go":      "package main\n",
		"project/src/lib/util.go":  "package lib\n",
		"project/empty/":           "",
		"project/.hidden/config":   "key=value",
		"project/data/binary.blob": "\x00\x01\x02\xff",
	}

	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			c, src := newTestCan(t, WithCompression(compress))
			writeTree(t, src, tree)
			writeTree(t, src, map[string]string{"note.txt": "remember"})

			require.NoError(t, c.MoveToBin(filepath.Join(src, "project")))
			require.NoError(t, c.MoveToBin(filepath.Join(src, "note.txt")))
			assert.Empty(t, readTree(t, src))

			entries, err := c.List()
			require.NoError(t, err)
			require.Len(t, entries, 2)
			for _, e := range entries {
				assert.Equal(t, src, e.OriginalDir)
				assert.Equal(t, compress, e.Archived)
				_, err := os.Stat(c.archiver.Path(e.Name))
				assert.Equal(t, compress, err == nil)
			}

			require.NoError(t, c.Restore("project"))
			require.NoError(t, c.Restore("note.txt"))

			want := map[string]string{"note.txt": "remember"}
			for k, v := range tree {
				want[k] = v
			}
			got := readTree(t, src)
			delete(got, "project/")
			delete(got, "project/src/")
			delete(got, "project/src/lib/")
			delete(got, "project/.hidden/")
			delete(got, "project/data/")
			assert.Equal(t, want, got)

			entries, err = c.List()
			require.NoError(t, err)
			assert.Empty(t, entries)
			assert.Equal(t, []string{metadata.FileName}, rootNames(t, c))
		})
	}
}

func TestRestoreRecreatesOriginalDir(t *testing.T) {
	c, src := newTestCan(t)
	dir := filepath.Join(src, "a", "b")
	writeTree(t, dir, map[string]string{"f.txt": "content"})

	require.NoError(t, c.MoveToBin(filepath.Join(dir, "f.txt")))
	require.NoError(t, os.RemoveAll(filepath.Join(src, "a")))

	require.NoError(t, c.Restore("f.txt"))
	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestMoveToBinLastWriteWins(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			c, src := newTestCan(t, WithCompression(compress))
			writeTree(t, src, map[string]string{
				"first/dup.txt":  "old",
				"second/dup.txt": "new content",
			})

			require.NoError(t, c.MoveToBin(filepath.Join(src, "first", "dup.txt")))
			require.NoError(t, c.MoveToBin(filepath.Join(src, "second", "dup.txt")))

			entries, err := c.List()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, filepath.Join(src, "second"), entries[0].OriginalDir)
			assert.EqualValues(t, len("new content"), entries[0].Size)

			require.NoError(t, c.Restore("dup.txt"))
			data, err := os.ReadFile(filepath.Join(src, "second", "dup.txt"))
			require.NoError(t, err)
			assert.Equal(t, "new content", string(data))

			_, err = os.Stat(filepath.Join(src, "first", "dup.txt"))
			assert.True(t, os.IsNotExist(err))
			assert.Equal(t, []string{metadata.FileName}, rootNames(t, c))
		})
	}
}

func TestMoveToBinRefusesAnotherEntrysArchive(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{
		"a/notes.txt": "keep me",
		"other/a.zip": "a file that happens to end in .zip",
	})

	require.NoError(t, c.MoveToBin(filepath.Join(src, "a")))
	err := c.MoveToBin(filepath.Join(src, "other", "a.zip"))
	require.Error(t, err)
	assert.True(t, IsFileExists(err))

	_, err = os.Stat(filepath.Join(src, "other", "a.zip"))
	assert.NoError(t, err, "refused path stays where it was")
	assert.Equal(t, []string{metadata.FileName, "a.zip"}, rootNames(t, c))

	require.NoError(t, c.Restore("a"))
	data, err := os.ReadFile(filepath.Join(src, "a", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestMoveToBinKeepsUncompressedWhenArchiveNameTaken(t *testing.T) {
	for _, firstCompressed := range []bool{true, false} {
		t.Run(fmt.Sprintf("first compressed=%v", firstCompressed), func(t *testing.T) {
			c, src := newTestCan(t, WithCompression(firstCompressed))
			writeTree(t, src, map[string]string{
				"x/a.zip": "zip-named file",
				"y/a":     "plain file",
			})

			require.NoError(t, c.MoveToBin(filepath.Join(src, "x", "a.zip")))
			c.opts.compress = true
			require.NoError(t, c.MoveToBin(filepath.Join(src, "y", "a")))

			entry, err := c.store.Get("a")
			require.NoError(t, err)
			assert.False(t, entry.Archived)

			require.NoError(t, c.Restore("a"))
			require.NoError(t, c.Restore("a.zip"))

			data, err := os.ReadFile(filepath.Join(src, "y", "a"))
			require.NoError(t, err)
			assert.Equal(t, "plain file", string(data))
			data, err = os.ReadFile(filepath.Join(src, "x", "a.zip"))
			require.NoError(t, err)
			assert.Equal(t, "zip-named file", string(data))
		})
	}
}

func TestRemoveLeavesEntryNamedLikeItsArchive(t *testing.T) {
	c, src := newTestCan(t, WithCompression(false))
	writeTree(t, src, map[string]string{
		"x/a.zip": "zip-named file",
		"y/a":     "plain file",
	})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "x", "a.zip")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "y", "a")))

	require.NoError(t, c.Remove("a"))

	require.NoError(t, c.Restore("a.zip"))
	data, err := os.ReadFile(filepath.Join(src, "x", "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-named file", string(data))
}

func TestMoveToBinReplacesOnlyItsOwnContent(t *testing.T) {
	c, src := newTestCan(t, WithCompression(false))
	writeTree(t, src, map[string]string{
		"x/a.zip": "zip-named file",
		"y/a":     "first",
		"z/a":     "second",
	})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "x", "a.zip")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "y", "a")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "z", "a")))

	assert.Equal(t, []string{metadata.FileName, "a", "a.zip"}, rootNames(t, c))
	require.NoError(t, c.Restore("a.zip"))
	data, err := os.ReadFile(filepath.Join(src, "x", "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-named file", string(data))
}

func TestLegacyRecordDoesNotClaimAnotherEntry(t *testing.T) {
	c, src := newTestCan(t, WithCompression(false))
	writeTree(t, src, map[string]string{
		"x/a.zip": "zip-named file",
		"y/a":     "plain file",
	})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "x", "a.zip")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "y", "a")))
	// content of a lost outside the can
	require.NoError(t, os.Remove(filepath.Join(c.Root(), "a")))

	require.NoError(t, c.Remove("a"))
	_, err := os.Stat(filepath.Join(c.Root(), "a.zip"))
	assert.NoError(t, err)
}

func TestMoveToBinNotFound(t *testing.T) {
	c, src := newTestCan(t)

	err := c.MoveToBin(filepath.Join(src, "missing"))
	assert.True(t, IsNotFound(err))

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "put", opErr.Op)

	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMoveToBinProtected(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "can")
	c, err := New(Config{Root: root, Protect: []string{"*.keep", "/**/secrets/*"}})
	require.NoError(t, err)

	writeTree(t, base, map[string]string{
		"work/important.keep": "x",
		"work/secrets/key":    "y",
	})
	writeTree(t, root, map[string]string{"inside": "z"})

	tests := map[string]string{
		"root":         "/",
		"the can":      root,
		"inside can":   filepath.Join(root, "inside"),
		"can ancestor": base,
		"dot":          ".",
		"dotdot":       "..",
		"glob on base": filepath.Join(base, "work", "important.keep"),
		"glob on path": filepath.Join(base, "work", "secrets", "key"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			err := c.MoveToBin(path)
			assert.True(t, IsProtectedPath(err), "%v", err)
		})
	}

	if home, err := os.UserHomeDir(); err == nil {
		assert.True(t, IsProtectedPath(c.MoveToBin(home)))
	}
	_, err = os.Stat(filepath.Join(base, "work", "important.keep"))
	assert.NoError(t, err)
}

func TestMoveToBinReservedName(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{metadata.FileName: "{}"})

	err := c.MoveToBin(filepath.Join(src, metadata.FileName))
	assert.True(t, IsProtectedPath(err))
}

func TestMoveToBinInsufficientSpace(t *testing.T) {
	c, src := newTestCan(t)
	c.freeSpace = func(string) (uint64, error) { return 3, nil }
	writeTree(t, src, map[string]string{"big.bin": "more than three bytes"})

	err := c.MoveToBin(filepath.Join(src, "big.bin"))
	assert.True(t, IsInsufficientSpace(err))

	_, err = os.Stat(filepath.Join(src, "big.bin"))
	assert.NoError(t, err)
	assert.Empty(t, rootNames(t, c))
}

func TestMoveToBinFreeSpaceCheckDisabled(t *testing.T) {
	c, src := newTestCan(t, WithFreeSpaceCheck(false))
	c.freeSpace = func(string) (uint64, error) { return 0, nil }
	writeTree(t, src, map[string]string{"big.bin": "data"})

	assert.NoError(t, c.MoveToBin(filepath.Join(src, "big.bin")))
}

func TestMoveToBinTrailingSeparator(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{
		"dir/a.txt":   "a",
		"dir/b.txt":   "b",
		"dir/sub/c":   "c",
		"dir/nested/": "",
	})

	require.NoError(t, c.MoveToBin(filepath.Join(src, "dir")+string(filepath.Separator)))

	assert.Equal(t, map[string]string{"dir/": ""}, readTree(t, src))

	entries, err := c.List()
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
		assert.Equal(t, filepath.Join(src, "dir"), e.OriginalDir)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "nested", "sub"}, names)
}

func TestMoveToBinTrailingSeparatorEmptyDir(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"empty/": ""})

	require.NoError(t, c.MoveToBin(filepath.Join(src, "empty")+"/"))
	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMoveToBinConcurrent(t *testing.T) {
	c, src := newTestCan(t)
	const n = 16
	for i := range n {
		writeTree(t, src, map[string]string{fmt.Sprintf("f%02d/data", i): "x"})
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.MoveToBin(filepath.Join(src, fmt.Sprintf("f%02d", i))))
		}()
	}
	wg.Wait()

	entries, err := c.List()
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestRestoreNotFound(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"x": "1"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "x")))
	before := readTree(t, c.Root())

	err := c.Restore("ghost")
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, readTree(t, c.Root()))
}

func TestRestoreFailureKeepsRecord(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			c, src := newTestCan(t, WithCompression(compress))
			writeTree(t, src, map[string]string{"clash": "file content"})
			require.NoError(t, c.MoveToBin(filepath.Join(src, "clash")))

			// a directory now sits where the file would go back
			writeTree(t, src, map[string]string{"clash/": ""})

			err := c.Restore("clash")
			assert.True(t, IsFileExists(err), "%v", err)

			entry, err := c.store.Get("clash")
			require.NoError(t, err)
			assert.Equal(t, compress, entry.Archived)

			_, err = os.Stat(c.archiver.Path("clash"))
			assert.Equal(t, compress, err == nil)
			_, err = os.Stat(filepath.Join(c.Root(), "clash"))
			assert.Equal(t, !compress, err == nil)

			pending, err := c.Pending()
			require.NoError(t, err)
			assert.Empty(t, pending)

			// clearing the way lets the restore succeed
			require.NoError(t, os.Remove(filepath.Join(src, "clash")))
			require.NoError(t, c.Restore("clash"))
			data, err := os.ReadFile(filepath.Join(src, "clash"))
			require.NoError(t, err)
			assert.Equal(t, "file content", string(data))
		})
	}
}

func TestRestoreRecordWithoutArchivedField(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"old.txt": "legacy"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "old.txt")))

	// stores written before the archived field existed
	entry, err := c.store.Get("old.txt")
	require.NoError(t, err)
	entry.Archived = false
	require.NoError(t, c.store.Save(entry))

	require.NoError(t, c.Restore("old.txt"))
	data, err := os.ReadFile(filepath.Join(src, "old.txt"))
	require.NoError(t, err)
	assert.Equal(t, "legacy", string(data))
}

func TestRemove(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"gone/a": "1", "kept": "2"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "gone")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "kept")))

	require.NoError(t, c.Remove("gone"))

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Name)
	assert.ElementsMatch(t, []string{metadata.FileName, "kept" + archive.Ext}, rootNames(t, c))

	assert.True(t, IsNotFound(c.Remove("gone")))
}

func TestRemoveRecordWithoutContent(t *testing.T) {
	c, src := newTestCan(t, WithCompression(false))
	writeTree(t, src, map[string]string{"vanished": "1"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "vanished")))
	require.NoError(t, os.Remove(filepath.Join(c.Root(), "vanished")))

	require.NoError(t, c.Remove("vanished"))
	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearCan(t *testing.T) {
	c, src := newTestCan(t, WithConcurrency(4))
	const n = 24
	for i := range n {
		writeTree(t, src, map[string]string{fmt.Sprintf("item%02d/file", i): "data"})
		require.NoError(t, c.MoveToBin(filepath.Join(src, fmt.Sprintf("item%02d", i))))
	}
	// content without a record
	writeTree(t, c.Root(), map[string]string{"orphan/file": "?", "stray.zip": "?"})

	require.NoError(t, c.ClearCan())

	assert.Equal(t, []string{metadata.FileName}, rootNames(t, c))
	entries, err := c.store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearCanEmpty(t *testing.T) {
	c, _ := newTestCan(t)
	require.NoError(t, c.ClearCan())
	_, err := os.Stat(c.Root())
	assert.NoError(t, err)
}

func TestClearCanKeepsOtherPendingMarkers(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"a": "1"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "a")))

	// an operation of an earlier run that never finished
	require.NoError(t, c.store.Begin(metadata.OpRestore, "ghost", filepath.Join(src, "ghost")))
	require.NoError(t, c.store.Fail(metadata.OpRestore, "ghost", errors.New("interrupted")))

	require.NoError(t, c.ClearCan())

	pending, err := c.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ghost", pending[0].Name)
	assert.Equal(t, metadata.OpRestore, pending[0].Op)
}

func TestClearCanMixedForms(t *testing.T) {
	c, src := newTestCan(t, WithCompression(false))
	writeTree(t, src, map[string]string{"plain": "p", "report.zip": "not really a zip"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "plain")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "report.zip")))

	c.opts.compress = true
	writeTree(t, src, map[string]string{"packed": "z"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "packed")))

	require.NoError(t, c.ClearCan())
	assert.Equal(t, []string{metadata.FileName}, rootNames(t, c))
}

func TestInfo(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	c, src := newTestCan(t, WithClock(func() time.Time { return now }))

	out, err := c.Info()
	require.NoError(t, err)
	assert.Equal(t, EmptyMessage, out)

	writeTree(t, src, map[string]string{
		"zeta.txt":  "12345",
		"alpha.bin": strings.Repeat("a", 2048),
	})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "zeta.txt")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "alpha.bin")))

	out, err = c.Info()
	require.NoError(t, err)
	assert.Contains(t, out, "File Name")
	assert.Contains(t, out, "5.0 bytes")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "01-05-2024,12:30:00")
	assert.Less(t, strings.Index(out, "alpha.bin"), strings.Index(out, "zeta.txt"))
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }

	base := t.TempDir()
	src := filepath.Join(base, "src")
	c, err := New(Config{
		Root:         filepath.Join(base, "can"),
		PruneExclude: []string{"*.keep"},
	}, WithClock(clock))
	require.NoError(t, err)

	writeTree(t, src, map[string]string{"old": "1", "old.keep": "2", "new": "3"})
	require.NoError(t, c.MoveToBin(filepath.Join(src, "old")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "old.keep")))
	now = now.Add(72 * time.Hour)
	require.NoError(t, c.MoveToBin(filepath.Join(src, "new")))
	now = now.Add(time.Hour)

	removed, err := c.Prune(48 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, removed)

	entries, err := c.List()
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"new", "old.keep"}, names)

	_, err = c.Prune(0)
	assert.Error(t, err)
}

func TestPendingClearedAfterOperations(t *testing.T) {
	c, src := newTestCan(t)
	writeTree(t, src, map[string]string{"a": "1", "b": "2"})

	require.NoError(t, c.MoveToBin(filepath.Join(src, "a")))
	require.NoError(t, c.MoveToBin(filepath.Join(src, "b")))
	require.NoError(t, c.Restore("a"))
	require.NoError(t, c.Remove("b"))

	pending, err := c.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, err = os.Stat(filepath.Join(c.Root(), metadata.PendingFileName))
	assert.True(t, os.IsNotExist(err))
}
