package trash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/babarot/smartrm/internal/fs"
	"github.com/babarot/smartrm/internal/metadata"
	"github.com/gobwas/glob"
)

// protector decides which paths must never be moved into the can
type protector struct {
	root  string
	home  string
	globs []glob.Glob
}

func newProtector(root string, patterns []string) (*protector, error) {
	globs, err := CompileGlobs(patterns)
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		home = filepath.Clean(home)
	}
	return &protector{root: root, home: home, globs: globs}, nil
}

// checkInput rejects paths like "." or ".." before they are made absolute
func (p *protector) checkInput(path string) error {
	if fs.IsUnsafePath(path) {
		return fmt.Errorf("%s: %w", path, ErrProtectedPath)
	}
	return nil
}

// check rejects the filesystem root, the home directory, the can, anything
// inside it, anything containing it and paths matching a configured glob
func (p *protector) check(abs string) error {
	abs = filepath.Clean(abs)
	switch {
	case abs == string(filepath.Separator):
	case p.home != "" && abs == p.home:
	case fs.Within(p.root, abs), fs.Within(abs, p.root):
	case matchAny(p.globs, abs), matchAny(p.globs, filepath.Base(abs)):
	default:
		return nil
	}
	return fmt.Errorf("%s: %w", abs, ErrProtectedPath)
}

// reserved reports whether name collides with a file the can keeps for itself
func reserved(name string) bool {
	return name == metadata.FileName ||
		name == metadata.PendingFileName ||
		strings.HasPrefix(name, metadata.TempPrefix)
}
