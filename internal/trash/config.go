package trash

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultDirName is the trash can directory created under the home directory
const DefaultDirName = "TrashCan"

// Config describes where the can lives and which paths it refuses
type Config struct {
	// Root is the trash can directory. Empty means ~/TrashCan.
	Root string

	// Protect lists glob patterns of paths that are never trashed. A pattern
	// is matched against both the absolute path and the base name.
	Protect []string

	// PruneExclude lists glob patterns of entry names Prune never removes
	PruneExclude []string
}

// DefaultRoot returns ~/TrashCan
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

type options struct {
	logger      *slog.Logger
	compress    bool
	checkSpace  bool
	concurrency int
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		compress:    true,
		checkSpace:  true,
		concurrency: runtime.NumCPU(),
		now:         time.Now,
	}
}

// Option configures a Can
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCompression controls whether entries are stored as zip archives
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithFreeSpaceCheck controls whether MoveToBin verifies the can has room
func WithFreeSpaceCheck(enabled bool) Option {
	return func(o *options) {
		o.checkSpace = enabled
	}
}

// WithConcurrency bounds the workers used by ClearCan and Prune
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithClock replaces time.Now as the source of removal times
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
