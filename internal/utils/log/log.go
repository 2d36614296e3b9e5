package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

var (
	defaultStylesOnce sync.Once
	defaultStyles     atomic.Pointer[Styles]
)

func initializeStyles() *Styles {
	styles := charmlog.DefaultStyles()
	for _, ls := range levelStyles {
		levelStr := strings.ToUpper(ls.level.String())
		if len(levelStr) < levelWidth {
			levelStr = levelStr + strings.Repeat(" ", levelWidth-len(levelStr))
		}
		styles.Levels[ls.level] = ls.style.SetString(levelStr)
	}
	return styles
}

// DefaultStyles returns the level styles, every label padded to the same width
func DefaultStyles() *Styles {
	defaultStylesOnce.Do(func() {
		defaultStyles.Store(initializeStyles())
	})
	return defaultStyles.Load()
}

// New creates a new logger with the given options
func New(opts ...Option) *slog.Logger {
	o := DefaultOptions()
	o.Apply(opts...)

	handler := charmlog.NewWithOptions(o.Writer, o.Options)
	handler.SetStyles(o.Styles)
	logger := slog.New(handler)

	if o.Default {
		charmlog.SetDefault(handler)
		slog.SetDefault(logger)
	}

	return logger
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return New(UseOutput(io.Discard), UseLevel(FatalLevel+1))
}

// ParseLevel maps a level name from the config file to a Level
func ParseLevel(s string) (Level, error) {
	l, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// Reset resets all global state (useful for testing)
func Reset() {
	defaultStylesOnce = sync.Once{}
	defaultStyles.Store(nil)
}
