package trash

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"
)

// Filterable defines what an entry must expose to be filtered
type Filterable interface {
	// GetName returns the entry name
	GetName() string
	// GetDeletedAt returns when the entry was trashed
	GetDeletedAt() time.Time
}

// FilterOptions holds filtering configuration
type FilterOptions struct {
	// OlderThan keeps only entries trashed at least this long ago
	OlderThan time.Duration

	// Exclude drops entries whose name matches any of these globs
	Exclude []glob.Glob

	// Now is the reference time for OlderThan. Zero means time.Now().
	Now time.Time
}

// CompileGlobs compiles every pattern, failing on the first invalid one
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Filter applies filtering rules to a slice of items
func Filter[T Filterable](items []T, opts FilterOptions) []T {
	items = rejectByGlobs(items, opts.Exclude)
	items = filterByAge(items, opts.OlderThan, opts.Now)
	return items
}

func rejectByGlobs[T Filterable](items []T, globs []glob.Glob) []T {
	if len(globs) == 0 {
		return items
	}

	var filtered []T
	for _, item := range items {
		if !matchAny(globs, item.GetName()) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func filterByAge[T Filterable](items []T, age time.Duration, now time.Time) []T {
	if age <= 0 {
		return items
	}
	if now.IsZero() {
		now = time.Now()
	}

	var filtered []T
	for _, item := range items {
		if now.Sub(item.GetDeletedAt()) >= age {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
