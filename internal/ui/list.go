package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/babarot/smartrm/internal/metadata"
	"github.com/babarot/smartrm/internal/size"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

const (
	ellipsis     = "…"
	minNameWidth = 12
	defaultWidth = 80
)

// RenderList renders entries one per line: name, size and how long ago it
// was removed, followed by an indented line with where it came from. Names
// are truncated to fit width.
func RenderList(entries []metadata.Entry, width int, now time.Time) string {
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	for _, e := range entries {
		sizeStr := fmt.Sprintf("%10s", size.HumanReadable(int64(e.Size)))
		ago := fmt.Sprintf("%-16s", humanize.RelTime(e.GetDeletedAt(), now, "ago", "from now"))
		from := filepath.Join(e.OriginalDir, e.Name)

		// marker, spaces and the two columns
		nameWidth := max(width-2-1-lipgloss.Width(sizeStr)-2-lipgloss.Width(ago), minNameWidth)
		name := ansi.Truncate(e.Name, nameWidth, ellipsis)

		marker := " "
		if e.Archived {
			marker = archivedStyle.Render("z")
		}
		b.WriteString(marker + " ")
		b.WriteString(nameStyle.Render(name))
		b.WriteString(strings.Repeat(" ", nameWidth-ansi.StringWidth(name)+1))
		b.WriteString(sizeStyle.Render(sizeStr))
		b.WriteString("  ")
		b.WriteString(strings.TrimRight(ago, " "))
		b.WriteString("\n    ")
		b.WriteString(dimStyle.Render(ansi.Truncate(from, width-4, ellipsis)))
		b.WriteString("\n")
	}
	return b.String()
}
