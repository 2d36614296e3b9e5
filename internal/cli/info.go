package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/babarot/smartrm/internal/trash"
	"github.com/babarot/smartrm/internal/ui"
	"github.com/charmbracelet/x/term"
)

// Info prints the table of trash can contents
func (c *CLI) Info() error {
	out, err := c.can.Info()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, strings.TrimRight(out, "\n"))
	c.warnPending()
	return nil
}

// List prints every entry with its original location
func (c *CLI) List() error {
	entries, err := c.can.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, trash.EmptyMessage)
		return nil
	}
	var width int
	if f, ok := c.stdout.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil {
			width = w
		}
	}
	fmt.Fprint(c.stdout, ui.RenderList(entries, width, time.Now()))
	c.warnPending()
	return nil
}

func (c *CLI) warnPending() {
	pending, err := c.can.Pending()
	if err != nil {
		c.logger.Warn("failed to read pending operations", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	fmt.Fprintf(c.stderr, "%s %d operation(s) did not finish; the trash can may need attention:\n",
		warning("warning:"), len(pending))
	for _, p := range pending {
		line := fmt.Sprintf("  %s %s (%s since %s)", p.Op, p.Name, p.State, p.StartTime.Format("2006-01-02 15:04:05"))
		if p.Error != "" {
			line += ": " + p.Error
		}
		fmt.Fprintln(c.stderr, line)
	}
}
