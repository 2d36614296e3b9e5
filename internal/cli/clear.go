package cli

import (
	"errors"
	"fmt"

	"github.com/babarot/smartrm/internal/ui"
)

// ClearAll permanently deletes everything in the trash can after asking the
// user to confirm
func (c *CLI) ClearAll() error {
	c.logger.Debug("cli.clear-all started")
	defer c.logger.Debug("cli.clear-all finished")

	entries, err := c.can.List()
	if err != nil {
		return err
	}

	if c.config.Core.Clear.Confirm && !c.option.Force {
		if !c.interactive() {
			return errors.New("refusing to clear the trash can without confirmation: use --force")
		}
		prompt := fmt.Sprintf("Permanently delete %d entries in %s? Type YES to continue:", len(entries), c.can.Root())
		ok, err := ui.Confirm(prompt, c.stdin, c.stdout)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.stdout, "Canceled.")
			return nil
		}
	}

	if err := c.can.ClearCan(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s Trash can cleared\n", success("✓"))
	return nil
}
