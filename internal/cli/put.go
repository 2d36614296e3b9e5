package cli

import (
	"fmt"

	"al.essio.dev/pkg/shellescape"
	"github.com/babarot/smartrm/internal/trash"
	"github.com/fatih/color"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
)

// Put moves each path into the trash can
func (c *CLI) Put(args []string) error {
	c.logger.Debug("cli.put started")
	defer c.logger.Debug("cli.put finished")

	return forEach(args, "path", func(path string) error {
		if err := c.can.MoveToBin(path); err != nil {
			if c.option.Force && trash.IsNotFound(err) {
				c.logger.Debug("ignored nonexistent path", "path", path)
				return nil
			}
			return err
		}
		fmt.Fprintf(c.stdout, "%s %s moved to trash can\n", success("✓"), shellescape.Quote(path))
		return nil
	})
}

// Restore moves each named entry back to where it came from
func (c *CLI) Restore(names []string) error {
	c.logger.Debug("cli.restore started")
	defer c.logger.Debug("cli.restore finished")

	return forEach(names, "name of an entry in the trash can", func(name string) error {
		if err := c.can.Restore(name); err != nil {
			if trash.IsFileExists(err) {
				return fmt.Errorf("%w (restore path unavailable)", err)
			}
			return err
		}
		fmt.Fprintf(c.stdout, "%s %s restored from trash can\n", success("✓"), shellescape.Quote(name))
		return nil
	})
}

// Clear permanently deletes each named entry
func (c *CLI) Clear(names []string) error {
	c.logger.Debug("cli.clear started")
	defer c.logger.Debug("cli.clear finished")

	return forEach(names, "name of an entry in the trash can", func(name string) error {
		if err := c.can.Remove(name); err != nil {
			if c.option.Force && trash.IsNotFound(err) {
				return nil
			}
			return err
		}
		fmt.Fprintf(c.stdout, "%s %s removed from trash can\n", success("✓"), shellescape.Quote(name))
		return nil
	})
}
