package cli

import (
	"fmt"

	"github.com/k1LoW/duration"
)

// Prune permanently deletes entries removed longer ago than the given duration
func (c *CLI) Prune(arg string) error {
	d, err := duration.Parse(arg)
	if err != nil {
		return fmt.Errorf("invalid prune duration %q: %w", arg, err)
	}
	c.logger.Debug("parse duration", "duration", d, "arg", arg)

	removed, err := c.can.Prune(d)
	for _, name := range removed {
		fmt.Fprintf(c.stdout, "%s %s removed from trash can\n", success("✓"), name)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintf(c.stdout, "Nothing older than %s\n", arg)
	}
	return nil
}
