// Package debug prints the smartrm debug log.
package debug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/nxadm/tail"
)

// Mode selects how the log is shown
type Mode string

const (
	// ModeFull prints the whole log file
	ModeFull Mode = "full"
	// ModeLive follows new entries as they are written
	ModeLive Mode = "live"
)

// Logs writes the log at path to w. enabled reports whether logging is
// turned on in the config, which only changes the error messages.
func Logs(w io.Writer, path string, enabled bool, mode Mode) error {
	switch mode {
	case ModeLive:
		return tailLiveLogs(w, path, enabled)
	case ModeFull, "":
		return showExistingLogs(w, path, enabled)
	default:
		return fmt.Errorf("unknown debug mode %q: use %q or %q", mode, ModeFull, ModeLive)
	}
}

func tailLiveLogs(w io.Writer, path string, enabled bool) error {
	if !enabled {
		return errors.New("logging is not enabled in config: enable logging in config for live debugging")
	}
	if _, err := os.Stat(path); errors.Is(err, iofs.ErrNotExist) {
		return errors.New("log file does not exist: try running some commands with logging enabled")
	}

	// without a terminal there is nobody to stop the follow
	shouldFollow := isatty.IsTerminal(os.Stdout.Fd())
	t, err := tail.TailFile(path, tail.Config{
		ReOpen:    shouldFollow,
		Follow:    shouldFollow,
		MustExist: true,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekEnd,
		},
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		fmt.Fprintln(w, line.Text)
	}
	return nil
}

func showExistingLogs(w io.Writer, path string, enabled bool) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			if !enabled {
				return errors.New("logging is not enabled in config: enable logging to create log files")
			}
			return errors.New("no log file exists yet: try running some commands first")
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}
