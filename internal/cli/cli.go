package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/babarot/smartrm/internal/config"
	"github.com/babarot/smartrm/internal/env"
	"github.com/babarot/smartrm/internal/trash"
	"github.com/babarot/smartrm/internal/utils/debug"
	"github.com/babarot/smartrm/internal/utils/log"
	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"
	"github.com/rs/xid"
)

type Option struct {
	Remove   bool   `short:"m" long:"remove" description:"Move paths to the trash can (default)"`
	Restore  bool   `short:"r" long:"restore" description:"Restore entries from the trash can by name"`
	Clear    bool   `short:"c" long:"clear" description:"Permanently delete entries from the trash can by name"`
	ClearAll bool   `short:"a" long:"clear-all" description:"Permanently delete everything in the trash can"`
	Info     bool   `short:"i" long:"info" description:"Show a table of the trash can contents"`
	List     bool   `short:"l" long:"list" description:"List trash can contents with their original location"`
	Prune    string `long:"prune" value-name:"DURATION" description:"Permanently delete entries removed longer ago than DURATION (e.g. 30d, 2weeks)"`
	Force    bool   `short:"f" long:"force" description:"Ignore nonexistent paths and never prompt"`
	Config   string `long:"config" description:"Path to config file" default:""`

	// spelling kept from earlier releases
	ClearAllCompat bool `long:"clearall" hidden:"yes"`

	Meta MetaOption `group:"Meta Options"`
}

type MetaOption struct {
	Version bool   `short:"V" long:"version" description:"Show version"`
	Debug   string `long:"debug" description:"View debug logs (default: \"full\")" optional-value:"full" optional:"yes" choice:"full" choice:"live"`
}

// action is the single operation selected on the command line
type action int

const (
	actionPut action = iota
	actionRestore
	actionClear
	actionClearAll
	actionInfo
	actionList
	actionPrune
)

func (o Option) action() (action, error) {
	var selected []action
	add := func(set bool, a action) {
		if set {
			selected = append(selected, a)
		}
	}
	add(o.Remove, actionPut)
	add(o.Restore, actionRestore)
	add(o.Clear, actionClear)
	add(o.ClearAll || o.ClearAllCompat, actionClearAll)
	add(o.Info, actionInfo)
	add(o.List, actionList)
	add(o.Prune != "", actionPrune)

	switch len(selected) {
	case 0:
		return actionPut, nil
	case 1:
		return selected[0], nil
	default:
		return 0, errors.New("only one of --remove, --restore, --clear, --clear-all, --info, --list and --prune may be given")
	}
}

type CLI struct {
	version Version
	option  Option
	config  config.Config
	can     *trash.Can
	logger  *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// reports whether prompts can be shown
	interactive func() bool
}

var runID = sync.OnceValue(func() string {
	return xid.New().String()
})

// Run parses the process arguments and executes the selected operation
func Run(v Version) error {
	return run(v, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(v Version, argv []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opt Option
	parser := flags.NewParser(&opt, flags.Default)
	parser.Name = v.AppName
	parser.Usage = "[OPTIONS] [path|name...]"
	args, err := parser.ParseArgs(argv)
	if err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	if opt.Meta.Version {
		fmt.Fprint(stdout, v.Print())
		return nil
	}

	cfg, err := config.Parse(opt.Config)
	if err != nil {
		return err
	}

	if opt.Meta.Debug != "" {
		return debug.Logs(stdout, env.SMARTRM_LOG_PATH, cfg.Logging.Enabled, debug.Mode(opt.Meta.Debug))
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	defer logger.Debug("main function finished")
	logger.Debug("main function started", "version", v.Version, "revision", v.Revision, "buildDate", v.BuildDate)
	if cfg.Created {
		logger.Warn("created config file as it did not exist", "config-file", cfg.Path)
	}
	logger.Debug("config file loaded", "config-file", cfg.Path)

	can, err := openCan(cfg, logger)
	if err != nil {
		return err
	}

	cli := &CLI{
		version: v,
		option:  opt,
		config:  cfg,
		can:     can,
		logger:  logger,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		interactive: func() bool {
			return isTerminal(stdin) && isTerminal(stdout)
		},
	}

	if err := cli.Run(args); err != nil {
		logger.Error("exit", "error", fmt.Errorf("cli.run failed: %w", err))
		return err
	}
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// newLogger writes to the rotated debug log when logging is enabled and
// discards everything otherwise
func newLogger(cfg config.Logging) (*slog.Logger, func(), error) {
	if !cfg.Enabled {
		return log.Discard(), func() {}, nil
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	w, err := log.NewRotateWriter(env.SMARTRM_LOG_PATH, cfg.Rotation.MaxSize, cfg.Rotation.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log: %w", err)
	}

	logger := log.New(
		log.UseOutput(w),
		log.UseLevel(level),
		log.UseReportTimestamp(true),
		log.UseReportCaller(true),
		log.UseTimeFormat(time.DateTime),
		log.UseFormatter(formatter(cfg.Format)),
		log.AsDefault(),
	).With("run_id", runID())
	return logger, func() { w.Close() }, nil
}

func formatter(name string) log.Formatter {
	switch name {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

func openCan(cfg config.Config, logger *slog.Logger) (*trash.Can, error) {
	root, err := cfg.TrashDirPath()
	if err != nil {
		return nil, fmt.Errorf("resolve trash dir: %w", err)
	}
	can, err := trash.New(
		trash.Config{
			Root:         root,
			Protect:      cfg.Core.Protect.Globs,
			PruneExclude: cfg.Core.Prune.Exclude,
		},
		trash.WithLogger(logger),
		trash.WithCompression(cfg.Core.Compress),
		trash.WithFreeSpaceCheck(cfg.Core.CheckFreeSpace),
		trash.WithConcurrency(cfg.Core.Clear.Concurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open trash can: %w", err)
	}
	return can, nil
}

func (c *CLI) Run(args []string) error {
	act, err := c.option.action()
	if err != nil {
		return err
	}

	switch act {
	case actionRestore:
		return c.Restore(args)
	case actionClear:
		return c.Clear(args)
	case actionClearAll:
		return c.ClearAll()
	case actionInfo:
		return c.Info()
	case actionList:
		return c.List()
	case actionPrune:
		return c.Prune(c.option.Prune)
	default:
		return c.Put(args)
	}
}

// forEach runs fn on every arg, continuing past failures
func forEach(args []string, what string, fn func(string) error) error {
	if len(args) == 0 {
		return fmt.Errorf("too few arguments: %s required", what)
	}
	var errs []error
	for _, arg := range args {
		if err := fn(arg); err != nil {
			errs = append(errs, err)
		}
	}
	return formatErrors(errs)
}

func formatErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = "  " + err.Error()
	}
	return fmt.Errorf("%d operations failed:\n%s", len(errs), strings.Join(msgs, "\n"))
}
