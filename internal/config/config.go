package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/babarot/smartrm/internal/env"
	"github.com/go-playground/validator/v10"
	"github.com/muesli/reflow/indent"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Core    Core    `yaml:"core"`
	Logging Logging `yaml:"logging"`

	// Path is the file the config was read from
	Path string `yaml:"-"`
	// Created reports whether Parse wrote the file with default settings
	Created bool `yaml:"-"`
}

type Core struct {
	TrashDir       string  `yaml:"trash_dir" validate:"omitempty,dirpath_os"`
	Compress       bool    `yaml:"compress"`
	CheckFreeSpace bool    `yaml:"check_free_space"`
	Clear          Clear   `yaml:"clear"`
	Protect        Protect `yaml:"protect"`
	Prune          Prune   `yaml:"prune"`
}

type Clear struct {
	Concurrency int  `yaml:"concurrency" validate:"gte=1,lte=256"`
	Confirm     bool `yaml:"confirm"`
}

type Protect struct {
	Globs []string `yaml:"globs" validate:"dive,validGlob"`
}

type Prune struct {
	Exclude []string `yaml:"exclude" validate:"dive,validGlob"`
}

type Logging struct {
	Enabled  bool     `yaml:"enabled"`
	Level    string   `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format   string   `yaml:"format" validate:"required,oneof=text json logfmt"`
	Rotation Rotation `yaml:"rotation"`
}

type Rotation struct {
	MaxSize  string `yaml:"max_size" validate:"validSize"`
	MaxFiles int    `yaml:"max_files" validate:"gte=0"`
}

// TrashDirPath returns the trash can directory to use. SMARTRM_TRASH_DIR wins
// over the config file; empty means the built-in default.
func (c Config) TrashDirPath() (string, error) {
	dir := c.Core.TrashDir
	if env.SMARTRM_TRASH_DIR != "" {
		dir = env.SMARTRM_TRASH_DIR
	}
	if dir == "" {
		return "", nil
	}
	return expandPath(dir)
}

type configError struct {
	configPath string
	err        error
}

func (e configError) Error() string {
	return heredoc.Docf(`
		Couldn't read the "%s" config file.
		Please try again after fixing it or specifying a valid config path.
		The default config path is %s.
		Example YAML file contents:
		---
		%s
		---
		Original error:
		%s
		`,
		e.configPath,
		env.SMARTRM_CONFIG_PATH,
		defaultConfigContents(),
		indent.String(e.err.Error(), 2),
	)
}

type parsingError struct {
	err error
}

func (e parsingError) Error() string {
	return fmt.Sprintf("failed to parse config: %v", e.err)
}

func (e parsingError) Unwrap() error {
	return e.err
}

func defaultConfigContents() string {
	content, _ := yaml.Marshal(NewDefaultConfig())
	return string(content)
}

type parser struct {
	validate *validator.Validate
}

func newParser() parser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.Split(fld.Tag.Get("yaml"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("validSize", validateSize)
	_ = v.RegisterValidation("validGlob", validateGlob)
	_ = v.RegisterValidation("dirpath_os", validateDirPath)
	return parser{validate: v}
}

// ensureConfigFile writes the default config to path unless a file is
// already there. It reports whether the file was created.
func (p parser) ensureConfigFile(path string) (bool, error) {
	if _, err := os.Stat(path); !errors.Is(err, iofs.ErrNotExist) {
		return false, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if _, err := f.WriteString(defaultConfigContents()); err != nil {
		return false, err
	}
	return true, nil
}

func (p parser) readConfigFile(path string) (Config, error) {
	cfg := NewDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return *cfg, configError{configPath: path, err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return *cfg, configError{configPath: path, err: err}
	}

	if err := p.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return *cfg, fmt.Errorf("validation error: field %s, %q is invalid", verrs[0].Namespace(), verrs[0].Value())
		}
		return *cfg, err
	}
	return *cfg, nil
}

// Parse reads the config file at path. An empty path means the default
// location, where a missing file is created with the default settings.
// Nothing is logged here since the logger depends on the result.
func Parse(path string) (Config, error) {
	p := newParser()

	var created bool
	if path == "" {
		path = env.SMARTRM_CONFIG_PATH
		var err error
		created, err = p.ensureConfigFile(path)
		if err != nil {
			return *NewDefaultConfig(), parsingError{err: configError{configPath: path, err: err}}
		}
	}

	cfg, err := p.readConfigFile(path)
	if err != nil {
		return cfg, parsingError{err: err}
	}
	cfg.Path = path
	cfg.Created = created
	return cfg, nil
}
