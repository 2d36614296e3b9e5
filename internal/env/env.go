package env

import (
	"os"
	"path/filepath"
)

const (
	defaultXDGConfigDirname = ".config"
	defaultXDGDataDirname   = ".local/share"
)

var (
	// SMARTRM_CONFIG_PATH is the config file used when --config is not given
	SMARTRM_CONFIG_PATH string

	// SMARTRM_LOG_PATH is the debug log file
	SMARTRM_LOG_PATH string

	// SMARTRM_TRASH_DIR overrides the trash can directory when set
	SMARTRM_TRASH_DIR string
)

func init() {
	Load()
}

// Load (re)reads the environment. Directories follow
// https://specifications.freedesktop.org/basedir-spec/latest/
func Load() {
	SMARTRM_CONFIG_PATH = os.Getenv("SMARTRM_CONFIG_PATH")
	if SMARTRM_CONFIG_PATH == "" {
		SMARTRM_CONFIG_PATH = filepath.Join(xdgDir("XDG_CONFIG_HOME", defaultXDGConfigDirname), "smartrm", "config.yaml")
	}

	SMARTRM_LOG_PATH = os.Getenv("SMARTRM_LOG_PATH")
	if SMARTRM_LOG_PATH == "" {
		SMARTRM_LOG_PATH = filepath.Join(xdgDir("XDG_DATA_HOME", defaultXDGDataDirname), "smartrm", "debug.log")
	}

	SMARTRM_TRASH_DIR = os.Getenv("SMARTRM_TRASH_DIR")
}

func xdgDir(key, fallback string) string {
	if dir := os.Getenv(key); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// relative to the working directory as a last resort
		return fallback
	}
	return filepath.Join(home, fallback)
}
