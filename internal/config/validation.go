package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
)

// validateSize validates the size format (e.g., "10MB", "1GB")
func validateSize(fl validator.FieldLevel) bool {
	n, err := units.FromHumanSize(fl.Field().String())
	return err == nil && n > 0
}

func validateGlob(fl validator.FieldLevel) bool {
	_, err := glob.Compile(fl.Field().String())
	return err == nil
}

// expandPath expands environment variables and "~" in paths
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	path = os.ExpandEnv(path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}

// validateDirPath accepts any path that is an existing directory or does not
// exist yet. The stock "dirpath" validator rejects valid Windows paths such
// as "C:\Users\name\.dir".
func validateDirPath(fl validator.FieldLevel) bool {
	path := strings.TrimSpace(fl.Field().String())
	if path == "" {
		return false
	}

	expanded, err := expandPath(path)
	if err != nil {
		return false
	}

	fi, err := os.Stat(expanded)
	if err == nil {
		return fi.IsDir()
	}
	return os.IsNotExist(err)
}
