package config

import "runtime"

// NewDefaultConfig creates a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Core: Core{
			TrashDir:       "",
			Compress:       true,
			CheckFreeSpace: true,
			Clear: Clear{
				Concurrency: min(runtime.NumCPU(), 256),
				Confirm:     true,
			},
			Protect: Protect{
				Globs: []string{},
			},
			Prune: Prune{
				Exclude: []string{},
			},
		},
		Logging: Logging{
			Enabled: false,
			Level:   "info",
			Format:  "text",
			Rotation: Rotation{
				MaxSize:  "10MB",
				MaxFiles: 3,
			},
		},
	}
}
