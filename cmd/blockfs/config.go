package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/blockfs"
)

const envVarPrefix = "BLOCKFS"

// Config carries defaults that would be tedious to repeat as flags. Every
// field can be overridden per invocation.
type Config struct {
	// Image is the default disk image path (env BLOCKFS_IMAGE).
	Image string `envconfig:"IMAGE"`
	// Verbose enables debug logging (env BLOCKFS_VERBOSE).
	Verbose bool `envconfig:"VERBOSE"`
}

func loadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) logger() *blockfs.Logger {
	if !c.Verbose {
		return blockfs.NoopLogger()
	}
	return blockfs.NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func (c *Config) imagePath(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if c.Image != "" {
		return c.Image, nil
	}
	return "", fmt.Errorf("no disk image given (pass --image or set %s_IMAGE)", envVarPrefix)
}
