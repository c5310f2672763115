// Package config loads the wfpath YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshharrison/wfpath/internal/logger"
)

// Config is the root of wfpath.yaml.
type Config struct {
	Feed   FeedConfig    `yaml:"feed"`
	Server ServerConfig  `yaml:"server"`
	Log    logger.Config `yaml:"log"`
}

// FeedConfig says where task data comes from: a file, or a command that
// prints a JSON feed.
type FeedConfig struct {
	Path    string   `yaml:"path"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// ServerConfig configures the viewer server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// URL is where `wfpath push` reaches a running server.
	URL string `yaml:"url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:7842", URL: "http://127.0.0.1:7842"},
		Log:    logger.Config{Level: "warn", Format: "console", Output: "stderr"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks settings that cannot be combined.
func (c *Config) Validate() error {
	if c.Feed.Path != "" && c.Feed.Command != "" {
		return errors.New("feed.path and feed.command are mutually exclusive")
	}
	if len(c.Feed.Args) > 0 && c.Feed.Command == "" {
		return errors.New("feed.args requires feed.command")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	return nil
}
