// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config resolves the termcast client's configuration from,
// in increasing precedence: built-in defaults, an optional YAML file
// (~/.termcast.yaml by default), and TERMCAST_* environment variables.
// Command-line flags override all of these; the binary applies them
// itself after Load.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Defaults for the public relay.
const (
	DefaultHost = "termcast.org"
	DefaultPort = 31337
	// DefaultPassword is a shared placeholder. The relay password
	// pairs a stream with a name; it is not a security boundary.
	DefaultPassword = "asdf"
	DefaultTimeout  = 5
)

// Config is everything the client needs to reach the relay.
type Config struct {
	Host          string `yaml:"host"`
	Port          uint16 `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	BellOnWatcher bool   `yaml:"bell_on_watcher" envconfig:"bell"`
	// Timeout is in seconds: how long a relay write may stall before
	// the client gives up on the connection and rebuilds it.
	Timeout uint `yaml:"timeout"`
}

// Default returns the stock configuration: the public relay and the
// local user name.
func Default() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		User:     localUser(),
		Password: DefaultPassword,
		Timeout:  DefaultTimeout,
	}
}

func localUser() string {
	if u, err := user.Current(); err == nil && len(u.Username) != 0 {
		return u.Username
	}
	return os.Getenv("USER")
}

// DefaultPath is where Load looks for a configuration file when the
// user names none.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".termcast.yaml")
}

// Load builds the effective configuration. A missing file is not an
// error; a present but malformed one is.
func Load(path string) (Config, error) {
	c := Default()
	if len(path) != 0 {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return c, err
		}
	}
	if err := envconfig.Process("termcast", &c); err != nil {
		return c, fmt.Errorf("reading TERMCAST_* environment: %w", err)
	}
	if err := c.check(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) check() error {
	if len(c.Host) == 0 {
		return fmt.Errorf("relay host must not be empty")
	}
	if c.Port == 0 {
		return fmt.Errorf("relay port must not be 0")
	}
	if c.Timeout == 0 {
		return fmt.Errorf("timeout must be at least 1 second")
	}
	return nil
}
