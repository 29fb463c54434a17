// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	applog "audiosync/internal/log"
)

// defaultCandidates are searched, in order, when no path is given.
var defaultCandidates = []string{
	"config.yaml",
	"config.yml",
	"config.toml",
}

// LoadConfig loads configuration from the file at path. If path is empty it
// searches the default candidates and falls back to built-in defaults when none
// exist. The format is chosen by extension (.toml, otherwise YAML). Environment
// overrides are applied after the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range defaultCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// applyEnvOverrides applies ENV_* variables on top of file values. Invalid
// values are ignored with a warning so a typo cannot stop the show.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("configuration: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}

	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_UDP_PORT
	if val, ok := os.LookupEnv("ENV_UDP_PORT"); ok {
		if port, err := strconv.Atoi(val); err == nil {
			c.Transport.UDPPort = port
			applog.Debugf("configuration: Overriding transport.udp_port from env: %d", port)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_PORT=%q: %v", val, err)
		}
	}

	// ENV_DEVICE accepts either a device index or a name fragment.
	if val, ok := os.LookupEnv("ENV_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = id
		} else {
			c.Audio.DeviceName = val
		}
		applog.Debugf("configuration: Overriding audio device from env: %s", val)
	}

	// ENV_METRICS_ADDRESS
	if val, ok := os.LookupEnv("ENV_METRICS_ADDRESS"); ok {
		c.Metrics.ListenAddress = val
		applog.Debugf("configuration: Overriding metrics.listen_address from env: %s", val)
	}
}
