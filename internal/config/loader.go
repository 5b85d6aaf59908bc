package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	configDir  = "pixelterm"
	configFile = "config.json"
)

var testConfigPath string

// SetTestConfigPath redirects ConfigPath for tests.
func SetTestConfigPath(path string) { testConfigPath = path }

// ResetTestConfigPath restores the default ConfigPath.
func ResetTestConfigPath() { testConfigPath = "" }

// ConfigPath returns the default config file location,
// $XDG_CONFIG_HOME/pixelterm/config.json or ~/.config/pixelterm/config.json.
func ConfigPath() string {
	if testConfigPath != "" {
		return testConfigPath
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDir, configFile)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", configFile)
	}
	return filepath.Join(home, ".config", configDir, configFile)
}

// Load reads the config from ConfigPath. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, layered over the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw saveConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := mergeConfig(cfg, &raw); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig copies the fields present in raw onto cfg.
func mergeConfig(cfg *Config, raw *saveConfig) error {
	if raw.Preload.Radius != nil {
		cfg.Preload.Radius = *raw.Preload.Radius
	}
	if raw.Preload.Delay != "" {
		d, err := time.ParseDuration(raw.Preload.Delay)
		if err != nil {
			return fmt.Errorf("preload.delay: %w", err)
		}
		cfg.Preload.Delay = d
	}

	if raw.Renderer.Backend != "" {
		cfg.Renderer.Backend = strings.ToLower(raw.Renderer.Backend)
	}
	if raw.Renderer.Command != "" {
		cfg.Renderer.Command = expandHome(raw.Renderer.Command)
	}
	if raw.Renderer.Args != nil {
		cfg.Renderer.Args = raw.Renderer.Args
	}
	if raw.Renderer.Timeout != "" {
		d, err := time.ParseDuration(raw.Renderer.Timeout)
		if err != nil {
			return fmt.Errorf("renderer.timeout: %w", err)
		}
		cfg.Renderer.Timeout = d
	}

	if raw.Display.Scale != 0 {
		cfg.Display.Scale = raw.Display.Scale
	}
	if raw.Display.ScaleStep != 0 {
		cfg.Display.ScaleStep = raw.Display.ScaleStep
	}
	if raw.Display.MinScale != 0 {
		cfg.Display.MinScale = raw.Display.MinScale
	}
	if raw.Display.MaxScale != 0 {
		cfg.Display.MaxScale = raw.Display.MaxScale
	}

	if raw.Cache.Dir != "" {
		cfg.Cache.Dir = expandHome(raw.Cache.Dir)
	}
	for k, v := range raw.Keymap.Overrides {
		cfg.Keymap.Overrides[k] = v
	}
	if raw.UI.ShowStatus != nil {
		cfg.UI.ShowStatus = *raw.UI.ShowStatus
	}
	if raw.UI.Theme != "" {
		cfg.UI.Theme = raw.UI.Theme
	}
	if raw.UI.Colors != nil {
		cfg.UI.Colors = raw.UI.Colors
	}
	for k, v := range raw.Features.Flags {
		cfg.Features.Flags[k] = v
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
