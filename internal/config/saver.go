package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// saveConfig is the JSON-marshaling intermediary that uses string durations.
type saveConfig struct {
	Preload  savePreloadConfig  `json:"preload"`
	Renderer saveRendererConfig `json:"renderer"`
	Display  DisplayConfig      `json:"display"`
	Cache    CacheConfig        `json:"cache,omitempty"`
	Keymap   KeymapConfig       `json:"keymap"`
	UI       saveUIConfig       `json:"ui"`
	Features FeaturesConfig     `json:"features,omitempty"`
}

type savePreloadConfig struct {
	Radius *int   `json:"radius,omitempty"`
	Delay  string `json:"delay,omitempty"`
}

type saveRendererConfig struct {
	Backend string   `json:"backend,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
}

type saveUIConfig struct {
	ShowStatus *bool             `json:"showStatus,omitempty"`
	Theme      string            `json:"theme,omitempty"`
	Colors     map[string]string `json:"colors,omitempty"`
}

// toSaveConfig converts Config to the JSON-serializable format.
func toSaveConfig(cfg *Config) saveConfig {
	return saveConfig{
		Preload: savePreloadConfig{
			Radius: &cfg.Preload.Radius,
			Delay:  cfg.Preload.Delay.String(),
		},
		Renderer: saveRendererConfig{
			Backend: cfg.Renderer.Backend,
			Command: cfg.Renderer.Command,
			Args:    cfg.Renderer.Args,
			Timeout: cfg.Renderer.Timeout.String(),
		},
		Display: cfg.Display,
		Cache:   cfg.Cache,
		Keymap:  cfg.Keymap,
		UI: saveUIConfig{
			ShowStatus: &cfg.UI.ShowStatus,
			Theme:      cfg.UI.Theme,
			Colors:     cfg.UI.Colors,
		},
		Features: cfg.Features,
	}
}

// Save writes the config to ~/.config/pixelterm/config.json
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sc := toSaveConfig(cfg)
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}
