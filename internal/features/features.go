// Package features gates optional behavior behind named flags. A flag's
// value comes from a command-line override, then the config file, then its
// compiled-in default.
package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wilbur182/pixelterm/internal/config"
)

// ErrNotInitialized is returned when the feature manager is not initialized.
var ErrNotInitialized = errors.New("feature manager not initialized")

// Feature is a known flag with its default value.
type Feature struct {
	Name        string
	Default     bool
	Description string
}

var (
	// Preload renders neighbors of the current image in the background.
	Preload = Feature{
		Name:        "preload",
		Default:     true,
		Description: "Render nearby images in the background",
	}

	// WatchDirectory rescans the directory when image files change.
	WatchDirectory = Feature{
		Name:        "watch_directory",
		Default:     true,
		Description: "Rescan automatically when images are added or removed",
	}
)

var allFeatures = []Feature{
	Preload,
	WatchDirectory,
}

var defaultValues = func() map[string]bool {
	m := make(map[string]bool, len(allFeatures))
	for _, f := range allFeatures {
		m[f.Name] = f.Default
	}
	return m
}()

// IsKnownFeature reports whether name is registered.
func IsKnownFeature(name string) bool {
	_, ok := defaultValues[name]
	return ok
}

// Manager holds flag state.
type Manager struct {
	mu        sync.RWMutex
	cfg       *config.Config
	overrides map[string]bool
}

var globalManager *Manager

// Init sets up the manager. Call once at startup after the config is loaded.
func Init(cfg *config.Config) {
	globalManager = &Manager{
		cfg:       cfg,
		overrides: make(map[string]bool),
	}
}

// SetOverride forces a flag for this run. Overrides beat config values.
func SetOverride(name string, enabled bool) {
	if globalManager == nil {
		return
	}
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.overrides[name] = enabled
}

// ParseOverride applies a "name" or "name=bool" command-line override.
func ParseOverride(override string) error {
	name, value, hasValue := strings.Cut(strings.TrimSpace(override), "=")
	if !IsKnownFeature(name) {
		return fmt.Errorf("unknown feature %q", name)
	}
	enabled := true
	if hasValue {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("feature %s: %w", name, err)
		}
		enabled = v
	}
	SetOverride(name, enabled)
	return nil
}

// IsEnabled reports whether a flag is on.
func IsEnabled(name string) bool {
	if globalManager == nil {
		return defaultValues[name]
	}
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	return globalManager.lookup(name)
}

// lookup resolves a flag; the caller holds mu.
func (m *Manager) lookup(name string) bool {
	if enabled, ok := m.overrides[name]; ok {
		return enabled
	}
	if m.cfg != nil {
		if enabled, ok := m.cfg.Features.Flags[name]; ok {
			return enabled
		}
	}
	return defaultValues[name]
}

// List returns every known flag with its current state.
func List() map[string]bool {
	result := make(map[string]bool, len(allFeatures))
	if globalManager == nil {
		for _, f := range allFeatures {
			result[f.Name] = f.Default
		}
		return result
	}
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	for _, f := range allFeatures {
		result[f.Name] = globalManager.lookup(f.Name)
	}
	return result
}

// ListAll returns a copy of the known flags with metadata.
func ListAll() []Feature {
	result := make([]Feature, len(allFeatures))
	copy(result, allFeatures)
	return result
}

// SetEnabled persists a flag to the config file and updates the running
// config.
func SetEnabled(name string, enabled bool) error {
	if globalManager == nil {
		return ErrNotInitialized
	}

	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()

	// Reload so edits made since startup are not overwritten.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Features.Flags == nil {
		cfg.Features.Flags = make(map[string]bool)
	}
	cfg.Features.Flags[name] = enabled
	globalManager.cfg.Features.Flags = cfg.Features.Flags

	return config.Save(cfg)
}
