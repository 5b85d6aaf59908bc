package config

import "time"

// Renderer backends.
const (
	BackendChafa   = "chafa"
	BackendTermimg = "termimg"
)

// Config is the root configuration structure.
type Config struct {
	Preload  PreloadConfig  `json:"preload"`
	Renderer RendererConfig `json:"renderer"`
	Display  DisplayConfig  `json:"display"`
	Cache    CacheConfig    `json:"cache"`
	Keymap   KeymapConfig   `json:"keymap"`
	UI       UIConfig       `json:"ui"`
	Features FeaturesConfig `json:"features"`
}

// PreloadConfig configures the background preloader.
type PreloadConfig struct {
	Radius int           `json:"radius"` // entries on each side of the cursor
	Delay  time.Duration `json:"delay"`  // pause after each render
}

// RendererConfig selects and configures the image converter.
type RendererConfig struct {
	Backend string        `json:"backend"` // "chafa" or "termimg"
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Timeout time.Duration `json:"timeout"`
}

// DisplayConfig holds the zoom limits.
type DisplayConfig struct {
	Scale     float64 `json:"scale"`
	ScaleStep float64 `json:"scaleStep"`
	MinScale  float64 `json:"minScale"`
	MaxScale  float64 `json:"maxScale"`
}

// CacheConfig configures the on-disk render cache.
type CacheConfig struct {
	// Dir is the parent for per-catalog cache directories. Empty means the
	// system temp directory.
	Dir string `json:"dir"`
}

// FeaturesConfig holds feature flag settings.
type FeaturesConfig struct {
	Flags map[string]bool `json:"flags"`
}

// KeymapConfig holds key binding overrides.
type KeymapConfig struct {
	Overrides map[string]string `json:"overrides"`
}

// UIConfig configures UI appearance.
type UIConfig struct {
	ShowStatus bool              `json:"showStatus"`
	Theme      string            `json:"theme"`
	Colors     map[string]string `json:"colors"` // per-color theme overrides
}

// Default values.
const (
	DefaultRadius         = 10
	DefaultDelay          = 50 * time.Millisecond
	DefaultTimeout        = 10 * time.Second
	DefaultScale          = 1.0
	DefaultScaleStep      = 0.1
	DefaultMinScale       = 0.1
	DefaultMaxScale       = 3.0
	DefaultRendererBinary = "chafa"
	DefaultTheme          = "default"
)

// DefaultRendererArgs are the chafa flags used unless overridden.
func DefaultRendererArgs() []string {
	return []string{
		"--color-space", "rgb",
		"--dither", "none",
		"--relative", "off",
		"--optimize", "9",
		"--margin-right", "0",
		"--work", "9",
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Preload: PreloadConfig{
			Radius: DefaultRadius,
			Delay:  DefaultDelay,
		},
		Renderer: RendererConfig{
			Backend: BackendChafa,
			Command: DefaultRendererBinary,
			Args:    DefaultRendererArgs(),
			Timeout: DefaultTimeout,
		},
		Display: DisplayConfig{
			Scale:     DefaultScale,
			ScaleStep: DefaultScaleStep,
			MinScale:  DefaultMinScale,
			MaxScale:  DefaultMaxScale,
		},
		Keymap: KeymapConfig{
			Overrides: make(map[string]string),
		},
		UI: UIConfig{
			ShowStatus: true,
			Theme:      DefaultTheme,
		},
		Features: FeaturesConfig{
			Flags: make(map[string]bool),
		},
	}
}

// Validate checks the configuration for errors. Out-of-range values are
// reset to their defaults rather than rejected.
func (c *Config) Validate() error {
	if c.Preload.Radius <= 0 {
		c.Preload.Radius = DefaultRadius
	}
	if c.Preload.Delay < 0 {
		c.Preload.Delay = DefaultDelay
	}
	switch c.Renderer.Backend {
	case BackendChafa, BackendTermimg:
	default:
		c.Renderer.Backend = BackendChafa
	}
	if c.Renderer.Command == "" {
		c.Renderer.Command = DefaultRendererBinary
	}
	if c.Renderer.Args == nil {
		c.Renderer.Args = DefaultRendererArgs()
	}
	if c.Renderer.Timeout <= 0 {
		c.Renderer.Timeout = DefaultTimeout
	}

	d := &c.Display
	if d.MinScale <= 0 {
		d.MinScale = DefaultMinScale
	}
	if d.MaxScale < d.MinScale {
		d.MinScale, d.MaxScale = DefaultMinScale, DefaultMaxScale
	}
	if d.ScaleStep <= 0 {
		d.ScaleStep = DefaultScaleStep
	}
	if d.Scale <= 0 {
		d.Scale = DefaultScale
	}
	d.Scale = d.ClampScale(d.Scale)

	if c.Keymap.Overrides == nil {
		c.Keymap.Overrides = make(map[string]string)
	}
	if c.UI.Theme == "" {
		c.UI.Theme = DefaultTheme
	}
	if c.Features.Flags == nil {
		c.Features.Flags = make(map[string]bool)
	}
	return nil
}

// ClampScale limits s to [MinScale, MaxScale].
func (d DisplayConfig) ClampScale(s float64) float64 {
	return min(max(s, d.MinScale), d.MaxScale)
}
