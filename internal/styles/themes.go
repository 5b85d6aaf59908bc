// Package styles holds the lipgloss styles and color themes of the viewer.
package styles

import (
	"regexp"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// themeMu protects themeRegistry and the current theme.
var themeMu sync.RWMutex

// hexColorRegex validates #RRGGBB or #RRGGBBAA.
var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// ColorPalette holds all theme colors.
type ColorPalette struct {
	Primary string `json:"primary"`
	Accent  string `json:"accent"`

	Success string `json:"success"`
	Warning string `json:"warning"`
	Error   string `json:"error"`

	TextPrimary   string `json:"textPrimary"`
	TextSecondary string `json:"textSecondary"`
	TextMuted     string `json:"textMuted"`

	BgStatus  string `json:"bgStatus"`
	BgOverlay string `json:"bgOverlay"`

	BorderActive string `json:"borderActive"`
	DangerBright string `json:"dangerBright"`

	MarkdownTheme string `json:"markdownTheme"` // glamour style for the help overlay
}

// Theme is a named palette.
type Theme struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"displayName"`
	Colors      ColorPalette `json:"colors"`
}

// Built-in themes
var (
	DefaultTheme = Theme{
		Name:        "default",
		DisplayName: "Default Dark",
		Colors: ColorPalette{
			Primary: "#7C3AED",
			Accent:  "#F59E0B",

			Success: "#10B981",
			Warning: "#F59E0B",
			Error:   "#EF4444",

			TextPrimary:   "#F9FAFB",
			TextSecondary: "#9CA3AF",
			TextMuted:     "#6B7280",

			BgStatus:  "#1F2937",
			BgOverlay: "#111827",

			BorderActive: "#7C3AED",
			DangerBright: "#DC2626",

			MarkdownTheme: "dark",
		},
	}

	NordTheme = Theme{
		Name:        "nord",
		DisplayName: "Nord",
		Colors: ColorPalette{
			Primary: "#88C0D0",
			Accent:  "#EBCB8B",

			Success: "#A3BE8C",
			Warning: "#EBCB8B",
			Error:   "#BF616A",

			TextPrimary:   "#ECEFF4",
			TextSecondary: "#D8DEE9",
			TextMuted:     "#4C566A",

			BgStatus:  "#3B4252",
			BgOverlay: "#2E3440",

			BorderActive: "#88C0D0",
			DangerBright: "#BF616A",

			MarkdownTheme: "dark",
		},
	}

	LightTheme = Theme{
		Name:        "light",
		DisplayName: "Light",
		Colors: ColorPalette{
			Primary: "#6D28D9",
			Accent:  "#B45309",

			Success: "#047857",
			Warning: "#B45309",
			Error:   "#B91C1C",

			TextPrimary:   "#111827",
			TextSecondary: "#374151",
			TextMuted:     "#6B7280",

			BgStatus:  "#E5E7EB",
			BgOverlay: "#F9FAFB",

			BorderActive: "#6D28D9",
			DangerBright: "#DC2626",

			MarkdownTheme: "light",
		},
	}
)

var themeRegistry = map[string]Theme{
	"default": DefaultTheme,
	"nord":    NordTheme,
	"light":   LightTheme,
}

var (
	currentTheme      = "default"
	currentThemeValue = DefaultTheme
)

// IsValidHexColor checks if a string is a valid hex color code.
func IsValidHexColor(hex string) bool {
	return hexColorRegex.MatchString(hex)
}

// IsValidTheme checks if a theme name exists in the registry.
func IsValidTheme(name string) bool {
	themeMu.RLock()
	defer themeMu.RUnlock()
	_, ok := themeRegistry[name]
	return ok
}

// GetTheme returns a theme by name, or the default theme if not found.
func GetTheme(name string) Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if theme, ok := themeRegistry[name]; ok {
		return theme
	}
	return DefaultTheme
}

// GetCurrentTheme returns the active theme, overrides applied.
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentThemeValue
}

// GetCurrentThemeName returns the name of the active theme.
func GetCurrentThemeName() string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// ListThemes returns the available theme names, sorted.
func ListThemes() []string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	names := make([]string, 0, len(themeRegistry))
	for name := range themeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyTheme applies a theme by name with optional color overrides.
// Unknown names fall back to the default theme. Overrides that are not
// valid hex colors are ignored.
func ApplyTheme(name string, overrides map[string]string) {
	if !IsValidTheme(name) {
		name = DefaultTheme.Name
	}
	theme := GetTheme(name)
	for key, value := range overrides {
		applyOverride(&theme.Colors, key, value)
	}
	applyThemeColors(theme)

	themeMu.Lock()
	currentTheme = name
	currentThemeValue = theme
	themeMu.Unlock()
}

func applyOverride(p *ColorPalette, key, value string) {
	if key == "markdownTheme" {
		p.MarkdownTheme = value
		return
	}
	if !IsValidHexColor(value) {
		return
	}
	switch key {
	case "primary":
		p.Primary = value
	case "accent":
		p.Accent = value
	case "success":
		p.Success = value
	case "warning":
		p.Warning = value
	case "error":
		p.Error = value
	case "textPrimary":
		p.TextPrimary = value
	case "textSecondary":
		p.TextSecondary = value
	case "textMuted":
		p.TextMuted = value
	case "bgStatus":
		p.BgStatus = value
	case "bgOverlay":
		p.BgOverlay = value
	case "borderActive":
		p.BorderActive = value
	case "dangerBright":
		p.DangerBright = value
	}
}

// Styles used by the viewer. ApplyTheme rebuilds them.
var (
	StatusBar lipgloss.Style
	FileName  lipgloss.Style
	Position  lipgloss.Style
	Muted     lipgloss.Style
	Message   lipgloss.Style
	ErrorText lipgloss.Style
	Confirm   lipgloss.Style
	Overlay   lipgloss.Style
	Empty     lipgloss.Style
)

func init() {
	applyThemeColors(DefaultTheme)
}

func applyThemeColors(t Theme) {
	c := t.Colors
	StatusBar = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.TextSecondary)).
		Background(lipgloss.Color(c.BgStatus))
	FileName = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.TextPrimary)).
		Bold(true)
	Position = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.Primary))
	Muted = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.TextMuted))
	Message = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.Success))
	ErrorText = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.Error))
	Confirm = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.TextPrimary)).
		Background(lipgloss.Color(c.DangerBright)).
		Bold(true).
		Padding(0, 1)
	Overlay = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(c.BorderActive)).
		Background(lipgloss.Color(c.BgOverlay)).
		Padding(0, 1)
	Empty = lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.TextMuted)).
		Italic(true)
}
