// Package help renders the key binding overlay.
package help

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/glamour"

	"github.com/wilbur182/pixelterm/internal/keymap"
)

const (
	// MinWidthForMarkdown is the narrowest width glamour is used at. Below
	// it the help is plain text.
	MinWidthForMarkdown = 30

	// MaxCacheEntries bounds the render cache before it is reset.
	MaxCacheEntries = 16
)

// Markdown formats entries as a markdown table under a title.
func Markdown(title string, entries []keymap.HelpEntry) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, e := range entries {
		keys := make([]string, len(e.Keys))
		for i, k := range e.Keys {
			keys[i] = "`" + k + "`"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", strings.Join(keys, " "), e.Description)
	}
	return b.String()
}

// Plain formats entries as aligned text lines.
func Plain(entries []keymap.HelpEntry) []string {
	width := 0
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = strings.Join(e.Keys, "/")
		width = max(width, len(keys[i]))
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%-*s  %s", width, keys[i], e.Description)
	}
	return lines
}

// Renderer wraps glamour with a render cache keyed by content, width and
// style.
type Renderer struct {
	mu        sync.Mutex
	renderer  *glamour.TermRenderer
	lastWidth int
	lastStyle string
	cache     map[uint64][]string
	logger    *slog.Logger
}

// NewRenderer creates a renderer. A nil logger discards.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{
		cache:  make(map[uint64][]string),
		logger: logger,
	}
}

// Render returns the help for entries as styled lines no wider than width.
// style is a glamour standard style name such as "dark" or "light".
func (r *Renderer) Render(entries []keymap.HelpEntry, width int, style string) []string {
	if width < MinWidthForMarkdown {
		return Plain(entries)
	}
	content := Markdown("Keys", entries)
	key := cacheKey(content, width, style)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[key]; ok {
		return cached
	}

	renderer, err := r.getOrCreateRenderer(width, style)
	if err != nil {
		r.logger.Debug("glamour renderer", "err", err)
		return Plain(entries)
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		r.logger.Debug("glamour render", "err", err)
		return Plain(entries)
	}

	lines := strings.Split(strings.TrimRight(rendered, "\n\r\t "), "\n")
	if len(r.cache) >= MaxCacheEntries {
		r.cache = make(map[uint64][]string)
	}
	r.cache[key] = lines
	return lines
}

func cacheKey(content string, width int, style string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(content)
	_, _ = h.Write([]byte{byte(width >> 8), byte(width)})
	_, _ = h.WriteString(style)
	return h.Sum64()
}

// getOrCreateRenderer rebuilds the glamour renderer when width or style
// change. Caller holds r.mu.
func (r *Renderer) getOrCreateRenderer(width int, style string) (*glamour.TermRenderer, error) {
	if r.renderer != nil && r.lastWidth == width && r.lastStyle == style {
		return r.renderer, nil
	}
	if style == "" {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	r.renderer = renderer
	r.lastWidth = width
	r.lastStyle = style
	return renderer, nil
}
