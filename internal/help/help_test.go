package help

import (
	"strings"
	"testing"

	"github.com/wilbur182/pixelterm/internal/keymap"
)

var entries = []keymap.HelpEntry{
	{Keys: []string{"right", "d"}, Command: keymap.CmdNext, Description: "Next image"},
	{Keys: []string{"q"}, Command: keymap.CmdQuit, Description: "Quit"},
}

func TestMarkdown(t *testing.T) {
	md := Markdown("Keys", entries)
	for _, want := range []string{"# Keys", "| `right` `d` | Next image |", "| `q` | Quit |"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
}

func TestPlain(t *testing.T) {
	lines := Plain(entries)
	want := []string{
		"right/d  Next image",
		"q        Quit",
	}
	if len(lines) != len(want) {
		t.Fatalf("Plain() = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRender_NarrowFallsBackToPlain(t *testing.T) {
	r := NewRenderer(nil)
	lines := r.Render(entries, 20, "dark")
	if len(lines) != 2 || lines[0] != "right/d  Next image" {
		t.Errorf("Render() narrow = %q", lines)
	}
}

func TestRender_Caches(t *testing.T) {
	r := NewRenderer(nil)
	first := r.Render(entries, 60, "notty")
	if len(first) == 0 {
		t.Fatal("Render() returned no lines")
	}
	if !strings.Contains(strings.Join(first, "\n"), "Next image") {
		t.Errorf("Render() missing description:\n%s", strings.Join(first, "\n"))
	}
	if len(r.cache) != 1 {
		t.Errorf("cache size = %d, want 1", len(r.cache))
	}
	r.Render(entries, 60, "notty")
	if len(r.cache) != 1 {
		t.Errorf("repeat render should hit the cache, size = %d", len(r.cache))
	}
	r.Render(entries, 70, "notty")
	if len(r.cache) != 2 {
		t.Errorf("new width should add an entry, size = %d", len(r.cache))
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("x", 40, "dark")
	if a != cacheKey("x", 40, "dark") {
		t.Error("cacheKey should be deterministic")
	}
	if a == cacheKey("x", 41, "dark") || a == cacheKey("x", 40, "light") {
		t.Error("cacheKey should vary with width and style")
	}
}
