package keymap

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newDefaults() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

func TestResolve_Defaults(t *testing.T) {
	r := newDefaults()
	tests := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeyRight}, CmdNext},
		{runes("d"), CmdNext},
		{tea.KeyMsg{Type: tea.KeyLeft}, CmdPrev},
		{runes("a"), CmdPrev},
		{runes("+"), CmdZoomIn},
		{runes("="), CmdZoomIn},
		{runes("-"), CmdZoomOut},
		{runes("0"), CmdZoomReset},
		{runes("u"), CmdParent},
		{tea.KeyMsg{Type: tea.KeyCtrlR}, CmdRefresh},
		{runes("r"), CmdDelete},
		{runes("y"), CmdCopyPath},
		{runes("q"), CmdQuit},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, CmdForceQuit},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.msg, ContextGlobal)
		if !ok || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q", KeyString(tt.msg), got, ok, tt.want)
		}
	}
}

func TestResolve_Unbound(t *testing.T) {
	r := newDefaults()
	if id, ok := r.Resolve(runes("z"), ContextGlobal); ok {
		t.Errorf("Resolve(z) = %q, want no match", id)
	}
}

func TestResolve_ContextShadowsGlobal(t *testing.T) {
	r := newDefaults()
	if id, _ := r.Resolve(runes("y"), ContextConfirm); id != CmdConfirm {
		t.Errorf("y in confirm = %q, want %q", id, CmdConfirm)
	}
	if id, _ := r.Resolve(runes("q"), ContextConfirm); id != CmdCancel {
		t.Errorf("q in confirm = %q, want %q", id, CmdCancel)
	}
	// Unbound in confirm falls back to global.
	if id, _ := r.Resolve(tea.KeyMsg{Type: tea.KeyCtrlC}, ContextConfirm); id != CmdForceQuit {
		t.Errorf("ctrl+c in confirm = %q, want %q", id, CmdForceQuit)
	}
}

func TestResolve_UserOverride(t *testing.T) {
	r := newDefaults()
	r.SetUserOverride("n", CmdNext)
	r.SetUserOverride("r", CmdRefresh)
	r.SetUserOverride("x", "no-such-command")

	if id, _ := r.Resolve(runes("n"), ContextGlobal); id != CmdNext {
		t.Errorf("n = %q, want %q", id, CmdNext)
	}
	if id, _ := r.Resolve(runes("r"), ContextGlobal); id != CmdRefresh {
		t.Errorf("r = %q, want override %q", id, CmdRefresh)
	}
	if id, ok := r.Resolve(runes("x"), ContextGlobal); ok {
		t.Errorf("override to unknown command resolved to %q", id)
	}
}

func TestResolve_Sequence(t *testing.T) {
	r := newDefaults()
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }

	if _, ok := r.Resolve(runes("g"), ContextGlobal); ok {
		t.Fatal("first g should be pending")
	}
	if !r.HasPending() {
		t.Fatal("HasPending() = false after g")
	}
	if id, _ := r.Resolve(runes("g"), ContextGlobal); id != CmdFirst {
		t.Errorf("g g = %q, want %q", id, CmdFirst)
	}

	// An expired prefix is dropped and the key resolves alone.
	r.Resolve(runes("g"), ContextGlobal)
	now = now.Add(time.Second)
	if id, _ := r.Resolve(runes("d"), ContextGlobal); id != CmdNext {
		t.Errorf("d after expired g = %q, want %q", id, CmdNext)
	}
	if r.HasPending() {
		t.Error("pending should be cleared")
	}
}

func TestHelp(t *testing.T) {
	r := newDefaults()
	r.SetUserOverride("n", CmdNext)

	entries := r.Help(ContextGlobal)
	if len(entries) == 0 || entries[0].Command != CmdPrev {
		t.Fatalf("Help() should keep registration order, got %+v", entries)
	}
	var next *HelpEntry
	for i := range entries {
		if entries[i].Command == CmdNext {
			next = &entries[i]
		}
		if entries[i].Command == CmdConfirm {
			t.Error("confirm commands should not appear in global help")
		}
	}
	if next == nil {
		t.Fatal("next missing from help")
	}
	want := []string{"right", "d", "n"}
	if len(next.Keys) != len(want) {
		t.Fatalf("next keys = %v, want %v", next.Keys, want)
	}
	for i, k := range want {
		if next.Keys[i] != k {
			t.Errorf("next keys = %v, want %v", next.Keys, want)
		}
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "space"},
		{runes("G"), "G"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true}, "alt+x"},
		{tea.KeyMsg{Type: tea.KeyEnter}, "enter"},
		{tea.KeyMsg{Type: tea.KeyBackspace}, "backspace"},
	}
	for _, tt := range tests {
		if got := KeyString(tt.msg); got != tt.want {
			t.Errorf("KeyString() = %q, want %q", got, tt.want)
		}
	}
}
