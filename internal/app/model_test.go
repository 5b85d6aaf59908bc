package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/wilbur182/pixelterm/internal/config"
	"github.com/wilbur182/pixelterm/internal/render"
	"github.com/wilbur182/pixelterm/internal/rendercache"
	"github.com/wilbur182/pixelterm/internal/session"
)

// fakeBackend renders "IMG <name>" and records the viewport.
type fakeBackend struct {
	mu sync.Mutex
	vp render.Viewport
}

func (b *fakeBackend) Render(_ context.Context, path string, _ float64) (string, error) {
	return "IMG " + filepath.Base(path), nil
}

func (b *fakeBackend) SetViewport(vp render.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vp = vp
}

func (b *fakeBackend) Viewport() render.Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vp
}

func imageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type harness struct {
	m       Model
	sess    *session.Session
	backend *fakeBackend
	cfg     *config.Config
	copied  []string
}

func newHarness(t *testing.T, names ...string) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{vp: render.DefaultViewport},
		cfg:     config.Default(),
	}
	h.sess = session.New(session.Options{
		Renderer:       h.backend,
		Store:          rendercache.NewStore(memfs.New(), nil),
		DisablePreload: true,
	})
	t.Cleanup(h.sess.Close)
	if err := h.sess.Rescan(imageDir(t, names...)); err != nil {
		t.Fatal(err)
	}
	h.m = New(Options{
		Session: h.sess,
		Backend: h.backend,
		Config:  h.cfg,
		CopyText: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	h.resize(100, 40)
	return h
}

// send applies msg and feeds any resulting render back into the model.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	if r, ok := findRendered(cmd); ok {
		next, _ = h.m.Update(r)
		h.m = next.(Model)
	}
	return cmd
}

func (h *harness) resize(w, height int) {
	h.send(tea.WindowSizeMsg{Width: w, Height: height})
}

func (h *harness) key(s string) tea.Cmd {
	return h.send(keyMsg(s))
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// findRendered runs cmd, expanding batches, and returns the first
// RenderedMsg. Only commands that return immediately may be passed.
func findRendered(cmd tea.Cmd) (RenderedMsg, bool) {
	if cmd == nil {
		return RenderedMsg{}, false
	}
	switch msg := cmd().(type) {
	case RenderedMsg:
		return msg, true
	case tea.BatchMsg:
		for _, c := range msg {
			if r, ok := findRendered(c); ok {
				return r, true
			}
		}
	}
	return RenderedMsg{}, false
}

func plainView(m Model) string {
	return ansi.Strip(m.View())
}

func TestResize_SetsViewportAndInvalidates(t *testing.T) {
	h := newHarness(t, "a.png")
	if got, want := h.backend.Viewport(), (render.Viewport{Width: 100, Height: 38}); got != want {
		t.Errorf("viewport = %+v, want %+v", got, want)
	}
	if !strings.Contains(plainView(h.m), "IMG a.png") {
		t.Errorf("view missing image:\n%s", plainView(h.m))
	}

	gen := h.sess.Generation()
	h.resize(100, 40)
	if h.sess.Generation() != gen {
		t.Error("same size should not invalidate the cache")
	}
	h.resize(60, 20)
	if h.sess.Generation() == gen {
		t.Error("a new size should start a new cache generation")
	}
	if got := h.backend.Viewport(); got.Height != 18 || got.Width != 60 {
		t.Errorf("viewport = %+v", got)
	}
}

func TestResize_NoStatusUsesFullHeight(t *testing.T) {
	h := newHarness(t, "a.png")
	h.cfg.UI.ShowStatus = false
	h.resize(50, 30)
	if got := h.backend.Viewport(); got.Height != 30 {
		t.Errorf("viewport height = %d, want 30", got.Height)
	}
	if strings.Contains(plainView(h.m), "zoom") {
		t.Error("status line should be hidden")
	}
}

func TestNavigate_RendersNext(t *testing.T) {
	h := newHarness(t, "a.png", "b.png", "c.png")
	h.key("d")
	view := plainView(h.m)
	if !strings.Contains(view, "IMG b.png") || !strings.Contains(view, "2/3") {
		t.Errorf("after next:\n%s", view)
	}
	h.key("a")
	h.key("a")
	if !strings.Contains(plainView(h.m), "IMG c.png") {
		t.Errorf("prev should wrap to the last image:\n%s", plainView(h.m))
	}
}

func TestRender_StaleEpochDropped(t *testing.T) {
	h := newHarness(t, "a.png", "b.png", "c.png")

	next, first := h.m.Update(keyMsg("d"))
	h.m = next.(Model)
	next, second := h.m.Update(keyMsg("d"))
	h.m = next.(Model)

	older, _ := findRendered(first)
	newer, _ := findRendered(second)
	next, _ = h.m.Update(newer)
	h.m = next.(Model)
	next, _ = h.m.Update(older)
	h.m = next.(Model)

	if h.m.image != "IMG c.png" {
		t.Errorf("image = %q, stale render should be ignored", h.m.image)
	}
	if h.m.rendering {
		t.Error("rendering should be cleared by the current epoch")
	}
}

func TestRender_ErrorShown(t *testing.T) {
	h := newHarness(t, "a.png")
	h.send(RenderedMsg{Epoch: h.m.epoch, Entry: h.m.imageEntry, Err: errors.New("corrupt data")})
	if !strings.Contains(plainView(h.m), "Cannot render a.png: corrupt data") {
		t.Errorf("view:\n%s", plainView(h.m))
	}
}

func TestZoom(t *testing.T) {
	h := newHarness(t, "a.png")
	h.cfg.Display.MaxScale = 1.2

	h.key("+")
	if got := h.sess.Scale(); got != 1.1 {
		t.Fatalf("scale = %v, want 1.1", got)
	}
	h.key("+")
	if got := h.sess.Scale(); got != 1.2 {
		t.Fatalf("scale = %v, want 1.2", got)
	}
	if cmd := h.key("+"); cmd != nil {
		t.Error("zoom past the limit should not render")
	}
	if h.m.statusMsg != "Maximum zoom" {
		t.Errorf("statusMsg = %q", h.m.statusMsg)
	}
	if !strings.Contains(plainView(h.m), "zoom 120%") {
		t.Errorf("view:\n%s", plainView(h.m))
	}

	h.key("0")
	if got := h.sess.Scale(); got != 1.0 {
		t.Errorf("reset scale = %v, want 1", got)
	}
}

func TestDelete_Confirm(t *testing.T) {
	h := newHarness(t, "a.png", "b.png")
	path := filepath.Join(h.sess.Dir(), "a.png")

	h.key("r")
	if !strings.Contains(plainView(h.m), "Delete a.png? (y/n)") {
		t.Fatalf("view missing prompt:\n%s", plainView(h.m))
	}
	h.key("n")
	if h.m.confirmDelete {
		t.Fatal("n should cancel")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("cancel should keep the file")
	}

	h.key("r")
	next, cmd := h.m.Update(keyMsg("y"))
	h.m = next.(Model)
	if cmd == nil {
		t.Fatal("confirm should return a delete command")
	}
	h.send(cmd())
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}
	view := plainView(h.m)
	if !strings.Contains(view, "Deleted a.png") || !strings.Contains(view, "IMG b.png") {
		t.Errorf("after delete:\n%s", view)
	}
}

func TestDelete_FailureKeepsCatalog(t *testing.T) {
	h := newHarness(t, "a.png")
	h.send(DeletedMsg{Err: errors.New("delete a.png: permission denied")})
	if !h.m.statusIsError || !strings.Contains(h.m.statusMsg, "permission denied") {
		t.Errorf("status = %q (error %v)", h.m.statusMsg, h.m.statusIsError)
	}
	if h.sess.Status().Count != 1 {
		t.Error("catalog should be untouched")
	}
}

func TestCopyPath(t *testing.T) {
	h := newHarness(t, "a.png")
	h.key("y")
	want := filepath.Join(h.sess.Dir(), "a.png")
	if len(h.copied) != 1 || h.copied[0] != want {
		t.Errorf("copied = %v, want %q", h.copied, want)
	}
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t, "a.png", "b.png")
	h.key("?")
	if !h.m.showHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(plainView(h.m), "Next image") {
		t.Errorf("help view:\n%s", plainView(h.m))
	}
	h.key("d")
	if h.sess.Status().Index != 0 {
		t.Error("keys other than close should be ignored while help is open")
	}
	if cmd := h.key("q"); cmd != nil {
		t.Error("q should close help, not quit")
	}
	if h.m.showHelp {
		t.Error("q should close help")
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		h := newHarness(t, "a.png")
		cmd := h.key(k)
		if cmd == nil {
			t.Fatalf("%s returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s should quit", k)
		}
	}
}

func TestDirChanged_Reloads(t *testing.T) {
	h := newHarness(t, "b.png")
	if err := os.WriteFile(filepath.Join(h.sess.Dir(), "a.png"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	h.send(DirChangedMsg{Dir: h.sess.Dir()})
	st := h.sess.Status()
	if st.Count != 2 || st.Entry.Name() != "b.png" {
		t.Errorf("after reload: count %d, current %q", st.Count, st.Entry.Name())
	}

	h.send(DirChangedMsg{Dir: "/elsewhere"})
	if h.sess.Status().Count != 2 {
		t.Error("changes to another directory should be ignored")
	}
}

func TestDirChanged_AfterDeleteKeepsCache(t *testing.T) {
	h := newHarness(t, "a.png", "b.png", "c.png")
	gen := h.sess.Generation()

	h.key("r")
	next, cmd := h.m.Update(keyMsg("y"))
	h.m = next.(Model)
	h.send(cmd())
	if !strings.Contains(plainView(h.m), "IMG b.png") {
		t.Fatalf("after delete:\n%s", plainView(h.m))
	}

	// The watcher reports the deletion the app just made.
	cmd = h.send(DirChangedMsg{Dir: h.sess.Dir()})
	if _, ok := findRendered(cmd); ok {
		t.Error("an unchanged listing should not re-render")
	}
	if h.sess.Generation() != gen || gen.Closed() {
		t.Error("reload after delete should keep the disk cache generation")
	}
	if st := h.sess.Status(); st.Count != 2 || st.Entry.Name() != "b.png" || st.MemoryEntries == 0 {
		t.Errorf("status = %+v, want b.png of 2 with memory entries kept", st)
	}
}

func TestEmptyDirectory(t *testing.T) {
	h := newHarness(t)
	view := plainView(h.m)
	if !strings.Contains(view, "No images in") {
		t.Errorf("view:\n%s", view)
	}
	if cmd := h.key("d"); cmd != nil {
		t.Error("navigating an empty catalog should do nothing")
	}
	h.key("r")
	if h.m.confirmDelete {
		t.Error("delete prompt should not open without an image")
	}
}

func TestParentAtRoot(t *testing.T) {
	h := newHarness(t, "a.png")
	if err := h.sess.Rescan("/"); err != nil {
		t.Skip("root not readable")
	}
	h.key("u")
	if h.m.statusMsg != "Already at the filesystem root" {
		t.Errorf("statusMsg = %q", h.m.statusMsg)
	}
}

func TestCenterText(t *testing.T) {
	if got := centerText("abcd", 10); got != "   abcd" {
		t.Errorf("centerText = %q", got)
	}
	if got := centerText("abcdef", 4); got != "abcdef" {
		t.Errorf("centerText too wide = %q", got)
	}
}

func TestClipAndPadLines(t *testing.T) {
	if got := clipLines("1\n2\n3\n", 2); got != "1\n2" {
		t.Errorf("clipLines = %q", got)
	}
	if got := padLines("1", 3); got != "1\n\n" {
		t.Errorf("padLines = %q", got)
	}
}

func TestRoundScale(t *testing.T) {
	if got := roundScale(0.1 + 0.2); got != 0.3 {
		t.Errorf("roundScale = %v, want 0.3", got)
	}
}
