// Package app is the terminal UI: a bubbletea model that shows the current
// image of a session and maps keys to session operations.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/config"
	"github.com/wilbur182/pixelterm/internal/help"
	"github.com/wilbur182/pixelterm/internal/keymap"
	"github.com/wilbur182/pixelterm/internal/preload"
	"github.com/wilbur182/pixelterm/internal/render"
	"github.com/wilbur182/pixelterm/internal/session"
)

// statusRows is the height of the filename and status lines.
const statusRows = 2

// Watcher is the directory watcher used for automatic refresh.
type Watcher interface {
	Watch(dir string) error
	Events() <-chan string
}

// Options configures New.
type Options struct {
	Session *session.Session
	// Backend receives viewport changes. Nil leaves the viewport alone.
	Backend render.Backend
	Config  *config.Config
	Keymap  *keymap.Registry
	// Watcher is nil when directory watching is off.
	Watcher Watcher
	// Passes delivers preload reports, usually fed from session.Options.OnPass.
	Passes  <-chan preload.Report
	Logger  *slog.Logger
	Version string

	// CopyText writes to the clipboard. Defaults to clipboard.WriteAll.
	CopyText func(string) error
}

// Model is the root bubbletea model.
type Model struct {
	cfg      *config.Config
	sess     *session.Session
	backend  render.Backend
	keymap   *keymap.Registry
	watcher  Watcher
	passes   <-chan preload.Report
	help     *help.Renderer
	logger   *slog.Logger
	copyText func(string) error
	version  string

	width, height int
	ready         bool

	// Foreground render state. epoch increases with every request.
	epoch      int
	rendering  bool
	image      string
	imageEntry catalog.Entry
	renderErr  error
	spinner    spinner.Model

	showHelp      bool
	confirmDelete bool

	statusMsg     string
	statusExpiry  time.Time
	statusIsError bool
}

// New creates the model. The session should already have a directory
// loaded.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Keymap == nil {
		opts.Keymap = keymap.NewRegistry()
		keymap.RegisterDefaults(opts.Keymap)
	}
	if opts.CopyText == nil {
		opts.CopyText = clipboard.WriteAll
	}
	m := Model{
		cfg:       opts.Config,
		sess:      opts.Session,
		backend:   opts.Backend,
		keymap:    opts.Keymap,
		watcher:   opts.Watcher,
		passes:    opts.Passes,
		help:      help.NewRenderer(opts.Logger),
		logger:    opts.Logger,
		copyText:  opts.CopyText,
		version:   opts.Version,
		rendering: true,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.watchCurrentDir()
	return m
}

// Init starts the first render and the background listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.renderCmd(m.epoch),
		m.spinner.Tick,
		tickCmd(),
		waitForPass(m.passes),
	}
	if m.watcher != nil {
		cmds = append(cmds, waitForChange(m.watcher.Events()))
	}
	return tea.Batch(cmds...)
}

// renderCmd fetches the current image's text off the UI goroutine.
func (m Model) renderCmd(epoch int) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		e, _ := sess.Current()
		text, err := sess.CurrentRenderedText(context.Background())
		return RenderedMsg{Epoch: epoch, Entry: e, Text: text, Err: err}
	}
}

// requestRender starts a render for the current image. Earlier requests
// still in flight are ignored when they complete.
func (m *Model) requestRender() tea.Cmd {
	m.epoch++
	cmds := []tea.Cmd{m.renderCmd(m.epoch)}
	if !m.rendering {
		cmds = append(cmds, m.spinner.Tick)
	}
	m.rendering = true
	return tea.Batch(cmds...)
}

// watchCurrentDir points the watcher at the session directory.
func (m *Model) watchCurrentDir() {
	if m.watcher == nil || m.sess == nil {
		return
	}
	dir := m.sess.Dir()
	if dir == "" {
		return
	}
	if err := m.watcher.Watch(dir); err != nil {
		m.logger.Debug("watch directory", "dir", dir, "err", err)
	}
}

// ShowToast displays a temporary status message.
func (m *Model) ShowToast(msg string, duration time.Duration) {
	m.statusMsg = msg
	m.statusExpiry = time.Now().Add(duration)
	m.statusIsError = false
}

// ShowError displays a temporary error message.
func (m *Model) ShowError(msg string) {
	m.ShowToast(msg, 5*time.Second)
	m.statusIsError = true
}

// ClearToast clears any expired toast message.
func (m *Model) ClearToast() {
	if m.statusMsg != "" && time.Now().After(m.statusExpiry) {
		m.statusMsg = ""
		m.statusIsError = false
	}
}

// viewport is the area available to the image.
func (m Model) viewport() render.Viewport {
	h := m.height
	if m.cfg.UI.ShowStatus {
		h -= statusRows
	}
	return render.Viewport{Width: max(m.width, 1), Height: max(h, 1)}
}
