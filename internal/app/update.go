package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/keymap"
	"github.com/wilbur182/pixelterm/internal/session"
)

const toastDuration = 2 * time.Second

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RenderedMsg:
		if msg.Epoch != m.epoch {
			return m, nil
		}
		m.rendering = false
		m.imageEntry = msg.Entry
		m.renderErr = nil
		switch {
		case errors.Is(msg.Err, session.ErrNoImage):
			m.image = ""
		case msg.Err != nil:
			m.image = ""
			m.renderErr = msg.Err
		default:
			m.image = msg.Text
		}
		return m, nil

	case spinner.TickMsg:
		if !m.rendering {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PreloadPassMsg:
		m.logger.Debug("preload pass",
			"rendered", msg.Report.Rendered,
			"failed", msg.Report.Failed,
			"duration", msg.Report.Duration)
		return m, waitForPass(m.passes)

	case DirChangedMsg:
		var cmds []tea.Cmd
		if m.watcher != nil {
			cmds = append(cmds, waitForChange(m.watcher.Events()))
		}
		if msg.Dir == m.sess.Dir() && !m.confirmDelete {
			changed, err := m.sess.Reload()
			if err != nil {
				m.ShowError(err.Error())
			}
			if changed {
				cmds = append(cmds, m.requestRender())
			}
		}
		return m, tea.Batch(cmds...)

	case DeletedMsg:
		if msg.Err != nil {
			m.ShowError(msg.Err.Error())
			return m, nil
		}
		m.ShowToast("Deleted "+msg.Entry.Name(), toastDuration)
		return m, m.requestRender()

	case ToastMsg:
		m.ShowToast(msg.Message, msg.Duration)
		m.statusIsError = msg.IsError
		return m, nil

	case TickMsg:
		m.ClearToast()
		return m, tickCmd()
	}
	return m, nil
}

// handleResize resizes the renderer viewport. A new size makes every cached
// render stale.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	first := !m.ready
	m.width, m.height = msg.Width, msg.Height
	m.ready = true

	if m.backend != nil {
		if vp := m.viewport(); vp != m.backend.Viewport() {
			m.backend.SetViewport(vp)
			m.sess.Invalidate()
			return m, m.requestRender()
		}
	}
	if first {
		return m, m.requestRender()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := keymap.ContextGlobal
	if m.confirmDelete {
		active = keymap.ContextConfirm
	}
	id, ok := m.keymap.Resolve(msg, active)
	if !ok {
		return m, nil
	}

	if id == keymap.CmdForceQuit {
		return m, tea.Quit
	}
	if m.confirmDelete {
		return m.handleConfirm(id)
	}
	if m.showHelp {
		if id == keymap.CmdToggleHelp || id == keymap.CmdQuit {
			m.showHelp = false
		}
		return m, nil
	}
	return m.runCommand(id)
}

func (m Model) handleConfirm(id string) (tea.Model, tea.Cmd) {
	switch id {
	case keymap.CmdConfirm:
		m.confirmDelete = false
		sess := m.sess
		return m, func() tea.Msg {
			e, err := sess.DeleteCurrentFile()
			return DeletedMsg{Entry: e, Err: err}
		}
	case keymap.CmdCancel:
		m.confirmDelete = false
	}
	return m, nil
}

// runCommand executes a global command.
func (m Model) runCommand(id string) (tea.Model, tea.Cmd) {
	switch id {
	case keymap.CmdQuit:
		return m, tea.Quit

	case keymap.CmdNext, keymap.CmdPrev:
		dir := catalog.Forward
		if id == keymap.CmdPrev {
			dir = catalog.Backward
		}
		if !m.sess.Navigate(dir) {
			return m, nil
		}
		return m, m.requestRender()

	case keymap.CmdFirst, keymap.CmdLast:
		i := 0
		if id == keymap.CmdLast {
			i = -1
		}
		if !m.sess.Jump(i) {
			return m, nil
		}
		return m, m.requestRender()

	case keymap.CmdZoomIn:
		return m.zoom(m.sess.Scale() + m.cfg.Display.ScaleStep)
	case keymap.CmdZoomOut:
		return m.zoom(m.sess.Scale() - m.cfg.Display.ScaleStep)
	case keymap.CmdZoomReset:
		return m.zoom(m.cfg.Display.Scale)

	case keymap.CmdParent:
		moved, err := m.sess.Parent()
		if !moved {
			m.ShowToast("Already at the filesystem root", toastDuration)
			return m, nil
		}
		if err != nil {
			m.ShowError(err.Error())
		}
		m.watchCurrentDir()
		return m, m.requestRender()

	case keymap.CmdRefresh:
		if err := m.sess.Refresh(); err != nil {
			m.ShowError(err.Error())
		} else {
			m.ShowToast(fmt.Sprintf("Rescanned: %d images", m.sess.Status().Count), toastDuration)
		}
		m.watchCurrentDir()
		return m, m.requestRender()

	case keymap.CmdDelete:
		if _, ok := m.sess.Current(); ok {
			m.confirmDelete = true
		}
		return m, nil

	case keymap.CmdCopyPath:
		e, ok := m.sess.Current()
		if !ok {
			return m, nil
		}
		if err := m.copyText(e.Path); err != nil {
			m.ShowError("Copy failed: " + err.Error())
		} else {
			m.ShowToast("Copied "+e.Path, toastDuration)
		}
		return m, nil

	case keymap.CmdToggleHelp:
		m.showHelp = !m.showHelp
		return m, nil
	}
	return m, nil
}

// zoom applies a new scale within the configured limits.
func (m Model) zoom(target float64) (tea.Model, tea.Cmd) {
	scale := roundScale(m.cfg.Display.ClampScale(target))
	current := m.sess.Scale()
	if scale == current {
		if target > current {
			m.ShowToast("Maximum zoom", toastDuration)
		} else if target < current {
			m.ShowToast("Minimum zoom", toastDuration)
		}
		return m, nil
	}
	m.sess.SetScale(scale)
	m.ShowToast(fmt.Sprintf("Zoom %d%%", int(math.Round(scale*100))), toastDuration)
	return m, m.requestRender()
}

// roundScale drops float drift from repeated steps.
func roundScale(s float64) float64 {
	return math.Round(s*100) / 100
}
