package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/wilbur182/pixelterm/internal/keymap"
	"github.com/wilbur182/pixelterm/internal/session"
	"github.com/wilbur182/pixelterm/internal/styles"
)

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	st := m.sess.Status()
	vp := m.viewport()

	var body string
	switch {
	case m.showHelp:
		body = m.helpView(vp.Width, vp.Height)
	case st.Count == 0:
		body = lipgloss.Place(vp.Width, vp.Height, lipgloss.Center, lipgloss.Center,
			styles.Empty.Render(emptyText(st)))
	case m.renderErr != nil && m.imageEntry.Key == st.Entry.Key:
		body = lipgloss.Place(vp.Width, vp.Height, lipgloss.Center, lipgloss.Center,
			styles.ErrorText.Render(truncate("Cannot render "+st.Entry.Name()+": "+m.renderErr.Error(), vp.Width)))
	default:
		body = clipLines(m.image, vp.Height)
	}

	if !m.cfg.UI.ShowStatus {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		padLines(body, vp.Height),
		m.titleLine(st),
		m.statusLine(st),
	)
}

func emptyText(st session.Status) string {
	if st.Dir == "" {
		return "No images"
	}
	return "No images in " + st.Dir
}

// titleLine shows the current file name, or the delete prompt.
func (m Model) titleLine(st session.Status) string {
	if m.confirmDelete {
		prompt := fmt.Sprintf("Delete %s? (y/n)", st.Entry.Name())
		return centerText(styles.Confirm.Render(truncate(prompt, m.width-2)), m.width)
	}
	if st.Count == 0 {
		return ""
	}
	return centerText(styles.FileName.Render(truncate(st.Entry.Name(), m.width)), m.width)
}

// statusLine shows position, zoom, preload state and the toast message.
func (m Model) statusLine(st session.Status) string {
	left := ""
	if st.Count > 0 {
		left = styles.Position.Render(fmt.Sprintf("%d/%d", st.Index+1, st.Count)) + "  "
	}
	left += fmt.Sprintf("zoom %d%%", int(st.Scale*100+0.5))
	if m.rendering {
		left += "  " + m.spinner.View()
	}

	var right string
	switch {
	case !st.PreloadEnabled:
		right = styles.Muted.Render("no preload")
	case st.Preloading:
		right = "preload ●"
	default:
		right = styles.Muted.Render("preload")
	}

	if m.statusMsg != "" {
		style := styles.Message
		if m.statusIsError {
			style = styles.ErrorText
		}
		room := m.width - ansi.StringWidth(left) - ansi.StringWidth(right) - 4
		if room > 0 {
			left += "  " + style.Render(truncate(m.statusMsg, room))
		}
	}

	gap := m.width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		return styles.StatusBar.Render(ansi.Truncate(left, m.width, ""))
	}
	return styles.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) helpView(width, height int) string {
	entries := m.keymap.Help(keymap.ContextGlobal)
	style := styles.GetCurrentTheme().Colors.MarkdownTheme
	lines := m.help.Render(entries, min(width-4, 72), style)
	box := styles.Overlay.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// truncate shortens s to width cells with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// centerText pads s on the left so it sits in the middle of width cells.
func centerText(s string, width int) string {
	w := runewidth.StringWidth(ansi.Strip(s))
	if w >= width {
		return s
	}
	return strings.Repeat(" ", (width-w)/2) + s
}

// clipLines keeps at most n lines of s.
func clipLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// padLines extends s with empty lines to n lines so the status stays at the
// bottom.
func padLines(s string, n int) string {
	count := strings.Count(s, "\n") + 1
	if count >= n {
		return s
	}
	return s + strings.Repeat("\n", n-count)
}
