package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/preload"
)

// RenderedMsg carries the text for the current image. Epoch identifies the
// request; results for an older epoch are dropped.
type RenderedMsg struct {
	Epoch int
	Entry catalog.Entry
	Text  string
	Err   error
}

// PreloadPassMsg reports a finished preload pass.
type PreloadPassMsg struct {
	Report preload.Report
}

// DirChangedMsg is sent when the watched directory's images change.
type DirChangedMsg struct {
	Dir string
}

// DeletedMsg reports the outcome of deleting the current image file.
type DeletedMsg struct {
	Entry catalog.Entry
	Err   error
}

// ToastMsg shows a temporary status message.
type ToastMsg struct {
	Message  string
	Duration time.Duration
	IsError  bool
}

// TickMsg drives periodic status refresh and toast expiry.
type TickMsg time.Time

const tickInterval = 250 * time.Millisecond

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForPass listens for the next preload report.
func waitForPass(ch <-chan preload.Report) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return PreloadPassMsg{Report: r}
	}
}

// waitForChange listens for the next directory change.
func waitForChange(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		dir, ok := <-ch
		if !ok {
			return nil
		}
		return DirChangedMsg{Dir: dir}
	}
}
