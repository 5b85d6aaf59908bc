package render

import (
	"context"
	"log/slog"

	"github.com/blacktop/go-termimg"
)

// Termimg renders images in-process as unicode halfblocks. It needs no
// external binary, at the cost of coarser output than chafa.
type Termimg struct {
	viewport
	logger *slog.Logger
}

// NewTermimg creates a go-termimg backend.
func NewTermimg(logger *slog.Logger) *Termimg {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Termimg{logger: logger}
}

// Render implements Renderer.
func (t *Termimg) Render(ctx context.Context, path string, scale float64) (string, error) {
	if err := checkSource(path); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &RenderError{Path: path, Err: err}
	}

	img, err := termimg.Open(path)
	if err != nil {
		return "", &RenderError{Path: path, Err: err}
	}
	w, h := t.Viewport().Scaled(scale)
	out, err := img.Width(w).Height(h).Protocol(termimg.Halfblocks).Render()
	if err != nil {
		return "", &RenderError{Path: path, Err: err}
	}
	if out == "" {
		return "", &RenderError{Path: path, Err: errEmptyOutput}
	}
	t.logger.Debug("termimg rendered", "path", path, "bytes", len(out))
	return out, nil
}
