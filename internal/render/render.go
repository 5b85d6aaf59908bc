// Package render turns an image file into terminal text.
//
// The rest of the program depends only on Renderer. Backends wrap either
// the external chafa converter or the in-process go-termimg encoder, and
// the output is treated as an opaque string.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

var (
	// ErrRenderFailed is matched by every RenderError.
	ErrRenderFailed = errors.New("render: failed")

	// ErrUnsupportedFormat means the file extension is not a supported image type.
	ErrUnsupportedFormat = errors.New("render: unsupported image format")

	// ErrTimeout means the conversion did not finish in time.
	ErrTimeout = errors.New("render: timed out")

	// ErrConverterMissing means the converter binary could not be found.
	ErrConverterMissing = errors.New("render: converter not found")

	errEmptyOutput = errors.New("render: converter produced no output")
)

// RenderError is a per-file render failure. It never aborts navigation or
// a preload pass; the entry is simply unavailable until the next attempt.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRenderFailed) match.
func (e *RenderError) Is(target error) bool { return target == ErrRenderFailed }

// Renderer converts one image file at a scale factor into rendered text.
type Renderer interface {
	Render(ctx context.Context, path string, scale float64) (string, error)
}

// Func adapts a plain function to Renderer.
type Func func(ctx context.Context, path string, scale float64) (string, error)

// Render calls f.
func (f Func) Render(ctx context.Context, path string, scale float64) (string, error) {
	return f(ctx, path, scale)
}

// Backend is a Renderer whose output size follows the terminal.
type Backend interface {
	Renderer
	SetViewport(Viewport)
	Viewport() Viewport
}

// Viewport is the area, in terminal cells, an image is fitted into at scale 1.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is used until the real terminal size is known.
var DefaultViewport = Viewport{Width: 80, Height: 22}

// Scaled returns the cell size for scale, never smaller than 1x1.
func (v Viewport) Scaled(scale float64) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	return max(1, int(float64(v.Width)*scale)), max(1, int(float64(v.Height)*scale))
}

// viewport is embedded by backends so the UI can resize them while the
// preload worker is rendering.
type viewport struct {
	mu sync.RWMutex
	vp Viewport
}

func (v *viewport) SetViewport(vp Viewport) {
	if vp.Width < 1 || vp.Height < 1 {
		return
	}
	v.mu.Lock()
	v.vp = vp
	v.mu.Unlock()
}

func (v *viewport) Viewport() Viewport {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.vp.Width == 0 {
		return DefaultViewport
	}
	return v.vp
}

// checkSource rejects paths that no backend could render.
func checkSource(path string) error {
	if !catalog.IsImageFile(path) {
		return &RenderError{Path: path, Err: ErrUnsupportedFormat}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &RenderError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &RenderError{Path: path, Err: fmt.Errorf("%w: is a directory", ErrUnsupportedFormat)}
	}
	return nil
}
