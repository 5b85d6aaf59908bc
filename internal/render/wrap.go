package render

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single conversion.
const DefaultTimeout = 10 * time.Second

type timeoutRenderer struct {
	next    Renderer
	timeout time.Duration
}

// WithTimeout bounds every call to r. Expiry yields a RenderError wrapping
// ErrTimeout even if r ignores its context. A non-positive d returns r.
func WithTimeout(r Renderer, d time.Duration) Renderer {
	if d <= 0 {
		return r
	}
	return &timeoutRenderer{next: r, timeout: d}
}

func (t *timeoutRenderer) Render(ctx context.Context, path string, scale float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := t.next.Render(ctx, path, scale)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &RenderError{Path: path, Err: ErrTimeout}
		}
		return "", &RenderError{Path: path, Err: ctx.Err()}
	}
}

// Sizer reports the viewport a renderer is currently fitting images into.
type Sizer interface {
	Viewport() Viewport
}

type dedupeRenderer struct {
	next  Renderer
	size  Sizer
	group singleflight.Group
}

// Dedupe collapses concurrent renders of the same path, scale and viewport
// into one call. The foreground and the preloader often ask for the same
// neighbor. A call made after a resize never joins one started before it.
func Dedupe(size Sizer, r Renderer) Renderer {
	return &dedupeRenderer{next: r, size: size}
}

func (d *dedupeRenderer) Render(ctx context.Context, path string, scale float64) (string, error) {
	vp := d.size.Viewport()
	key := path + "@" + strconv.FormatFloat(scale, 'f', -1, 64) +
		"@" + strconv.Itoa(vp.Width) + "x" + strconv.Itoa(vp.Height)
	v, err, _ := d.group.Do(key, func() (any, error) {
		return d.next.Render(ctx, path, scale)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
