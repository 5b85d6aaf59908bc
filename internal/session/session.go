// Package session is the browsing state shared by the UI and the preload
// worker: the catalog of the active directory, the cursor, both render cache
// tiers and the scheduler that fills them.
//
// Every method is safe for concurrent use. Apart from creating a new cache
// generation, disk I/O and rendering happen outside the session lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/preload"
	"github.com/wilbur182/pixelterm/internal/render"
	"github.com/wilbur182/pixelterm/internal/rendercache"
)

// ErrNoImage is returned when the catalog is empty. It is a displayable
// state, not a failure.
var ErrNoImage = errors.New("session: no image")

// Options configures New.
type Options struct {
	Renderer render.Renderer

	// Store holds the disk cache. When nil an OS store is created in CacheDir.
	Store    *rendercache.Store
	CacheDir string

	Scale          float64
	Radius         int
	Delay          time.Duration
	DisablePreload bool
	Logger         *slog.Logger

	// OnPass is forwarded to the scheduler.
	OnPass func(preload.Report)
}

// Status is a snapshot for the status line.
type Status struct {
	Dir            string
	Entry          catalog.Entry
	Index          int
	Count          int
	Scale          float64
	PreloadEnabled bool
	Preloading     bool
	MemoryEntries  int
}

// Session is one browsing session.
type Session struct {
	mu     sync.Mutex
	cat    *catalog.Catalog
	cursor int
	scale  float64
	gen    *rendercache.Generation

	mem      *rendercache.MemoryCache
	store    *rendercache.Store
	renderer render.Renderer
	sched    *preload.Scheduler
	logger   *slog.Logger

	removeFile func(string) error
	closeOnce  sync.Once
}

// New creates a session with an empty catalog and starts the preload worker
// unless disabled. Call Rescan or OpenFile to load a directory.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Store == nil {
		opts.Store = rendercache.NewOSStore(opts.CacheDir, opts.Logger)
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	s := &Session{
		cat:        catalog.Empty(""),
		scale:      opts.Scale,
		mem:        rendercache.NewMemoryCache(),
		store:      opts.Store,
		renderer:   opts.Renderer,
		logger:     opts.Logger,
		removeFile: os.Remove,
	}
	s.gen = s.store.Reset()

	if !opts.DisablePreload {
		s.sched = preload.New(s, opts.Renderer, preload.Options{
			Radius: opts.Radius,
			Delay:  opts.Delay,
			Logger: opts.Logger.With("component", "preload"),
			OnPass: opts.OnPass,
		})
		s.sched.Start(context.Background())
	}
	return s
}

// Close stops the worker and removes the disk cache directory.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.sched != nil {
			s.sched.Stop()
		}
		s.store.Close()
	})
}

// Rescan rebuilds the catalog from dir, resets the cursor to 0 and empties
// both caches. A listing failure leaves an empty catalog and returns a
// *catalog.DirectoryAccessError.
func (s *Session) Rescan(dir string) error {
	return s.rebuild(dir, "")
}

// Refresh rescans the current directory.
func (s *Session) Refresh() error {
	return s.Rescan(s.Dir())
}

// Reload brings the catalog in line with a fresh listing of the current
// directory. Entries that are still present keep their cached renders and the
// disk generation survives; only vanished entries are dropped. The cursor
// stays on the current image when it still exists. A listing failure falls
// back to Rescan. It reports whether the catalog changed.
func (s *Session) Reload() (bool, error) {
	dir := s.Dir()
	if dir == "" {
		return false, nil
	}
	fresh, err := catalog.Scan(dir)
	if err != nil {
		return true, s.rebuild(dir, "")
	}

	s.mu.Lock()
	if s.cat.Dir() != dir {
		// Another directory was opened while scanning.
		s.mu.Unlock()
		return false, nil
	}
	var removed []catalog.Entry
	for i := s.cat.Len() - 1; i >= 0; i-- {
		e, _ := s.cat.At(i)
		if _, ok := fresh.IndexOf(e.Key); ok {
			continue
		}
		s.cat.Remove(i)
		if i < s.cursor {
			s.cursor--
		}
		s.mem.Delete(e.Key)
		removed = append(removed, e)
	}
	s.cursor = catalog.ClampAfterRemove(s.cursor, s.cat.Len())
	anchor, hasAnchor := s.cat.At(s.cursor)

	added := 0
	for _, e := range fresh.Entries() {
		if _, ok := s.cat.IndexOf(e.Key); !ok {
			s.cat.Insert(e.Path)
			added++
		}
	}
	if len(removed) == 0 && added == 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.cursor = 0
	if hasAnchor {
		s.cursor, _ = s.cat.IndexOf(anchor.Key)
	}
	s.mem.EvictOutsideWindow(s.cat, s.cursor)
	gen := s.gen
	s.mu.Unlock()

	for _, e := range removed {
		if err := gen.Remove(e); err != nil {
			s.logger.Debug("disk cache remove failed", "path", e.Path, "err", err)
		}
	}
	s.logger.Debug("catalog reloaded", "dir", dir, "added", added, "removed", len(removed))
	s.trigger()
	return true, nil
}

// OpenFile opens path. A directory is scanned as with Rescan; an image file
// scans its directory and places the cursor on it.
func (s *Session) OpenFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return s.rebuild(abs, "")
	}
	if !catalog.IsImageFile(abs) {
		return fmt.Errorf("%w: %s", render.ErrUnsupportedFormat, abs)
	}
	return s.rebuild(filepath.Dir(abs), abs)
}

// Parent rescans the parent of the current directory. It reports false at
// the filesystem root.
func (s *Session) Parent() (bool, error) {
	dir := s.Dir()
	parent := filepath.Dir(dir)
	if dir == "" || parent == dir {
		return false, nil
	}
	return true, s.Rescan(parent)
}

func (s *Session) rebuild(dir, focus string) error {
	cat, scanErr := catalog.Scan(dir)

	s.mu.Lock()
	s.cat = cat
	s.cursor = 0
	if focus != "" {
		if i, ok := cat.Find(focus); ok {
			s.cursor = i
		}
	}
	s.mem.Clear()
	old := s.swapGeneration()
	s.mu.Unlock()
	retire(old)

	if scanErr != nil {
		s.logger.Warn("directory not accessible", "dir", dir, "err", scanErr)
		return scanErr
	}
	s.logger.Debug("catalog rebuilt", "dir", cat.Dir(), "images", cat.Len())
	s.trigger()
	return nil
}

// Navigate moves the cursor one step in dir, wrapping at either end. The new
// current entry is promoted from disk if it is there; nothing is rendered.
// It reports false when the catalog is empty.
func (s *Session) Navigate(dir catalog.Direction) bool {
	return s.move(func(cursor, n int) int { return catalog.Advance(cursor, n, dir) })
}

// Jump moves the cursor to index i, clamped to the catalog. Negative i
// counts from the end, so -1 is the last entry.
func (s *Session) Jump(i int) bool {
	return s.move(func(_, n int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n-1)
	})
}

func (s *Session) move(next func(cursor, n int) int) bool {
	s.mu.Lock()
	n := s.cat.Len()
	if n == 0 {
		s.mu.Unlock()
		return false
	}
	s.cursor = next(s.cursor, n)
	e, _ := s.cat.At(s.cursor)
	gen := s.gen
	_, cached := s.mem.Get(e.Key)
	s.mem.EvictOutsideWindow(s.cat, s.cursor)
	s.mu.Unlock()

	if !cached {
		if text, err := gen.Read(e); err == nil {
			s.Promote(gen, e, text)
		} else if !errors.Is(err, rendercache.ErrCacheMiss) {
			s.logger.Debug("disk cache read failed", "path", e.Path, "err", err)
		}
	}
	s.trigger()
	return true
}

// DeleteCurrent removes the current entry from the catalog and drops its
// cached renders. Other cache entries are kept. It reports false when the
// catalog is empty.
func (s *Session) DeleteCurrent() (catalog.Entry, bool) {
	s.mu.Lock()
	e, ok := s.cat.Remove(s.cursor)
	if !ok {
		s.mu.Unlock()
		return catalog.Entry{}, false
	}
	s.cursor = catalog.ClampAfterRemove(s.cursor, s.cat.Len())
	s.mem.Delete(e.Key)
	s.mem.EvictOutsideWindow(s.cat, s.cursor)
	gen := s.gen
	s.mu.Unlock()

	if err := gen.Remove(e); err != nil {
		s.logger.Debug("disk cache remove failed", "path", e.Path, "err", err)
	}
	s.trigger()
	return e, true
}

// DeleteCurrentFile removes the current image from the filesystem and then
// from the catalog. If the file cannot be removed the catalog is untouched.
func (s *Session) DeleteCurrentFile() (catalog.Entry, error) {
	e, ok := s.Current()
	if !ok {
		return catalog.Entry{}, ErrNoImage
	}
	if err := s.removeFile(e.Path); err != nil {
		return e, fmt.Errorf("delete %s: %w", e.Name(), err)
	}
	// The cursor may have moved while the file was being removed.
	s.deleteEntry(e)
	return e, nil
}

func (s *Session) deleteEntry(e catalog.Entry) {
	s.mu.Lock()
	i, ok := s.cat.IndexOf(e.Key)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.cat.Remove(i)
	if i < s.cursor {
		s.cursor--
	}
	s.cursor = catalog.ClampAfterRemove(s.cursor, s.cat.Len())
	s.mem.Delete(e.Key)
	s.mem.EvictOutsideWindow(s.cat, s.cursor)
	gen := s.gen
	s.mu.Unlock()

	if err := gen.Remove(e); err != nil {
		s.logger.Debug("disk cache remove failed", "path", e.Path, "err", err)
	}
	s.trigger()
}

// CurrentRenderedText returns the rendered text for the current entry,
// looking in memory, then on disk, then rendering synchronously. It returns
// ErrNoImage for an empty catalog and a render error if conversion fails.
func (s *Session) CurrentRenderedText(ctx context.Context) (string, error) {
	s.mu.Lock()
	e, ok := s.cat.At(s.cursor)
	if !ok {
		s.mu.Unlock()
		return "", ErrNoImage
	}
	if text, hit := s.mem.Get(e.Key); hit {
		s.mu.Unlock()
		return text, nil
	}
	gen, scale := s.gen, s.scale
	s.mu.Unlock()

	text, err := gen.Read(e)
	if err == nil {
		s.Promote(gen, e, text)
		return text, nil
	}
	if !errors.Is(err, rendercache.ErrCacheMiss) {
		s.logger.Debug("disk cache read failed", "path", e.Path, "err", err)
	}

	text, err = s.renderer.Render(ctx, e.Path, scale)
	if err != nil {
		s.logger.Debug("render failed", "path", e.Path, "err", err)
		return "", err
	}
	if werr := gen.Write(e, text); werr != nil {
		s.logger.Debug("disk cache write failed", "path", e.Path, "err", werr)
	}
	s.Promote(gen, e, text)
	return text, nil
}

// Current returns the entry under the cursor.
func (s *Session) Current() (catalog.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat.At(s.cursor)
}

// Dir returns the directory of the active catalog.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat.Dir()
}

// Scale returns the current render scale.
func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// SetScale changes the render scale. Renders at the old scale are discarded
// as with Invalidate; catalog and cursor are kept. It reports whether the
// scale changed.
func (s *Session) SetScale(scale float64) bool {
	if scale <= 0 {
		return false
	}
	s.mu.Lock()
	if scale == s.scale {
		s.mu.Unlock()
		return false
	}
	s.scale = scale
	s.mu.Unlock()
	s.Invalidate()
	return true
}

// Invalidate discards every cached render, keeping the catalog and cursor,
// and starts a new disk cache generation. Used after the output size changes.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.mem.Clear()
	old := s.swapGeneration()
	s.mu.Unlock()
	retire(old)
	s.trigger()
}

// swapGeneration installs a new disk generation and returns the old one.
// Callers hold s.mu and retire the old generation after unlocking, since
// destroying it waits for in-flight cache I/O.
func (s *Session) swapGeneration() *rendercache.Generation {
	next, old := s.store.Swap()
	s.gen = next
	return old
}

func retire(old *rendercache.Generation) {
	if old != nil {
		old.Destroy()
	}
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Dir:            s.cat.Dir(),
		Count:          s.cat.Len(),
		Index:          s.cursor,
		Scale:          s.scale,
		PreloadEnabled: s.sched != nil,
		MemoryEntries:  s.mem.Len(),
	}
	st.Entry, _ = s.cat.At(s.cursor)
	if s.sched != nil {
		st.Preloading = s.sched.Running()
	}
	return st
}

// PreloadStats returns the scheduler counters, or zero when preload is off.
func (s *Session) PreloadStats() preload.Stats {
	if s.sched == nil {
		return preload.Stats{}
	}
	return s.sched.Stats()
}

// Generation returns the live disk cache generation.
func (s *Session) Generation() *rendercache.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Session) trigger() {
	if s.sched == nil {
		return
	}
	s.mu.Lock()
	empty := s.cat.Len() == 0
	s.mu.Unlock()
	if !empty {
		s.sched.Trigger()
	}
}

// PreloadPlan implements preload.Source.
func (s *Session) PreloadPlan(radius int) (preload.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := catalog.Window(s.cursor, s.cat.Len(), radius)
	if len(idx) == 0 {
		return preload.Plan{}, false
	}
	entries := make([]catalog.Entry, 0, len(idx))
	for _, i := range idx {
		e, _ := s.cat.At(i)
		entries = append(entries, e)
	}
	return preload.Plan{Generation: s.gen, Entries: entries, Scale: s.scale}, true
}

// Promote implements preload.Source. Text is kept in memory only if it was
// produced for the live generation and the entry is still next to the cursor.
func (s *Session) Promote(gen *rendercache.Generation, e catalog.Entry, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	i, ok := s.cat.IndexOf(e.Key)
	if ok && catalog.Within(i, s.cursor, rendercache.MemoryRadius) {
		s.mem.Set(e.Key, text)
	}
}

// WantsPromotion implements preload.Source.
func (s *Session) WantsPromotion(gen *rendercache.Generation, e catalog.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	i, ok := s.cat.IndexOf(e.Key)
	if !ok || !catalog.Within(i, s.cursor, rendercache.MemoryRadius) {
		return false
	}
	_, cached := s.mem.Get(e.Key)
	return !cached
}

// Settle implements preload.Source.
func (s *Session) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem.EvictOutsideWindow(s.cat, s.cursor)
}
