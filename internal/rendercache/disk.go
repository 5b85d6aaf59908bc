package rendercache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

const (
	generationPrefix = "pixelterm_cache_"
	tempMarker       = ".tmp-"
)

var (
	// ErrCacheIO is matched by every CacheIOError.
	ErrCacheIO = errors.New("rendercache: disk cache I/O failed")

	// ErrCacheMiss is returned by Read when no file exists for the entry.
	ErrCacheMiss = errors.New("rendercache: not cached")

	// ErrGenerationClosed is wrapped by operations on a destroyed generation.
	ErrGenerationClosed = errors.New("rendercache: generation closed")
)

// CacheIOError describes a failed disk cache operation. Callers treat it as
// a cache miss.
type CacheIOError struct {
	Op  string // "read", "write", "remove", "create"
	Key string
	Err error
}

func (e *CacheIOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("rendercache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("rendercache: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCacheIO) match.
func (e *CacheIOError) Is(target error) bool { return target == ErrCacheIO }

// DiskKey returns the cache file name for an absolute path: the hex SHA-256
// of the path string.
func DiskKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Store owns the disk cache. It holds exactly one live Generation, a private
// directory under the store's root that is destroyed and replaced on Reset.
type Store struct {
	mu      sync.Mutex
	root    billy.Filesystem
	current *Generation
	logger  *slog.Logger
}

// NewStore creates a store that places generation directories in root.
// No generation exists until Reset is called.
func NewStore(root billy.Filesystem, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{root: root, logger: logger}
}

// NewOSStore creates a store rooted at dir on the local disk, or at the
// system temp directory when dir is empty.
func NewOSStore(dir string, logger *slog.Logger) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return NewStore(osfs.New(dir), logger)
}

// Reset destroys the current generation, including all its files, and
// starts a new empty one. If the directory cannot be created the returned
// generation is disabled: reads miss and writes fail with ErrCacheIO.
func (s *Store) Reset() *Generation {
	next, old := s.Swap()
	if old != nil {
		old.Destroy()
	}
	return next
}

// Swap starts a new empty generation and returns it together with the one it
// replaced. The old generation stays on disk until Destroy is called on it.
func (s *Store) Swap() (next, old *Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.current
	s.current = s.create()
	return s.current, old
}

// Close destroys the live generation.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Destroy()
		s.current = nil
	}
}

func (s *Store) create() *Generation {
	name, err := util.TempDir(s.root, ".", generationPrefix)
	if err != nil {
		s.logger.Warn("disk cache disabled", "err", err)
		return &Generation{err: &CacheIOError{Op: "create", Err: err}, logger: s.logger}
	}
	fs, err := s.root.Chroot(name)
	if err != nil {
		_ = util.RemoveAll(s.root, name)
		s.logger.Warn("disk cache disabled", "err", err)
		return &Generation{err: &CacheIOError{Op: "create", Err: err}, logger: s.logger}
	}
	s.logger.Debug("disk cache generation created", "dir", fs.Root())
	return &Generation{parent: s.root, name: name, fs: fs, logger: s.logger}
}

// Generation is the disk cache for one catalog generation. Files are named by
// DiskKey and hold the rendered text verbatim. Once destroyed, every
// operation fails with ErrGenerationClosed instead of touching the disk.
type Generation struct {
	mu     sync.RWMutex
	parent billy.Filesystem
	name   string
	fs     billy.Filesystem
	closed bool
	err    error // set when the generation could not be created
	logger *slog.Logger
}

// Dir returns the generation's directory, or "" when disabled.
func (g *Generation) Dir() string {
	if g.fs == nil {
		return ""
	}
	return g.fs.Root()
}

// Has reports whether rendered text is stored for e.
func (g *Generation) Has(e catalog.Entry) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.usable() {
		return false
	}
	_, err := g.fs.Stat(DiskKey(e.Path))
	return err == nil
}

// Read returns the stored text for e. A missing file yields ErrCacheMiss;
// any other failure is a CacheIOError.
func (g *Generation) Read(e catalog.Entry) (string, error) {
	key := DiskKey(e.Path)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if err := g.unusableErr("read", key); err != nil {
		return "", err
	}

	f, err := g.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrCacheMiss
		}
		return "", &CacheIOError{Op: "read", Key: key, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", &CacheIOError{Op: "read", Key: key, Err: err}
	}
	return string(data), nil
}

// Write stores text for e. The file appears atomically: it is written under
// a temporary name and renamed into place.
func (g *Generation) Write(e catalog.Entry, text string) error {
	key := DiskKey(e.Path)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if err := g.unusableErr("write", key); err != nil {
		return err
	}

	tmp, err := util.TempFile(g.fs, ".", key+tempMarker)
	if err != nil {
		return &CacheIOError{Op: "write", Key: key, Err: err}
	}
	tmpName := tmp.Name()

	_, werr := io.WriteString(tmp, text)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = g.fs.Remove(tmpName)
		return &CacheIOError{Op: "write", Key: key, Err: err}
	}
	if err := g.fs.Rename(tmpName, key); err != nil {
		_ = g.fs.Remove(tmpName)
		return &CacheIOError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// Remove deletes the stored text for e. Removing a missing entry succeeds.
func (g *Generation) Remove(e catalog.Entry) error {
	key := DiskKey(e.Path)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if err := g.unusableErr("remove", key); err != nil {
		return err
	}
	if err := g.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CacheIOError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// Len returns the number of stored entries, ignoring in-flight temp files.
func (g *Generation) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.usable() {
		return 0
	}
	infos, err := g.fs.ReadDir(".")
	if err != nil {
		return 0
	}
	n := 0
	for _, fi := range infos {
		if !fi.IsDir() && !strings.Contains(fi.Name(), tempMarker) {
			n++
		}
	}
	return n
}

// Closed reports whether the generation has been destroyed.
func (g *Generation) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *Generation) usable() bool {
	return !g.closed && g.fs != nil
}

func (g *Generation) unusableErr(op, key string) error {
	switch {
	case g.err != nil:
		return &CacheIOError{Op: op, Key: key, Err: g.err}
	case g.closed:
		return &CacheIOError{Op: op, Key: key, Err: ErrGenerationClosed}
	}
	return nil
}

// Destroy waits for in-flight operations, then removes the directory. Later
// operations fail with ErrGenerationClosed. Destroying twice is a no-op.
func (g *Generation) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.fs == nil {
		return
	}
	if err := util.RemoveAll(g.parent, g.name); err != nil {
		g.logger.Debug("failed to remove disk cache generation", "dir", g.fs.Root(), "err", err)
	}
}
