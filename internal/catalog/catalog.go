package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// supportedExtensions is the closed set of image extensions a scan keeps.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
}

// ErrDirectoryAccess is matched by every DirectoryAccessError.
var ErrDirectoryAccess = errors.New("catalog: directory not accessible")

// DirectoryAccessError reports a directory that could not be listed.
// The scan that produced it still returns a usable, empty Catalog.
type DirectoryAccessError struct {
	Dir string
	Err error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("catalog: cannot read %s: %v", e.Dir, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDirectoryAccess) match.
func (e *DirectoryAccessError) Is(target error) bool { return target == ErrDirectoryAccess }

// Key identifies an entry in map lookups. It is derived from the absolute path.
type Key uint64

// KeyOf returns the identity key for an absolute path.
func KeyOf(path string) Key {
	return Key(xxhash.Sum64String(path))
}

// Entry is one image in the catalog. Entries are immutable.
type Entry struct {
	Path string // absolute path
	Key  Key
}

// NewEntry builds an entry for an absolute path.
func NewEntry(path string) Entry {
	return Entry{Path: path, Key: KeyOf(path)}
}

// Name returns the file name without its directory.
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// IsImageFile reports whether path has a supported image extension.
// The match is case-insensitive.
func IsImageFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Catalog is the ordered list of images for one directory, sorted by path.
type Catalog struct {
	dir     string
	entries []Entry
	index   map[Key]int
}

// New builds a catalog for dir from absolute paths. Paths are sorted and
// duplicates dropped; no extension filtering is applied.
func New(dir string, paths []string) *Catalog {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	c := &Catalog{dir: dir, entries: make([]Entry, 0, len(sorted))}
	for _, p := range sorted {
		c.entries = append(c.entries, NewEntry(p))
	}
	c.reindex()
	return c
}

// Empty returns a catalog with no entries for dir.
func Empty(dir string) *Catalog {
	return New(dir, nil)
}

// Scan lists dir non-recursively and keeps regular files with a supported
// extension. A listing failure yields an empty catalog together with a
// *DirectoryAccessError; callers display the empty catalog as "no images".
func Scan(dir string) (*Catalog, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Empty(dir), &DirectoryAccessError{Dir: dir, Err: err}
	}

	items, err := os.ReadDir(abs)
	if err != nil {
		return Empty(abs), &DirectoryAccessError{Dir: abs, Err: err}
	}

	paths := make([]string, 0, len(items))
	for _, item := range items {
		if !IsImageFile(item.Name()) {
			continue
		}
		full := filepath.Join(abs, item.Name())
		if !isRegular(full, item) {
			continue
		}
		paths = append(paths, full)
	}
	return New(abs, paths), nil
}

// isRegular follows symlinks so a link to an image file counts as a file.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Dir returns the absolute directory the catalog was built from.
func (c *Catalog) Dir() string { return c.dir }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// At returns the entry at index i.
func (c *Catalog) At(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// IndexOf returns the current index of the entry with key k.
func (c *Catalog) IndexOf(k Key) (int, bool) {
	i, ok := c.index[k]
	return i, ok
}

// Find returns the index of the entry for an absolute path.
func (c *Catalog) Find(path string) (int, bool) {
	return c.IndexOf(KeyOf(path))
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

// Remove deletes the entry at index i and returns it.
func (c *Catalog) Remove(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	e := c.entries[i]
	c.entries = slices.Delete(c.entries, i, i+1)
	c.reindex()
	return e, true
}

// Insert adds an absolute path at its sorted position and returns its index.
// An existing path is not duplicated.
func (c *Catalog) Insert(path string) int {
	if i, ok := c.Find(path); ok {
		return i
	}
	i, _ := slices.BinarySearchFunc(c.entries, path, func(e Entry, p string) int {
		return strings.Compare(e.Path, p)
	})
	c.entries = slices.Insert(c.entries, i, NewEntry(path))
	c.reindex()
	return i
}

func (c *Catalog) reindex() {
	c.index = make(map[Key]int, len(c.entries))
	for i, e := range c.entries {
		c.index[e.Key] = i
	}
}
