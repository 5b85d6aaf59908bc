package rendercache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

func TestDiskKey(t *testing.T) {
	path := "/home/user/pics/a b/ünïcode?.png"
	k1 := DiskKey(path)
	k2 := DiskKey(path)
	if k1 != k2 {
		t.Errorf("DiskKey not deterministic: %q vs %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("len(DiskKey) = %d, want 64 hex chars", len(k1))
	}
	if strings.ContainsAny(k1, "/ ?") {
		t.Errorf("DiskKey %q contains path characters", k1)
	}
	if DiskKey(path+"2") == k1 {
		t.Error("different paths should produce different keys")
	}
}

func TestGeneration_ReadWrite(t *testing.T) {
	stores := map[string]*Store{
		"memfs": NewStore(memfs.New(), nil),
		"osfs":  NewOSStore(t.TempDir(), nil),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			g := s.Reset()
			e := catalog.NewEntry("/pics/a.png")

			if g.Has(e) {
				t.Error("fresh generation should not have entry")
			}
			if _, err := g.Read(e); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Read() error = %v, want ErrCacheMiss", err)
			}

			text := "\x1b[38;2;1;2;3m▀▀\x1b[0m\nline two"
			if err := g.Write(e, text); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if !g.Has(e) {
				t.Error("Has() should report written entry")
			}
			got, err := g.Read(e)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != text {
				t.Errorf("Read() = %q, want %q", got, text)
			}
			if g.Len() != 1 {
				t.Errorf("Len() = %d, want 1", g.Len())
			}

			if err := g.Remove(e); err != nil {
				t.Errorf("Remove() error = %v", err)
			}
			if g.Has(e) {
				t.Error("entry should be gone after Remove")
			}
			if err := g.Remove(e); err != nil {
				t.Errorf("second Remove() error = %v", err)
			}
		})
	}
}

func TestStore_ResetDestroysPreviousGeneration(t *testing.T) {
	root := t.TempDir()
	s := NewOSStore(root, nil)
	defer s.Close()

	e := catalog.NewEntry("/pics/a.png")
	first := s.Reset()
	if err := first.Write(e, "one"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	firstDir := first.Dir()
	if !strings.HasPrefix(filepath.Base(firstDir), generationPrefix) {
		t.Errorf("generation dir %q lacks prefix %q", firstDir, generationPrefix)
	}

	second := s.Reset()
	if second == first {
		t.Fatal("Reset() should create a new generation")
	}
	if _, err := os.Stat(firstDir); !os.IsNotExist(err) {
		t.Errorf("old generation dir still exists: %v", err)
	}
	if second.Has(e) || second.Len() != 0 {
		t.Error("new generation should start empty")
	}
}

func TestStore_SwapDefersDestroy(t *testing.T) {
	root := t.TempDir()
	s := NewOSStore(root, nil)
	defer s.Close()

	e := catalog.NewEntry("/pics/a.png")
	first := s.Reset()
	if err := first.Write(e, "one"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	next, old := s.Swap()
	if old != first || next == first {
		t.Fatalf("Swap() = %p, %p; want new generation and %p", next, old, first)
	}
	if old.Closed() {
		t.Fatal("Swap() should leave the old generation open")
	}
	if text, err := old.Read(e); err != nil || text != "one" {
		t.Errorf("old.Read() = %q, %v", text, err)
	}

	old.Destroy()
	if !old.Closed() {
		t.Error("Destroy() should close the old generation")
	}
	if _, err := os.Stat(first.Dir()); !os.IsNotExist(err) {
		t.Errorf("old generation dir still exists: %v", err)
	}
	if next.Closed() {
		t.Error("destroying the old generation closed the new one")
	}
	old.Destroy()
}

func TestGeneration_WriteAfterDestroy(t *testing.T) {
	root := t.TempDir()
	s := NewOSStore(root, nil)
	g := s.Reset()
	dir := g.Dir()
	s.Reset()
	defer s.Close()

	e := catalog.NewEntry("/pics/a.png")
	err := g.Write(e, "late")
	if !errors.Is(err, ErrCacheIO) {
		t.Errorf("Write() on destroyed generation = %v, want ErrCacheIO", err)
	}
	if !errors.Is(err, ErrGenerationClosed) {
		t.Errorf("Write() on destroyed generation = %v, want ErrGenerationClosed", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("write to destroyed generation must not recreate its directory")
	}
	if g.Has(e) {
		t.Error("Has() on destroyed generation should be false")
	}
	if !g.Closed() {
		t.Error("Closed() should be true")
	}
}

func TestStore_CloseRemovesDirectory(t *testing.T) {
	s := NewOSStore(t.TempDir(), nil)
	g := s.Reset()
	dir := g.Dir()

	s.Close()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Close() left %s behind", dir)
	}
	if !g.Closed() {
		t.Error("Close() should close the live generation")
	}
	s.Close()
}

func TestStore_UnwritableRootDisablesCache(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewOSStore(file, nil)
	defer s.Close()

	g := s.Reset()
	e := catalog.NewEntry("/pics/a.png")
	if g.Dir() != "" {
		t.Errorf("disabled generation Dir() = %q, want empty", g.Dir())
	}
	if err := g.Write(e, "x"); !errors.Is(err, ErrCacheIO) {
		t.Errorf("Write() = %v, want ErrCacheIO", err)
	}
	if _, err := g.Read(e); !errors.Is(err, ErrCacheIO) {
		t.Errorf("Read() = %v, want ErrCacheIO", err)
	}
	if g.Has(e) {
		t.Error("disabled generation should never report entries")
	}
}

func TestGeneration_ConcurrentWritesAndDestroy(t *testing.T) {
	s := NewOSStore(t.TempDir(), nil)
	g := s.Reset()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := catalog.NewEntry(filepath.Join("/pics", string(rune('a'+i))+".png"))
			for range 20 {
				_ = g.Write(e, "data")
				_, _ = g.Read(e)
			}
		}(i)
	}
	s.Close()
	wg.Wait()

	if _, err := os.Stat(g.Dir()); !os.IsNotExist(err) {
		t.Error("generation directory should not survive concurrent writes after Close")
	}
}
