package rendercache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

func testCatalog(n int) *catalog.Catalog {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/pics/img%02d.png", i)
	}
	return catalog.New("/pics", paths)
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache()
	e := catalog.NewEntry("/pics/a.png")

	if _, ok := c.Get(e.Key); ok {
		t.Error("empty cache should miss")
	}
	c.Set(e.Key, "rendered")
	if got, ok := c.Get(e.Key); !ok || got != "rendered" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "rendered")
	}
	c.Delete(e.Key)
	if c.Len() != 0 {
		t.Errorf("Len() after Delete = %d, want 0", c.Len())
	}
}

func TestMemoryCache_EvictOutsideWindow(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		cursor   int
		cached   []int
		wantKept []int
	}{
		{"middle keeps neighbors", 10, 5, []int{2, 3, 4, 5, 6, 7, 8}, []int{4, 5, 6}},
		{"start does not wrap", 10, 0, []int{9, 0, 1, 2}, []int{0, 1}},
		{"end does not wrap", 10, 9, []int{0, 8, 9}, []int{8, 9}},
		{"small catalog keeps all", 3, 1, []int{0, 1, 2}, []int{0, 1, 2}},
		{"single entry", 1, 0, []int{0}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := testCatalog(tt.size)
			c := NewMemoryCache()
			for _, i := range tt.cached {
				e, _ := cat.At(i)
				c.Set(e.Key, e.Path)
			}

			evicted := c.EvictOutsideWindow(cat, tt.cursor)

			if evicted != len(tt.cached)-len(tt.wantKept) {
				t.Errorf("evicted = %d, want %d", evicted, len(tt.cached)-len(tt.wantKept))
			}
			if c.Len() != len(tt.wantKept) {
				t.Errorf("Len() = %d, want %d", c.Len(), len(tt.wantKept))
			}
			for _, i := range tt.wantKept {
				e, _ := cat.At(i)
				if _, ok := c.Get(e.Key); !ok {
					t.Errorf("index %d should be kept", i)
				}
			}
		})
	}
}

func TestMemoryCache_EvictsEntriesMissingFromCatalog(t *testing.T) {
	cat := testCatalog(3)
	c := NewMemoryCache()
	stray := catalog.NewEntry("/elsewhere/x.png")
	c.Set(stray.Key, "old")

	if n := c.EvictOutsideWindow(cat, 0); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cat := testCatalog(20)
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 200 {
				e, _ := cat.At((i + w) % cat.Len())
				c.Set(e.Key, e.Path)
				c.Get(e.Key)
				if i%10 == 0 {
					c.EvictOutsideWindow(cat, i%cat.Len())
				}
			}
		}(w)
	}
	wg.Wait()

	c.EvictOutsideWindow(cat, 7)
	if c.Len() > 3 {
		t.Errorf("Len() after settling = %d, want <= 3", c.Len())
	}
}
