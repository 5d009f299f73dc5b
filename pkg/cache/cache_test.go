package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestFIFOGetPut(t *testing.T) {
	c := New[string](3)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() returned true for missing key")
	}

	c.Put("a", "alpha")
	v, ok := c.Get("a")
	if !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFIFODefaultSize(t *testing.T) {
	if got := New[int](0).Cap(); got != DefaultSize {
		t.Errorf("Cap() = %d, want %d", got, DefaultSize)
	}
	if got := New[int](-5).Cap(); got != DefaultSize {
		t.Errorf("Cap() = %d, want %d", got, DefaultSize)
	}
}

func TestFIFOEvictsOldestInserted(t *testing.T) {
	const size = 20
	c := New[int](size)

	keys := make([]string, size+1)
	for i := range keys {
		keys[i] = Fingerprint(fmt.Sprintf("fn f%d() {}", i))
		c.Put(keys[i], i)
	}

	if _, ok := c.Get(keys[0]); ok {
		t.Error("first inserted entry should have been evicted")
	}
	for i := 1; i <= size; i++ {
		if v, ok := c.Get(keys[i]); !ok || v != i {
			t.Errorf("entry %d missing after eviction", i)
		}
	}
	if c.Len() != size {
		t.Errorf("Len() = %d, want %d", c.Len(), size)
	}
}

func TestFIFOIsNotLRU(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// Reading "a" must not protect it from eviction.
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("a should be evicted despite recent access")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should remain")
	}
}

func TestFIFOReplaceKeepsSlot(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)

	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d, want 10", v)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	c.Put("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Error("replaced key keeps its original insertion slot and is evicted first")
	}
	if !slices.Equal(c.Keys(), []string{"b", "c"}) {
		t.Errorf("Keys() = %v", c.Keys())
	}
}

func TestFIFODeleteClear(t *testing.T) {
	c := New[int](3)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	if !slices.Equal(c.Keys(), []string{"b"}) {
		t.Errorf("Keys() = %v", c.Keys())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestFIFOEntryTimestamp(t *testing.T) {
	c := New[string](2)
	fixed := time.Date(2025, 7, 8, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.Put("k", "v")
	e, ok := c.Entry("k")
	if !ok {
		t.Fatal("Entry() missing")
	}
	if !e.CachedAt.Equal(fixed) {
		t.Errorf("CachedAt = %v, want %v", e.CachedAt, fixed)
	}
}

func TestFingerprint(t *testing.T) {
	h1 := Fingerprint("fn main() {}")
	h2 := Fingerprint("fn main() {}")
	if h1 != h2 {
		t.Error("Fingerprint should be deterministic")
	}

	if Fingerprint("ab") == Fingerprint("ba") {
		t.Error("Fingerprint should be order sensitive")
	}
	if Fingerprint("fn main() {}") == Fingerprint("fn main() { }") {
		t.Error("different inputs should produce different fingerprints")
	}

	if len(h1) != len("code_")+16 {
		t.Errorf("Fingerprint length = %d, want %d", len(h1), len("code_")+16)
	}
	if Fingerprint("") == "" {
		t.Error("Fingerprint should be total")
	}
}

func TestFIFOSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "results.json")

	src := New[string](3)
	src.Put("a", "1")
	src.Put("b", "2")
	if err := src.SaveFile(path, "http://localhost:7071"); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}

	t.Run("same scope", func(t *testing.T) {
		dst := New[string](3)
		n, err := dst.LoadFile(path, "http://localhost:7071", nil)
		if err != nil || n != 2 {
			t.Fatalf("LoadFile() = %d, %v; want 2, nil", n, err)
		}
		if !slices.Equal(dst.Keys(), []string{"a", "b"}) {
			t.Errorf("Keys() = %v, want insertion order preserved", dst.Keys())
		}
	})

	t.Run("other scope ignored", func(t *testing.T) {
		dst := New[string](3)
		n, err := dst.LoadFile(path, "http://elsewhere", nil)
		if err != nil || n != 0 || dst.Len() != 0 {
			t.Errorf("LoadFile() = %d, %v; want nothing loaded", n, err)
		}
	})

	t.Run("rejected entries skipped", func(t *testing.T) {
		dst := New[string](3)
		n, err := dst.LoadFile(path, "http://localhost:7071", func(v string) error {
			if v == "1" {
				return errors.New("stale")
			}
			return nil
		})
		if err != nil || n != 1 {
			t.Fatalf("LoadFile() = %d, %v; want 1, nil", n, err)
		}
		if !slices.Equal(dst.Keys(), []string{"b"}) {
			t.Errorf("Keys() = %v, want [b]", dst.Keys())
		}
	})

	t.Run("capacity still enforced", func(t *testing.T) {
		dst := New[string](1)
		_, _ = dst.LoadFile(path, "http://localhost:7071", nil)
		if !slices.Equal(dst.Keys(), []string{"b"}) {
			t.Errorf("Keys() = %v, want [b]", dst.Keys())
		}
	})
}

func TestFIFOLoadFileMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	c := New[string](2)
	if n, err := c.LoadFile(filepath.Join(dir, "none.json"), "", nil); n != 0 || err != nil {
		t.Errorf("missing file: LoadFile() = %d, %v", n, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if n, err := c.LoadFile(bad, "", nil); n != 0 || err != nil {
		t.Errorf("corrupt file: LoadFile() = %d, %v", n, err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("corrupt snapshot should be removed")
	}
}

func TestRemoveFile(t *testing.T) {
	if err := RemoveFile(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("RemoveFile() on missing file = %v", err)
	}
}
