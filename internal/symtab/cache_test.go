package symtab

import (
	"fmt"
	"sync"
	"testing"
)

func TestEnsureLoadedRunsOnce(t *testing.T) {
	c := New()
	var calls int
	load := func(libPath string) (map[uint64]Entry, error) {
		calls++
		return map[uint64]Entry{0x1000: {Function: "main", File: "main.c", Line: 10}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.EnsureLoaded("/lib/libfoo.so", load); err != nil {
				t.Errorf("ensure loaded: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected load to run exactly once, ran %d times", calls)
	}
	e, ok := c.Lookup("/lib/libfoo.so", 0x1000)
	if !ok || e.Function != "main" {
		t.Fatalf("expected cached entry for 0x1000, got %+v ok=%v", e, ok)
	}
}

func TestGetFileLineUnknownPC(t *testing.T) {
	c := New()
	load := func(libPath string) (map[uint64]Entry, error) {
		return map[uint64]Entry{}, nil
	}
	file, line, err := c.GetFileLine("/lib/libbar.so", 0xdead, load)
	if err != nil {
		t.Fatalf("get file line: %v", err)
	}
	if file != "" || line != 0 {
		t.Fatalf("expected empty result for unknown pc, got %q:%d", file, line)
	}
}

func TestLoadedReflectsCacheState(t *testing.T) {
	c := New()
	if c.Loaded("/lib/libbaz.so") {
		t.Fatal("expected library not loaded initially")
	}
	err := c.EnsureLoaded("/lib/libbaz.so", func(libPath string) (map[uint64]Entry, error) {
		return map[uint64]Entry{}, nil
	})
	if err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	if !c.Loaded("/lib/libbaz.so") {
		t.Fatal("expected library loaded after EnsureLoaded")
	}
}

func TestEnsureLoadedPropagatesError(t *testing.T) {
	c := New()
	wantErr := fmt.Errorf("boom")
	err := c.EnsureLoaded("/lib/libbroken.so", func(libPath string) (map[uint64]Entry, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected propagated error, got %v", err)
	}
	if c.Loaded("/lib/libbroken.so") {
		t.Fatal("a failed load must not mark the library as loaded")
	}
}
