package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func bytesLoader(calls *int) Loader[string] {
	return func(key string) (string, []byte, error) {
		if calls != nil {
			*calls++
		}
		return "item:" + key, []byte("data:" + key), nil
	}
}

func newTestEngine(t *testing.T, maxSize int, maxAge time.Duration, loader Loader[string]) *Engine[string] {
	t.Helper()
	eng, err := NewEngine("test", maxSize, maxAge, loader, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return eng
}

func TestNewEngine_InvalidParameters(t *testing.T) {
	loader := bytesLoader(nil)
	tests := []struct {
		name    string
		maxSize int
		maxAge  time.Duration
		loader  Loader[string]
	}{
		{"zero max size", 0, time.Minute, loader},
		{"negative max size", -5, time.Minute, loader},
		{"zero max age", 10, 0, loader},
		{"negative max age", 10, -time.Second, loader},
		{"nil loader", 10, time.Minute, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine("test", tt.maxSize, tt.maxAge, tt.loader, zerolog.Nop()); err == nil {
				t.Error("NewEngine() should reject invalid parameters")
			}
		})
	}
}

func TestEngine_GetOrLoad_HitAndMissCounters(t *testing.T) {
	calls := 0
	eng := newTestEngine(t, 10, time.Minute, bytesLoader(&calls))

	// First access: miss + load.
	entry, err := eng.GetOrLoad("a")
	if err != nil {
		t.Fatalf("GetOrLoad() error: %v", err)
	}
	if entry.Item != "item:a" {
		t.Errorf("Item = %q, want %q", entry.Item, "item:a")
	}
	if string(entry.Buffer.Bytes()) != "data:a" {
		t.Errorf("Buffer = %q, want %q", entry.Buffer.Bytes(), "data:a")
	}
	entry.Release()

	// Second access: hit, no load.
	entry, err = eng.GetOrLoad("a")
	if err != nil {
		t.Fatalf("GetOrLoad() error: %v", err)
	}
	entry.Release()

	if calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}

	stats := eng.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = %+v, want hits=1 misses=1", stats)
	}
	if stats.Hits+stats.Misses != 2 {
		t.Errorf("hits+misses = %d, want number of calls 2", stats.Hits+stats.Misses)
	}
}

func TestEngine_SizeBoundAndEviction(t *testing.T) {
	const maxSize = 3
	eng := newTestEngine(t, maxSize, time.Hour, bytesLoader(nil))

	for i := 0; i < maxSize+1; i++ {
		entry, err := eng.GetOrLoad(fmt.Sprintf("key-%d", i))
		if err != nil {
			t.Fatalf("GetOrLoad() error: %v", err)
		}
		entry.Release()
		if size := eng.Stats().Size; size > maxSize {
			t.Errorf("size = %d, must never exceed %d", size, maxSize)
		}
	}

	stats := eng.Stats()
	if stats.Size != maxSize {
		t.Errorf("final size = %d, want %d", stats.Size, maxSize)
	}
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want exactly 1", stats.Evictions)
	}
}

func TestEngine_ExpiredEntriesEvictedFirst(t *testing.T) {
	eng := newTestEngine(t, 2, 100*time.Millisecond, bytesLoader(nil))

	for _, key := range []string{"a", "b"} {
		entry, err := eng.GetOrLoad(key)
		if err != nil {
			t.Fatalf("GetOrLoad(%q) error: %v", key, err)
		}
		entry.Release()
	}

	// Immediate re-gets hit.
	for _, key := range []string{"a", "b"} {
		entry, err := eng.GetOrLoad(key)
		if err != nil {
			t.Fatalf("GetOrLoad(%q) error: %v", key, err)
		}
		entry.Release()
	}
	if stats := eng.Stats(); stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}

	time.Sleep(150 * time.Millisecond)

	// Both entries expired: the re-get misses and triggers a reload.
	entry, err := eng.GetOrLoad("a")
	if err != nil {
		t.Fatalf("GetOrLoad() after expiry error: %v", err)
	}
	entry.Release()

	stats := eng.Stats()
	if stats.Misses != 3 {
		t.Errorf("misses = %d, want 3", stats.Misses)
	}
	if stats.Evictions < 1 {
		t.Errorf("evictions = %d, want at least 1", stats.Evictions)
	}
}

func TestEngine_LoaderFailure(t *testing.T) {
	loadErr := errors.New("backing store unavailable")
	eng := newTestEngine(t, 10, time.Minute, func(key string) (string, []byte, error) {
		return "", nil, loadErr
	})

	if _, err := eng.GetOrLoad("a"); !errors.Is(err, loadErr) {
		t.Errorf("GetOrLoad() error = %v, want loader error", err)
	}

	// Nothing inserted on failure.
	if stats := eng.Stats(); stats.Size != 0 {
		t.Errorf("size after failed load = %d, want 0", stats.Size)
	}
}

func TestEngine_Clear(t *testing.T) {
	eng := newTestEngine(t, 10, time.Minute, bytesLoader(nil))

	entry, err := eng.GetOrLoad("a")
	if err != nil {
		t.Fatalf("GetOrLoad() error: %v", err)
	}
	buf := entry.Buffer
	entry.Release()

	eng.Clear()

	stats := eng.Stats()
	if stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Errorf("Stats after Clear = %+v, want all zero", stats)
	}
	if buf.RefCount() != 0 {
		t.Errorf("buffer refs after Clear = %d, want 0", buf.RefCount())
	}
}

func TestEngine_CallerReferenceSurvivesEviction(t *testing.T) {
	eng := newTestEngine(t, 1, time.Hour, bytesLoader(nil))

	entry, err := eng.GetOrLoad("a")
	if err != nil {
		t.Fatalf("GetOrLoad() error: %v", err)
	}

	// Evict "a" by inserting a second key into a size-1 cache while the
	// caller still holds its reference.
	other, err := eng.GetOrLoad("b")
	if err != nil {
		t.Fatalf("GetOrLoad() error: %v", err)
	}
	other.Release()

	if string(entry.Buffer.Bytes()) != "data:a" {
		t.Errorf("evicted entry bytes = %q, want still readable %q", entry.Buffer.Bytes(), "data:a")
	}
	entry.Release()

	if entry.Buffer.RefCount() != 0 {
		t.Errorf("refs after final release = %d, want 0", entry.Buffer.RefCount())
	}
}

func TestEngine_ConcurrentGetOrLoad(t *testing.T) {
	eng := newTestEngine(t, 8, time.Minute, bytesLoader(nil))

	const workers = 16
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			key := fmt.Sprintf("key-%d", i%4)
			for j := 0; j < 100; j++ {
				entry, err := eng.GetOrLoad(key)
				if err != nil {
					done <- err
					return
				}
				_ = entry.Buffer.Bytes()
				entry.Release()
			}
			done <- nil
		}(i)
	}
	for i := 0; i < workers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent GetOrLoad() error: %v", err)
		}
	}

	stats := eng.Stats()
	if got := stats.Hits + stats.Misses; got != workers*100 {
		t.Errorf("hits+misses = %d, want %d", got, workers*100)
	}
}
