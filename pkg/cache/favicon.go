package cache

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"time"
)

// MaxFaviconBytes is the upper bound for favicon files. Status responses
// embed the icon inline, so anything larger is rejected at load time.
const MaxFaviconBytes = 64 * 1024

var (
	// ErrFaviconNotFound indicates the favicon file does not exist or is
	// not a regular file.
	ErrFaviconNotFound = errors.New("favicon not found")

	// ErrFaviconTooLarge indicates the favicon file exceeds
	// MaxFaviconBytes.
	ErrFaviconTooLarge = errors.New("favicon too large")
)

// FaviconCache loads icon files from a data directory and caches them as
// ready-to-embed data URIs. It is an Engine specialization: only the loader
// differs, all expiry and eviction behavior is the shared engine's.
type FaviconCache struct {
	engine *Engine[string]
}

// NewFaviconCache creates a favicon cache rooted at dir. Paths passed to Get
// are resolved relative to dir and must stay inside it.
func NewFaviconCache(dir string, maxSize int, maxAge time.Duration, logger zerolog.Logger) (*FaviconCache, error) {
	loader := func(path string) (string, []byte, error) {
		return loadFavicon(dir, path, logger)
	}

	engine, err := NewEngine("favicon", maxSize, maxAge, loader, logger)
	if err != nil {
		return nil, err
	}
	return &FaviconCache{engine: engine}, nil
}

// Get returns the cached favicon for path, loading it from disk on first
// access. The entry's Item is the "data:image/png;base64,..." URI; its
// buffer holds the raw file bytes with one reference retained for the
// caller.
func (c *FaviconCache) Get(path string) (*Entry[string], error) {
	if path == "" {
		return nil, ErrFaviconNotFound
	}
	return c.engine.GetOrLoad(path)
}

// Clear releases all cached favicons. Called on content reload.
func (c *FaviconCache) Clear() {
	c.engine.Clear()
}

// Name implements the monitor's stats source.
func (c *FaviconCache) Name() string {
	return c.engine.Name()
}

// Stats returns the underlying engine's counters.
func (c *FaviconCache) Stats() Stats {
	return c.engine.Stats()
}

// loadFavicon validates and reads an icon file, returning the data URI and
// the raw bytes.
func loadFavicon(dir, path string, logger zerolog.Logger) (string, []byte, error) {
	full := filepath.Join(dir, filepath.Clean("/"+path))

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("path", full).Msg("Favicon file not found")
			return "", nil, fmt.Errorf("%w: %s", ErrFaviconNotFound, path)
		}
		return "", nil, fmt.Errorf("stat favicon %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s is not a regular file", ErrFaviconNotFound, path)
	}
	if info.Size() > MaxFaviconBytes {
		logger.Warn().Str("path", full).Int64("size", info.Size()).Msg("Favicon file too large")
		return "", nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFaviconTooLarge, info.Size(), MaxFaviconBytes)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", nil, fmt.Errorf("read favicon %s: %w", path, err)
	}

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	logger.Info().Str("path", path).Int("bytes", len(data)).Msg("Cached favicon")
	return uri, data, nil
}
