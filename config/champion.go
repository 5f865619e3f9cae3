package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ChampionLoader resolves the currently active externally-managed config for
// a symbol/timeframe pair. It is consulted only when no explicit replay
// config was supplied; the config-authority rule makes a supplied replay
// config final.
type ChampionLoader interface {
	Load(symbol, timeframe string) (*Config, error)
}

// Cache is a get-or-compute config cache keyed by a stable fingerprint.
// It replaces the module-level cache the original system relied on: the
// owner is explicit, and invalidation happens exactly when the fingerprint
// changes (a new file version produces a new fingerprint).
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Config
}

// GetOrCompute returns the cached config for fp, computing and storing it on
// first sight.
func (c *Cache) GetOrCompute(fp string, compute func() (*Config, error)) (*Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*Config)
	}
	if cfg, ok := c.entries[fp]; ok {
		return cfg, nil
	}
	cfg, err := compute()
	if err != nil {
		return nil, err
	}
	c.entries[fp] = cfg
	return cfg, nil
}

// FileChampionLoader loads champion configs from <dir>/<symbol>_<timeframe>.yaml,
// cached by a fingerprint over the file's identity and version.
type FileChampionLoader struct {
	Dir   string
	cache Cache
}

func (l *FileChampionLoader) Load(symbol, timeframe string) (*Config, error) {
	path := filepath.Join(l.Dir, fmt.Sprintf("%s_%s.yaml", symbol, timeframe))
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: champion for %s/%s: %w", symbol, timeframe, err)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", path, fi.Size(), fi.ModTime().UnixNano())))
	fp := hex.EncodeToString(sum[:])

	return l.cache.GetOrCompute(fp, func() (*Config, error) {
		return LoadFromFile(path)
	})
}
