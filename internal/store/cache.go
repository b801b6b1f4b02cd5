package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"artgrab/internal/catalog"
)

// ResponseCache holds track and sound-effect assets harvested from
// intercepted catalog query responses, keyed by canonical identifier.
// Music and sound effects are cached separately: the same numeric id can
// exist in both namespaces.
type ResponseCache struct {
	mutex sync.RWMutex
	songs *lru.Cache[string, catalog.Asset]
	sfxs  *lru.Cache[string, catalog.Asset]
}

// NewResponseCache creates a cache holding up to size assets per kind.
func NewResponseCache(size int) *ResponseCache {
	if size <= 0 {
		size = 256
	}
	songs, _ := lru.New[string, catalog.Asset](size)
	sfxs, _ := lru.New[string, catalog.Asset](size)
	return &ResponseCache{songs: songs, sfxs: sfxs}
}

// AddSongs stores music assets. Assets without an identifier are skipped.
func (c *ResponseCache) AddSongs(assets []catalog.Asset) {
	c.add(c.songs, assets)
}

// AddSfxs stores sound-effect assets. Assets without an identifier are skipped.
func (c *ResponseCache) AddSfxs(assets []catalog.Asset) {
	c.add(c.sfxs, assets)
}

func (c *ResponseCache) add(cache *lru.Cache[string, catalog.Asset], assets []catalog.Asset) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, a := range assets {
		id := a.AssetID()
		if id == "" {
			continue
		}
		cache.Add(canonicalID(id), a)
	}
}

// FindSong looks up a cached music asset, tolerating string and numeric
// identifier representations.
func (c *ResponseCache) FindSong(id string) (*catalog.Asset, bool) {
	return c.find(c.songs, id)
}

// FindSfx looks up a cached sound-effect asset.
func (c *ResponseCache) FindSfx(id string) (*catalog.Asset, bool) {
	return c.find(c.sfxs, id)
}

func (c *ResponseCache) find(cache *lru.Cache[string, catalog.Asset], id string) (*catalog.Asset, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if a, ok := cache.Get(canonicalID(id)); ok {
		return &a, true
	}
	// Canonicalization covers numeric forms; scan for exotic keys.
	for _, key := range cache.Keys() {
		if a, ok := cache.Peek(key); ok && a.MatchesID(id) {
			return &a, true
		}
	}
	return nil, false
}

// Size returns the number of cached assets across both kinds.
func (c *ResponseCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.songs.Len() + c.sfxs.Len()
}

// canonicalID strips leading zeros from numeric identifiers so "042" and
// "42" share a cache key. Non-numeric identifiers pass through unchanged.
func canonicalID(id string) string {
	trimmed := id
	for len(trimmed) > 1 && trimmed[0] == '0' {
		trimmed = trimmed[1:]
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			return id
		}
	}
	if trimmed == "" {
		return id
	}
	return trimmed
}
