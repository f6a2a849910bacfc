// Package catalog layers a Redis- and memory-backed stale-while-revalidate
// cache in front of a ports.Catalog's Search, grounded on the teacher's
// two-tier search cache (torrent-search/internal/search/cache.go):
// Redis first, in-memory fallback, serve-stale-and-refresh-once beyond
// the fresh TTL but within the stale TTL.
package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
	"github.com/lelloman/quentin-torrentino-sub000/internal/metrics"
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultStaleTTL        = 30 * time.Minute
	defaultCacheMaxEntries = 500
)

type cacheEntry struct {
	results     []domain.CachedTorrent
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshOnce sync.Once
}

// Config tunes the cache's freshness windows. Zero CacheTTL and
// CacheMaxEntries fall back to the package defaults; a StaleTTL that is
// not longer than CacheTTL becomes three times CacheTTL.
type Config struct {
	CacheTTL        time.Duration
	StaleTTL        time.Duration
	CacheMaxEntries int
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.StaleTTL <= c.CacheTTL {
		c.StaleTTL = c.CacheTTL * 3
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = defaultCacheMaxEntries
	}
	return c
}

// CachingCatalog wraps a ports.Catalog, adding a stale-while-revalidate
// cache in front of Search only; every other operation is a direct
// pass-through to the underlying store.
type CachingCatalog struct {
	underlying ports.Catalog
	redis      *redisCacheBackend
	cfg        Config

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// New builds a CachingCatalog. redisClient may be nil, in which case the
// cache runs purely in-memory.
func New(underlying ports.Catalog, redisClient *redis.Client, cfg Config) *CachingCatalog {
	c := &CachingCatalog{
		underlying: underlying,
		cfg:        cfg.withDefaults(),
		cache:      make(map[string]*cacheEntry),
	}
	if redisClient != nil {
		c.redis = newRedisCacheBackend(redisClient)
	}
	return c
}

func (c *CachingCatalog) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	key := searchCacheKey(query, limit)
	now := time.Now()

	if c.redis != nil {
		if results, found, err := c.redis.Get(ctx, key); err == nil && found {
			metrics.CatalogCacheHitsTotal.Inc()
			c.storeMemoryOnly(key, results, now)
			return results, nil
		}
	}

	if results, fresh, needsRefresh, ok := c.lookupMemory(key, now); ok {
		metrics.CatalogCacheHitsTotal.Inc()
		if needsRefresh {
			go c.refresh(query, limit, key)
		}
		_ = fresh
		return results, nil
	}

	metrics.CatalogCacheMissesTotal.Inc()
	return c.searchAndCache(ctx, query, limit, key, now)
}

func (c *CachingCatalog) refresh(query string, limit int, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = c.searchAndCache(ctx, query, limit, key, time.Now())
}

func (c *CachingCatalog) searchAndCache(ctx context.Context, query string, limit int, key string, now time.Time) ([]domain.CachedTorrent, error) {
	results, err := c.underlying.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.store(key, results, now)
	return results, nil
}

func (c *CachingCatalog) lookupMemory(key string, now time.Time) (results []domain.CachedTorrent, fresh bool, needsRefresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.cache[key]
	if !found {
		return nil, false, false, false
	}
	if now.Before(entry.expiresAt) {
		return cloneResults(entry.results), true, false, true
	}
	if now.Before(entry.staleUntil) {
		refresh := false
		entry.refreshOnce.Do(func() { refresh = true })
		return cloneResults(entry.results), false, refresh, true
	}
	delete(c.cache, key)
	return nil, false, false, false
}

func (c *CachingCatalog) store(key string, results []domain.CachedTorrent, now time.Time) {
	if c.redis != nil {
		_ = c.redis.Set(context.Background(), key, results, c.cfg.CacheTTL)
	}
	c.storeMemoryOnly(key, results, now)
}

func (c *CachingCatalog) storeMemoryOnly(key string, results []domain.CachedTorrent, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cacheEntry{
		results:    cloneResults(results),
		updatedAt:  now,
		expiresAt:  now.Add(c.cfg.CacheTTL),
		staleUntil: now.Add(c.cfg.StaleTTL),
	}
	c.trimLocked(now)
}

func (c *CachingCatalog) trimLocked(now time.Time) {
	for key, entry := range c.cache {
		if now.After(entry.staleUntil) {
			delete(c.cache, key)
		}
	}
	if len(c.cache) <= c.cfg.CacheMaxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cacheEntry
	}
	items := make([]pair, 0, len(c.cache))
	for key, entry := range c.cache {
		items = append(items, pair{key, entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.cfg.CacheMaxEntries; i++ {
		delete(c.cache, items[i].key)
	}
}

func cloneResults(results []domain.CachedTorrent) []domain.CachedTorrent {
	cloned := make([]domain.CachedTorrent, len(results))
	copy(cloned, results)
	return cloned
}

func searchCacheKey(query string, limit int) string {
	return strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(limit)
}

// The remaining ports.Catalog operations are direct pass-throughs; a
// write to any of them can invalidate cached search results, so each
// clears the in-memory and Redis caches wholesale rather than try to
// reason about which keys it touched.

func (c *CachingCatalog) Store(ctx context.Context, candidates []domain.TorrentCandidate) (int, error) {
	n, err := c.underlying.Store(ctx, candidates)
	if err == nil {
		c.invalidateAll()
	}
	return n, err
}

func (c *CachingCatalog) Get(ctx context.Context, infoHash string) (domain.CachedTorrent, error) {
	return c.underlying.Get(ctx, infoHash)
}

func (c *CachingCatalog) StoreFiles(ctx context.Context, infoHash, title string, files []domain.CatalogFile) error {
	err := c.underlying.StoreFiles(ctx, infoHash, title, files)
	if err == nil {
		c.invalidateAll()
	}
	return err
}

func (c *CachingCatalog) GetFiles(ctx context.Context, infoHash string) ([]domain.CatalogFile, error) {
	return c.underlying.GetFiles(ctx, infoHash)
}

func (c *CachingCatalog) Exists(ctx context.Context, infoHash string) (bool, error) {
	return c.underlying.Exists(ctx, infoHash)
}

func (c *CachingCatalog) Remove(ctx context.Context, infoHash string) error {
	err := c.underlying.Remove(ctx, infoHash)
	if err == nil {
		c.invalidateAll()
	}
	return err
}

func (c *CachingCatalog) Clear(ctx context.Context) error {
	err := c.underlying.Clear(ctx)
	if err == nil {
		c.invalidateAll()
	}
	return err
}

func (c *CachingCatalog) Stats(ctx context.Context) (domain.CatalogStats, error) {
	return c.underlying.Stats(ctx)
}

func (c *CachingCatalog) invalidateAll() {
	c.mu.Lock()
	c.cache = make(map[string]*cacheEntry)
	c.mu.Unlock()

	if c.redis != nil {
		ctx := context.Background()
		iter := c.redis.client.Scan(ctx, 0, redisCachePrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			_ = c.redis.client.Del(ctx, iter.Val()).Err()
		}
	}
}
