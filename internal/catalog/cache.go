package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coocood/freecache"
	gocache "github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocachefreecache "github.com/eko/gocache/store/freecache/v4"
	"github.com/golang/snappy"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 16 * 1024 * 1024
)

// PageCache stores fetched pages keyed by node, range and node revision.
//
// Safe for concurrent use. A nil *PageCache is a valid, always-missing cache.
type PageCache struct {
	store    gocache.CacheInterface[[]byte]
	ttl      time.Duration
	compress bool
	logger   *log.Logger

	// revs maps node IDs to *atomic.Uint64.
	revs sync.Map
}

// NewPageCache builds a cache from config. Returns nil when the cache is disabled.
func NewPageCache(cfg shared.CacheConfig, logger *log.Logger) *PageCache {
	if !cfg.Enabled {
		return nil
	}

	size := cfg.SizeMB * 1024 * 1024
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := cfg.TTL.Duration
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	store := gocachefreecache.NewFreecache(freecache.NewCache(size))
	return &PageCache{
		store:    gocache.New[[]byte](store),
		ttl:      ttl,
		compress: cfg.Compress,
		logger:   shared.WithLogger(logger, "component", "page-cache"),
	}
}

// Get returns the cached page for key.
func (c *PageCache) Get(ctx context.Context, key string) (models.ItemPage, bool) {
	if c == nil {
		return models.ItemPage{}, false
	}

	value, err := c.store.Get(ctx, key)
	if err != nil {
		return models.ItemPage{}, false
	}

	if c.compress {
		value, err = snappy.Decode(nil, value)
		if err != nil {
			c.logger.Debug("cache decode failed", "key", key, "error", err)
			return models.ItemPage{}, false
		}
	}

	var page models.ItemPage
	if err := json.Unmarshal(value, &page); err != nil {
		c.logger.Debug("cache unmarshal failed", "key", key, "error", err)
		return models.ItemPage{}, false
	}
	return page, true
}

// Put stores page under key. Failures are logged and otherwise ignored.
func (c *PageCache) Put(ctx context.Context, key string, page models.ItemPage) {
	if c == nil {
		return
	}

	value, err := json.Marshal(page)
	if err != nil {
		c.logger.Debug("cache marshal failed", "key", key, "error", err)
		return
	}
	if c.compress {
		value = snappy.Encode(nil, value)
	}

	if err := c.store.Set(ctx, key, value, libstore.WithExpiration(c.ttl)); err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// Clear drops every entry.
func (c *PageCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// Invalidate makes every cached page of nodeID unreachable.
func (c *PageCache) Invalidate(nodeID string) {
	if c == nil {
		return
	}
	c.revision(nodeID).Add(1)
}

func (c *PageCache) revision(nodeID string) *atomic.Uint64 {
	rev, _ := c.revs.LoadOrStore(nodeID, new(atomic.Uint64))
	return rev.(*atomic.Uint64)
}

func (c *PageCache) key(nodeID string, r models.Range) string {
	var rev uint64
	if c != nil {
		rev = c.revision(nodeID).Load()
	}
	return fmt.Sprintf("items:%s:%d:%d:%d", nodeID, r.Lower, r.Upper, rev)
}
