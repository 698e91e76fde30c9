// Package pagecache caches search result pages in a key-value store.
package pagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/db"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
)

// pageFetcher is the decorated search port.
type pageFetcher interface {
	FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error)
}

// store is the consumer interface for the page cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedFetcher serves repeated page requests from the store.
type CachedFetcher struct {
	inner      pageFetcher
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner pageFetcher,
	s store,
	keyPrefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedFetcher {
	return &CachedFetcher{
		inner:      inner,
		store:      s,
		keyPrefix:  keyPrefix + "page_cache:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type cachedPage struct {
	TotalHits  int         `json:"total_hits"`
	TotalPages int         `json:"total_pages"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Hits       []cachedHit `json:"hits"`
}

type cachedHit struct {
	SKU   string `json:"sku"`
	Title string `json:"title"`
}

// FetchPage returns a cached page or calls the inner fetcher.
// Failed fetches are never cached.
func (c *CachedFetcher) FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	key := c.cacheKey(req)

	if page, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return page, nil
	}

	c.incCache("miss")

	page, err := c.inner.FetchPage(ctx, req)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("fetch page: %w", err)
	}

	c.putToCache(ctx, key, page)
	return page, nil
}

func (c *CachedFetcher) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedFetcher) cacheKey(req catalog.PageRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.Page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.PageSize)))
	return c.keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedFetcher) getFromCache(ctx context.Context, key string) (catalog.Page, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached page", zap.String("key", key), zap.Error(err))
		}
		return catalog.Page{}, false
	}
	if len(data) == 0 {
		return catalog.Page{}, false
	}

	var cp cachedPage
	if err := json.Unmarshal(data, &cp); err != nil {
		c.logger.Warn("Failed to parse cached page", zap.String("key", key), zap.Error(err))
		return catalog.Page{}, false
	}

	hits := make([]catalog.Hit, len(cp.Hits))
	for i, h := range cp.Hits {
		hits[i] = catalog.Hit{SKU: h.SKU, Title: h.Title}
	}
	return catalog.Page{
		TotalHits:  cp.TotalHits,
		TotalPages: cp.TotalPages,
		Page:       cp.Page,
		PageSize:   cp.PageSize,
		Hits:       hits,
	}, true
}

func (c *CachedFetcher) putToCache(ctx context.Context, key string, page catalog.Page) {
	hits := make([]cachedHit, len(page.Hits))
	for i, h := range page.Hits {
		hits[i] = cachedHit{SKU: h.SKU, Title: h.Title}
	}
	data, err := json.Marshal(cachedPage{
		TotalHits:  page.TotalHits,
		TotalPages: page.TotalPages,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Hits:       hits,
	})
	if err != nil {
		c.logger.Warn("Failed to encode page for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache page", zap.String("key", key), zap.Error(err))
	}
}
