package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventory-assistant-be/pkg/suggest"

	"github.com/patrickmn/go-cache"
)

const DefaultEntityTTL = 5 * time.Minute

// EntityCache keeps autocomplete lists read from the Datastore for a short TTL.
type EntityCache struct {
	store Datastore
	cache *cache.Cache
}

func NewEntityCache(store Datastore, ttl time.Duration) *EntityCache {
	if ttl <= 0 {
		ttl = DefaultEntityTTL
	}
	return &EntityCache{
		store: store,
		cache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(db string, kind EntityKind) string {
	return db + ":" + string(kind)
}

// List returns the cached list, loading it on a miss.
func (c *EntityCache) List(ctx context.Context, db string, kind EntityKind) ([]string, error) {
	key := cacheKey(db, kind)
	if val, found := c.cache.Get(key); found {
		if items, ok := val.([]string); ok {
			return items, nil
		}
	}

	items, err := c.store.ListEntities(ctx, db, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	c.cache.SetDefault(key, items)
	return items, nil
}

// Lookup ranks the list against query. Models use relevance scoring, other
// kinds prefix-then-substring matching.
func (c *EntityCache) Lookup(ctx context.Context, db string, kind EntityKind, query string) (suggest.Choice, error) {
	items, err := c.List(ctx, db, kind)
	if err != nil {
		return suggest.Choice{Query: query, CreateNew: true}, err
	}
	if kind == KindModel {
		return suggest.RankModels(items, query, suggest.DefaultLimit), nil
	}
	return suggest.Rank(items, query, suggest.DefaultLimit), nil
}

// GetByExactKey finds the canonical spelling of key, ignoring case.
func (c *EntityCache) GetByExactKey(ctx context.Context, db string, kind EntityKind, key string) (string, bool, error) {
	items, err := c.List(ctx, db, kind)
	if err != nil {
		return "", false, err
	}
	key = strings.TrimSpace(key)
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it), key) {
			return it, true, nil
		}
	}
	return "", false, nil
}

// Invalidate drops a list so the next read hits the Datastore.
func (c *EntityCache) Invalidate(db string, kind EntityKind) {
	c.cache.Delete(cacheKey(db, kind))
}

// Flush drops every cached list.
func (c *EntityCache) Flush() {
	c.cache.Flush()
}
