package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veiled-verse/internal/cache"

	"go.uber.org/zap"
)

// Cached puts a read-through Redis cache in front of Get. Every write to a
// document drops its cache entry; queries always go to the inner store.
type Cached struct {
	inner  Store
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(inner Store, c *cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func (c *Cached) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := c.cache.Get(ctx, cacheKey(collection, id), &doc)
	if err == nil && doc != nil {
		return doc, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) && !errors.Is(err, cache.ErrUnavailable) {
		c.logger.Warn("failed to read document cache", zap.String("collection", collection), zap.Error(err))
	}

	doc, err = c.inner.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, cacheKey(collection, id), doc, c.ttl)
	return doc, nil
}

func (c *Cached) Create(ctx context.Context, collection string, data Document) (string, error) {
	return c.inner.Create(ctx, collection, data)
}

func (c *Cached) Set(ctx context.Context, collection, id string, data Document) error {
	defer c.invalidate(ctx, collection, id)
	return c.inner.Set(ctx, collection, id, data)
}

func (c *Cached) Update(ctx context.Context, collection, id string, patch Document) error {
	defer c.invalidate(ctx, collection, id)
	return c.inner.Update(ctx, collection, id, patch)
}

func (c *Cached) Delete(ctx context.Context, collection, id string) error {
	defer c.invalidate(ctx, collection, id)
	return c.inner.Delete(ctx, collection, id)
}

func (c *Cached) Query(ctx context.Context, collection string, where ...Condition) ([]Document, error) {
	return c.inner.Query(ctx, collection, where...)
}

func (c *Cached) Transact(ctx context.Context, collection, id string, fn TransactFunc) error {
	defer c.invalidate(ctx, collection, id)
	return c.inner.Transact(ctx, collection, id, fn)
}

func (c *Cached) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	defer c.invalidate(ctx, collection, id)
	return c.inner.Increment(ctx, collection, id, field, delta)
}

func (c *Cached) invalidate(ctx context.Context, collection, id string) {
	err := c.cache.Delete(ctx, cacheKey(collection, id))
	if err != nil && !errors.Is(err, cache.ErrUnavailable) {
		c.logger.Warn("failed to invalidate document cache",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
	}
}
