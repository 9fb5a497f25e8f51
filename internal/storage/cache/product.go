// Package cache wraps stores with an in-process TTL cache.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/xenking/rebate-engine/internal/domain/product"
)

var _ product.Store = (*ProductStore)(nil)

// ProductStore caches product lookups of an underlying store.
//
// Only successful lookups are cached, so a product created after a miss is
// visible on the next request.
type ProductStore struct {
	next  product.Store
	cache *gocache.Cache
}

// NewProductStore returns a caching decorator around next. Entries expire
// after ttl and expired entries are purged every cleanup interval.
func NewProductStore(next product.Store, ttl, cleanup time.Duration) *ProductStore {
	return &ProductStore{
		next:  next,
		cache: gocache.New(ttl, cleanup),
	}
}

// GetProduct returns a copy of the cached product or loads it from the
// underlying store.
func (s *ProductStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	if v, ok := s.cache.Get(id); ok {
		p := v.(product.Product)
		return &p, nil
	}

	p, err := s.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, *p)
	return p, nil
}

// Invalidate drops a cached product.
func (s *ProductStore) Invalidate(id string) {
	s.cache.Delete(id)
}

// Len reports the number of cached entries, including expired ones not yet
// purged.
func (s *ProductStore) Len() int {
	return s.cache.ItemCount()
}
