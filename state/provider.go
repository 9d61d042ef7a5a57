package state

import (
	"context"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// CacheProvider is the write-through-read decorator: every value observed
// through it lands in the cache registry. Reads push what they saw; writes
// push the known-correct resulting value (the write's own validated input)
// instead of re-reading. It sits closest to the application so everything
// that passed validation is what gets cached.
type CacheProvider struct {
	provider.Through
	cache *Cache
}

// NewCacheProvider creates a cache-populating provider around inner.
func NewCacheProvider(inner provider.Provider, cache *Cache) *CacheProvider {
	return &CacheProvider{Through: provider.Through{Inner: inner}, cache: cache}
}

// pushItem records an observed document value without scheduling a fetch.
func (c *CacheProvider) pushItem(collection, id string, i *item.Item) {
	s, _ := c.cache.document(item.Doc(collection, id))
	s.tryNext(i)
}

func (c *CacheProvider) GetItem(ctx context.Context, collection, id string) (*item.Item, error) {
	i, err := c.Inner.GetItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	c.pushItem(collection, id, i)
	return i, nil
}

func (c *CacheProvider) AddItem(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, err := c.Inner.AddItem(ctx, collection, data)
	if err != nil {
		return "", err
	}
	c.pushItem(collection, id, item.New(id, data))
	return id, nil
}

func (c *CacheProvider) SetItem(ctx context.Context, collection, id string, data map[string]any) error {
	if err := c.Inner.SetItem(ctx, collection, id, data); err != nil {
		return err
	}
	c.pushItem(collection, id, item.New(id, data))
	return nil
}

// UpdateItem merges the updates into the cached value when one is
// already present. Without a cached base the resulting value is unknown
// here, so nothing is pushed; the next read repopulates.
func (c *CacheProvider) UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error {
	if err := c.Inner.UpdateItem(ctx, collection, id, updates); err != nil {
		return err
	}
	s, _ := c.cache.document(item.Doc(collection, id))
	if cached, got := s.Value(); got && cached != nil {
		s.tryNext(cached.Merge(updates))
	}
	return nil
}

func (c *CacheProvider) DeleteItem(ctx context.Context, collection, id string) error {
	if err := c.Inner.DeleteItem(ctx, collection, id); err != nil {
		return err
	}
	c.pushItem(collection, id, nil)
	return nil
}

func (c *CacheProvider) GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error) {
	items, err := c.Inner.GetQuery(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	s, _ := c.cache.query(item.Docs(collection, q))
	s.tryNext(items)
	// Every member document is also an observed value.
	for _, i := range items {
		c.pushItem(collection, i.ID, i)
	}
	return items, nil
}
