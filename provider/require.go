package provider

import (
	"context"

	"github.com/dhoulb/shelving/item"
)

// RequireItem reads an item that must exist, returning a not-found error
// when it is absent. This is the only read that fails on absence; GetItem
// returns nil.
func RequireItem(ctx context.Context, p Provider, collection, id string) (*item.Item, error) {
	i, err := p.GetItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, NotFound(collection, id)
	}
	return i, nil
}

// RequireQuery reads a query that must match at least one item, returning
// a not-found error for an empty result.
func RequireQuery(ctx context.Context, p Provider, collection string, q item.Query) ([]*item.Item, error) {
	items, err := p.GetQuery(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewError(ErrNotFound, collection+" query matched nothing").
			WithDetail("collection", collection).
			WithDetail("query", q.Key())
	}
	return items, nil
}

// RequireUpdateItem updates an item that must exist.
func RequireUpdateItem(ctx context.Context, p Provider, collection, id string, updates map[string]any) error {
	if _, err := RequireItem(ctx, p, collection, id); err != nil {
		return err
	}
	return p.UpdateItem(ctx, collection, id, updates)
}

// RequireDeleteItem deletes an item that must exist.
func RequireDeleteItem(ctx context.Context, p Provider, collection, id string) error {
	if _, err := RequireItem(ctx, p, collection, id); err != nil {
		return err
	}
	return p.DeleteItem(ctx, collection, id)
}
