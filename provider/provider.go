// Package provider defines the backend contract the caching layer consumes:
// item and query CRUD plus change sequences. Any backend satisfying
// Provider is interchangeable; decorators in this package and in package
// state add cross-cutting behavior by wrapping an inner Provider.
package provider

import (
	"context"

	"github.com/dhoulb/shelving/item"
)

// ItemEvent is one emission of an item change sequence. Exactly one of
// Item (possibly nil for an absent document) or Err is meaningful; Err is
// terminal for the sequence.
type ItemEvent struct {
	Item *item.Item
	Err  error
}

// QueryEvent is one emission of a query change sequence.
type QueryEvent struct {
	Items []*item.Item
	Err   error
}

// Provider is the storage backend abstraction.
//
// GetItem returns nil with no error for an absent item; UpdateItem and
// DeleteItem on a missing item are no-ops. Callers that demand existence
// use the Require helpers, which are the only source of not-found errors.
//
// The bulk query writes (SetQuery, UpdateQuery, DeleteQuery) apply to every
// item matching the query's filters, ignoring limit and cursor, and return
// the number of items written.
//
// ItemSequence and QuerySequence return channels that first deliver the
// current value, then deliver again whenever it changes. The channel is
// closed when ctx is cancelled or after a terminal error event.
type Provider interface {
	GetItem(ctx context.Context, collection, id string) (*item.Item, error)
	AddItem(ctx context.Context, collection string, data map[string]any) (string, error)
	SetItem(ctx context.Context, collection, id string, data map[string]any) error
	UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error
	DeleteItem(ctx context.Context, collection, id string) error

	GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error)
	SetQuery(ctx context.Context, collection string, q item.Query, data map[string]any) (int, error)
	UpdateQuery(ctx context.Context, collection string, q item.Query, updates map[string]any) (int, error)
	DeleteQuery(ctx context.Context, collection string, q item.Query) (int, error)

	ItemSequence(ctx context.Context, collection, id string) <-chan ItemEvent
	QuerySequence(ctx context.Context, collection string, q item.Query) <-chan QueryEvent
}

// Through is a Provider that forwards every operation to an inner
// Provider. Decorators embed it and override the operations they
// intercept, so the contract surface stays in one place.
type Through struct {
	Inner Provider
}

func (t Through) GetItem(ctx context.Context, collection, id string) (*item.Item, error) {
	return t.Inner.GetItem(ctx, collection, id)
}

func (t Through) AddItem(ctx context.Context, collection string, data map[string]any) (string, error) {
	return t.Inner.AddItem(ctx, collection, data)
}

func (t Through) SetItem(ctx context.Context, collection, id string, data map[string]any) error {
	return t.Inner.SetItem(ctx, collection, id, data)
}

func (t Through) UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error {
	return t.Inner.UpdateItem(ctx, collection, id, updates)
}

func (t Through) DeleteItem(ctx context.Context, collection, id string) error {
	return t.Inner.DeleteItem(ctx, collection, id)
}

func (t Through) GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error) {
	return t.Inner.GetQuery(ctx, collection, q)
}

func (t Through) SetQuery(ctx context.Context, collection string, q item.Query, data map[string]any) (int, error) {
	return t.Inner.SetQuery(ctx, collection, q, data)
}

func (t Through) UpdateQuery(ctx context.Context, collection string, q item.Query, updates map[string]any) (int, error) {
	return t.Inner.UpdateQuery(ctx, collection, q, updates)
}

func (t Through) DeleteQuery(ctx context.Context, collection string, q item.Query) (int, error) {
	return t.Inner.DeleteQuery(ctx, collection, q)
}

func (t Through) ItemSequence(ctx context.Context, collection, id string) <-chan ItemEvent {
	return t.Inner.ItemSequence(ctx, collection, id)
}

func (t Through) QuerySequence(ctx context.Context, collection string, q item.Query) <-chan QueryEvent {
	return t.Inner.QuerySequence(ctx, collection, q)
}
