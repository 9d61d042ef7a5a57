package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/dhoulb/shelving/item"
)

// Debug wraps an inner provider and logs every operation with its duration
// and outcome. Return values and errors pass through unchanged; errors are
// logged then rethrown, never swallowed.
type Debug struct {
	Through
	log *slog.Logger
}

// NewDebug creates a logging provider around inner. A nil logger uses
// slog.Default.
func NewDebug(inner Provider, log *slog.Logger) *Debug {
	if log == nil {
		log = slog.Default()
	}
	return &Debug{Through: Through{Inner: inner}, log: log}
}

func (d *Debug) report(op, ref string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		d.log.Error("provider call failed", "op", op, "ref", ref, "elapsed", elapsed, "err", err)
		return
	}
	d.log.Debug("provider call", "op", op, "ref", ref, "elapsed", elapsed)
}

func (d *Debug) GetItem(ctx context.Context, collection, id string) (*item.Item, error) {
	start := time.Now()
	i, err := d.Inner.GetItem(ctx, collection, id)
	d.report("getItem", item.Doc(collection, id).String(), start, err)
	return i, err
}

func (d *Debug) AddItem(ctx context.Context, collection string, data map[string]any) (string, error) {
	start := time.Now()
	id, err := d.Inner.AddItem(ctx, collection, data)
	d.report("addItem", collection, start, err)
	return id, err
}

func (d *Debug) SetItem(ctx context.Context, collection, id string, data map[string]any) error {
	start := time.Now()
	err := d.Inner.SetItem(ctx, collection, id, data)
	d.report("setItem", item.Doc(collection, id).String(), start, err)
	return err
}

func (d *Debug) UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error {
	start := time.Now()
	err := d.Inner.UpdateItem(ctx, collection, id, updates)
	d.report("updateItem", item.Doc(collection, id).String(), start, err)
	return err
}

func (d *Debug) DeleteItem(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := d.Inner.DeleteItem(ctx, collection, id)
	d.report("deleteItem", item.Doc(collection, id).String(), start, err)
	return err
}

func (d *Debug) GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error) {
	start := time.Now()
	items, err := d.Inner.GetQuery(ctx, collection, q)
	d.report("getQuery", item.Docs(collection, q).String(), start, err)
	return items, err
}

func (d *Debug) SetQuery(ctx context.Context, collection string, q item.Query, data map[string]any) (int, error) {
	start := time.Now()
	n, err := d.Inner.SetQuery(ctx, collection, q, data)
	d.report("setQuery", item.Docs(collection, q).String(), start, err)
	return n, err
}

func (d *Debug) UpdateQuery(ctx context.Context, collection string, q item.Query, updates map[string]any) (int, error) {
	start := time.Now()
	n, err := d.Inner.UpdateQuery(ctx, collection, q, updates)
	d.report("updateQuery", item.Docs(collection, q).String(), start, err)
	return n, err
}

func (d *Debug) DeleteQuery(ctx context.Context, collection string, q item.Query) (int, error) {
	start := time.Now()
	n, err := d.Inner.DeleteQuery(ctx, collection, q)
	d.report("deleteQuery", item.Docs(collection, q).String(), start, err)
	return n, err
}

func (d *Debug) ItemSequence(ctx context.Context, collection, id string) <-chan ItemEvent {
	ref := item.Doc(collection, id).String()
	d.log.Debug("provider sequence opened", "op", "itemSequence", "ref", ref)
	in := d.Inner.ItemSequence(ctx, collection, id)
	out := make(chan ItemEvent)
	go func() {
		defer close(out)
		defer d.log.Debug("provider sequence closed", "op", "itemSequence", "ref", ref)
		for ev := range in {
			if ev.Err != nil {
				d.log.Error("provider sequence failed", "op", "itemSequence", "ref", ref, "err", ev.Err)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (d *Debug) QuerySequence(ctx context.Context, collection string, q item.Query) <-chan QueryEvent {
	ref := item.Docs(collection, q).String()
	d.log.Debug("provider sequence opened", "op", "querySequence", "ref", ref)
	in := d.Inner.QuerySequence(ctx, collection, q)
	out := make(chan QueryEvent)
	go func() {
		defer close(out)
		defer d.log.Debug("provider sequence closed", "op", "querySequence", "ref", ref)
		for ev := range in {
			if ev.Err != nil {
				d.log.Error("provider sequence failed", "op", "querySequence", "ref", ref, "err", ev.Err)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
