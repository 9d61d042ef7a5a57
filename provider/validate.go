package provider

import (
	"context"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/schema"
)

// Schemas supplies the validator for each collection. Collections without
// a validator pass through unvalidated.
type Schemas interface {
	For(collection string) schema.Validator
}

// SchemaMap is a fixed collection-to-validator mapping.
type SchemaMap map[string]schema.Validator

// For implements Schemas.
func (m SchemaMap) For(collection string) schema.Validator {
	return m[collection]
}

// Validation wraps an inner provider with schema validation: reads are
// validated (and fixed) before being returned, writes are validated before
// being delegated. It sits closest to the untrusted backend so every path
// through it yields trusted data.
type Validation struct {
	Through
	schemas Schemas
}

// NewValidation creates a validating provider around inner.
func NewValidation(inner Provider, schemas Schemas) *Validation {
	return &Validation{Through: Through{Inner: inner}, schemas: schemas}
}

func (v *Validation) validateItem(collection string, i *item.Item) (*item.Item, error) {
	if i == nil {
		return nil, nil
	}
	validator := v.schemas.For(collection)
	if validator == nil {
		return i, nil
	}
	data, err := validator.Validate(i.Data)
	if err != nil {
		return nil, err
	}
	return item.New(i.ID, data), nil
}

// validateItems validates a whole batch, aggregating one feedback per
// invalid item. One bad item fails the whole batch loudly rather than
// leaking partial success.
func (v *Validation) validateItems(collection string, items []*item.Item) ([]*item.Item, error) {
	validator := v.schemas.For(collection)
	if validator == nil {
		return items, nil
	}
	out := make([]*item.Item, 0, len(items))
	batch := schema.NewBatchFeedback()
	for _, i := range items {
		data, err := validator.Validate(i.Data)
		if err != nil {
			if f, ok := err.(*schema.Feedback); ok {
				batch.Add(i.ID, f)
				continue
			}
			return nil, err
		}
		out = append(out, item.New(i.ID, data))
	}
	if !batch.Empty() {
		return nil, batch
	}
	return out, nil
}

func (v *Validation) GetItem(ctx context.Context, collection, id string) (*item.Item, error) {
	i, err := v.Inner.GetItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return v.validateItem(collection, i)
}

func (v *Validation) AddItem(ctx context.Context, collection string, data map[string]any) (string, error) {
	if validator := v.schemas.For(collection); validator != nil {
		fixed, err := validator.Validate(data)
		if err != nil {
			return "", err
		}
		data = fixed
	}
	return v.Inner.AddItem(ctx, collection, data)
}

func (v *Validation) SetItem(ctx context.Context, collection, id string, data map[string]any) error {
	if validator := v.schemas.For(collection); validator != nil {
		fixed, err := validator.Validate(data)
		if err != nil {
			return err
		}
		data = fixed
	}
	return v.Inner.SetItem(ctx, collection, id, data)
}

func (v *Validation) UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error {
	if validator := v.schemas.For(collection); validator != nil {
		fixed, err := validator.Partial(updates)
		if err != nil {
			return err
		}
		updates = fixed
	}
	return v.Inner.UpdateItem(ctx, collection, id, updates)
}

func (v *Validation) GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error) {
	items, err := v.Inner.GetQuery(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	return v.validateItems(collection, items)
}

func (v *Validation) SetQuery(ctx context.Context, collection string, q item.Query, data map[string]any) (int, error) {
	if validator := v.schemas.For(collection); validator != nil {
		fixed, err := validator.Validate(data)
		if err != nil {
			return 0, err
		}
		data = fixed
	}
	return v.Inner.SetQuery(ctx, collection, q, data)
}

func (v *Validation) UpdateQuery(ctx context.Context, collection string, q item.Query, updates map[string]any) (int, error) {
	if validator := v.schemas.For(collection); validator != nil {
		fixed, err := validator.Partial(updates)
		if err != nil {
			return 0, err
		}
		updates = fixed
	}
	return v.Inner.UpdateQuery(ctx, collection, q, updates)
}

func (v *Validation) ItemSequence(ctx context.Context, collection, id string) <-chan ItemEvent {
	in := v.Inner.ItemSequence(ctx, collection, id)
	out := make(chan ItemEvent)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Err == nil {
				ev.Item, ev.Err = v.validateItem(collection, ev.Item)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Err != nil {
				return
			}
		}
	}()
	return out
}

func (v *Validation) QuerySequence(ctx context.Context, collection string, q item.Query) <-chan QueryEvent {
	in := v.Inner.QuerySequence(ctx, collection, q)
	out := make(chan QueryEvent)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Err == nil {
				ev.Items, ev.Err = v.validateItems(collection, ev.Items)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Err != nil {
				return
			}
		}
	}()
	return out
}
