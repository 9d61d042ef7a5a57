// Package item defines the data model shared by every storage backend:
// keyed items, queries over them, and canonical references to both.
package item

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Item is a single keyed record in a collection. The ID is unique within
// its collection. Items are treated as immutable once handed out: callers
// must not mutate Data in place, writers build new values via Clone or With.
type Item struct {
	ID   string
	Data map[string]any
}

// New returns an item with the given id and data.
func New(id string, data map[string]any) *Item {
	if data == nil {
		data = map[string]any{}
	}
	return &Item{ID: id, Data: data}
}

// Get returns the named field from the item's data, or nil if absent.
// The id is addressable as the "id" field so filters and sorts can use it.
func (i *Item) Get(field string) any {
	if field == "id" {
		return i.ID
	}
	return i.Data[field]
}

// Clone returns a deep-enough copy: the data map is copied one level deep.
// Nested values are shared, which is safe as long as callers treat items
// as immutable.
func (i *Item) Clone() *Item {
	data := make(map[string]any, len(i.Data))
	for k, v := range i.Data {
		data[k] = v
	}
	return &Item{ID: i.ID, Data: data}
}

// With returns a copy of the item with one field replaced.
func (i *Item) With(field string, value any) *Item {
	c := i.Clone()
	c.Data[field] = value
	return c
}

// Merge returns a copy of the item with every field from updates applied.
func (i *Item) Merge(updates map[string]any) *Item {
	c := i.Clone()
	for k, v := range updates {
		c.Data[k] = v
	}
	return c
}

// Equal reports whether two items have the same id and the same data by
// value. Either side may be nil.
func Equal(a, b *Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && reflect.DeepEqual(a.Data, b.Data)
}

// EqualSlices reports whether two result sets are element-wise equal.
func EqualSlices(a, b []*Item) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if !Equal(a[n], b[n]) {
			return false
		}
	}
	return true
}

// MarshalJSON flattens the item into a single object with the id stored
// under the "id" key, the on-disk and wire form used by the JSONL backend.
func (i *Item) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(i.Data)+1)
	for k, v := range i.Data {
		flat[k] = v
	}
	flat["id"] = i.ID
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *Item) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	id, ok := flat["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("item is missing a string id field")
	}
	delete(flat, "id")
	i.ID = id
	i.Data = flat
	return nil
}
