package item

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Operator is a field comparison used by filters.
type Operator string

const (
	OpIs       Operator = "is"
	OpNot      Operator = "not"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
	OpLT       Operator = "lt"
	OpLTE      Operator = "lte"
	OpGT       Operator = "gt"
	OpGTE      Operator = "gte"
)

// Filter matches a single field against a value.
type Filter struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// Match reports whether the item passes this filter.
func (f Filter) Match(i *Item) bool {
	got := i.Get(f.Field)
	switch f.Op {
	case OpIs:
		return equalValues(got, f.Value)
	case OpNot:
		return !equalValues(got, f.Value)
	case OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if equalValues(got, v) {
				return true
			}
		}
		return false
	case OpContains:
		values, ok := got.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if equalValues(v, f.Value) {
				return true
			}
		}
		return false
	case OpLT, OpLTE, OpGT, OpGTE:
		c, ok := compareValues(got, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpLT:
			return c < 0
		case OpLTE:
			return c <= 0
		case OpGT:
			return c > 0
		default:
			return c >= 0
		}
	}
	return false
}

// Direction orders a sort key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort is one key of a lexicographic sort order.
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// CursorDirection selects which side of the boundary item a page lies on.
type CursorDirection string

const (
	After  CursorDirection = "after"
	Before CursorDirection = "before"
)

// Cursor marks a page boundary: items strictly after or before the given
// item under the query's active sort order.
type Cursor struct {
	Direction CursorDirection `json:"direction"`
	Item      *Item           `json:"item"`
}

// Query selects a filtered, sorted, optionally limited set of items.
// Filters are conjunctive. Sorts apply lexicographically in order. A zero
// Limit means unlimited. Where is an optional expression evaluated against
// each item's fields, conjunctive with Filters.
type Query struct {
	Filters []Filter `json:"filters,omitempty"`
	Sorts   []Sort   `json:"sorts,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Where   string   `json:"where,omitempty"`
	Cursor  *Cursor  `json:"cursor,omitempty"`
}

// Filter returns a copy of the query with one more filter appended.
func (q Query) Filter(field string, op Operator, value any) Query {
	c := q.clone()
	c.Filters = append(c.Filters, Filter{Field: field, Op: op, Value: value})
	return c
}

// Sort returns a copy of the query with one more sort key appended.
func (q Query) Sort(field string, direction Direction) Query {
	c := q.clone()
	c.Sorts = append(c.Sorts, Sort{Field: field, Direction: direction})
	return c
}

// Max returns a copy of the query with the given limit.
func (q Query) Max(limit int) Query {
	c := q.clone()
	c.Limit = limit
	return c
}

// After returns a copy of the query paging strictly after the given item.
func (q Query) After(i *Item) Query {
	c := q.clone()
	c.Cursor = &Cursor{Direction: After, Item: i}
	return c
}

// Before returns a copy of the query paging strictly before the given item.
func (q Query) Before(i *Item) Query {
	c := q.clone()
	c.Cursor = &Cursor{Direction: Before, Item: i}
	return c
}

// Unlimited returns a copy of the query with limit and cursor stripped,
// the form bulk writes use so a stale limit cannot silently narrow them.
func (q Query) Unlimited() Query {
	c := q.clone()
	c.Limit = 0
	c.Cursor = nil
	return c
}

func (q Query) clone() Query {
	c := q
	c.Filters = append([]Filter(nil), q.Filters...)
	c.Sorts = append([]Sort(nil), q.Sorts...)
	return c
}

// Match reports whether the item passes every filter and the where
// expression, ignoring sort, cursor and limit.
func (q Query) Match(i *Item) (bool, error) {
	for _, f := range q.Filters {
		if !f.Match(i) {
			return false, nil
		}
	}
	if q.Where != "" {
		ok, err := matchWhere(q.Where, i)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Compare orders two items under the query's sort keys, breaking ties by
// id so the order is total. Used for sorting, cursors and page merging.
func (q Query) Compare(a, b *Item) int {
	for _, s := range q.Sorts {
		c, ok := compareValues(a.Get(s.Field), b.Get(s.Field))
		if !ok {
			c = strings.Compare(fmt.Sprint(a.Get(s.Field)), fmt.Sprint(b.Get(s.Field)))
		}
		if c != 0 {
			if s.Direction == Descending {
				return -c
			}
			return c
		}
	}
	return strings.Compare(a.ID, b.ID)
}

// Apply runs the full query pipeline over the given items: filter, stable
// sort, cursor, then limit. The input slice is not modified.
func (q Query) Apply(items []*Item) ([]*Item, error) {
	out := make([]*Item, 0, len(items))
	for _, i := range items {
		ok, err := q.Match(i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return q.Compare(out[a], out[b]) < 0 })
	if q.Cursor != nil && q.Cursor.Item != nil {
		kept := out[:0]
		for _, i := range out {
			c := q.Compare(i, q.Cursor.Item)
			if (q.Cursor.Direction == After && c > 0) || (q.Cursor.Direction == Before && c < 0) {
				kept = append(kept, i)
			}
		}
		out = kept
		// A "before" page keeps the items closest to the boundary.
		if q.Cursor.Direction == Before && q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Key returns the canonical serialized form of the query. Structurally
// equal queries produce the same key regardless of filter declaration
// order, so they share one cache entry and one timestamp slot.
func (q Query) Key() string {
	c := q.clone()
	sort.SliceStable(c.Filters, func(a, b int) bool {
		fa, fb := c.Filters[a], c.Filters[b]
		if fa.Field != fb.Field {
			return fa.Field < fb.Field
		}
		if fa.Op != fb.Op {
			return fa.Op < fb.Op
		}
		ja, _ := json.Marshal(fa.Value)
		jb, _ := json.Marshal(fb.Value)
		return string(ja) < string(jb)
	})
	b, err := json.Marshal(c)
	if err != nil {
		// Only unserializable filter values can get here.
		return fmt.Sprintf("%#v", c)
	}
	return string(b)
}

// equalValues compares two dynamic values for equality with numeric
// coercion, so 2 and 2.0 (int vs decoded JSON float64) compare equal.
func equalValues(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return a == b
}

// compareValues orders two dynamic values when they are of comparable
// kinds: numbers, strings or bools. Returns false when they are not.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
		return 0, false
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, true
			case bb:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
