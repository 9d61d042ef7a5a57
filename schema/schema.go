// Package schema defines the validation capability consumed by the
// validating provider: an opaque "validate raw data, return fixed data or a
// structured feedback error" contract, plus the feedback error types.
// The reference implementation is backed by CUE; any engine satisfying
// Validator is interchangeable.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Validator checks and normalizes raw item data.
//
// Validate checks the whole value: missing required fields are errors and
// defaults may be filled in. Partial checks only the fields present in the
// input, the mode used for merge-style updates. Both return the validated
// (possibly fixed) data, or a *Feedback describing every invalid field.
type Validator interface {
	Validate(data map[string]any) (map[string]any, error)
	Partial(data map[string]any) (map[string]any, error)
}

// Feedback is a structured validation error: one message per invalid field.
type Feedback struct {
	Message string
	Fields  map[string]string
}

// NewFeedback creates a feedback error with the given summary message.
func NewFeedback(message string) *Feedback {
	return &Feedback{Message: message, Fields: map[string]string{}}
}

// WithField records one invalid field and returns the feedback.
func (f *Feedback) WithField(field, message string) *Feedback {
	if f.Fields == nil {
		f.Fields = map[string]string{}
	}
	f.Fields[field] = message
	return f
}

func (f *Feedback) Error() string {
	if len(f.Fields) == 0 {
		return f.Message
	}
	fields := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", k, f.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", f.Message, strings.Join(parts, "; "))
}

// BatchFeedback aggregates validation failures across a batch of items,
// one entry per failing item id. A single bad item must not silently drop
// the batch: the whole read fails carrying every item's feedback.
type BatchFeedback struct {
	Items map[string]*Feedback
}

// NewBatchFeedback creates an empty batch feedback.
func NewBatchFeedback() *BatchFeedback {
	return &BatchFeedback{Items: map[string]*Feedback{}}
}

// Add records the feedback for one item.
func (b *BatchFeedback) Add(id string, f *Feedback) {
	b.Items[id] = f
}

// Empty reports whether no item failed.
func (b *BatchFeedback) Empty() bool {
	return len(b.Items) == 0
}

func (b *BatchFeedback) Error() string {
	ids := make([]string, 0, len(b.Items))
	for id := range b.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d invalid items: %s", len(b.Items), strings.Join(ids, ", "))
}
