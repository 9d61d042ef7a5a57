package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// cueValidator is the reference Validator, backed by a compiled CUE schema.
// Validation unifies the raw data with the schema; CUE fills in defaults,
// so the returned data may be richer than the input.
type cueValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// CUE compiles a CUE schema source into a Validator. The source must
// evaluate to a struct describing one item's data.
func CUE(source string) (Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(source)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &cueValidator{ctx: ctx, schema: schema}, nil
}

func (v *cueValidator) Validate(data map[string]any) (map[string]any, error) {
	unified := v.schema.Unify(v.ctx.Encode(data))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, feedbackFromCUE(err)
	}
	var out map[string]any
	if err := unified.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode validated data: %w", err)
	}
	return out, nil
}

func (v *cueValidator) Partial(data map[string]any) (map[string]any, error) {
	feedback := NewFeedback("invalid update")
	out := make(map[string]any, len(data))
	for field, value := range data {
		fieldSchema := v.schema.LookupPath(cue.MakePath(cue.Str(field)))
		if !fieldSchema.Exists() {
			feedback.WithField(field, "unknown field")
			continue
		}
		unified := fieldSchema.Unify(v.ctx.Encode(value))
		if err := unified.Validate(cue.Concrete(true)); err != nil {
			feedback.WithField(field, cueMessage(err))
			continue
		}
		var fixed any
		if err := unified.Decode(&fixed); err != nil {
			feedback.WithField(field, err.Error())
			continue
		}
		out[field] = fixed
	}
	if len(feedback.Fields) > 0 {
		return nil, feedback
	}
	return out, nil
}

// feedbackFromCUE turns a CUE validation error into per-field feedback.
func feedbackFromCUE(err error) *Feedback {
	feedback := NewFeedback("invalid data")
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		if path == "" {
			path = "(root)"
		}
		format, args := e.Msg()
		feedback.WithField(path, fmt.Sprintf(format, args...))
	}
	return feedback
}

func cueMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	format, args := errs[0].Msg()
	return fmt.Sprintf(format, args...)
}
