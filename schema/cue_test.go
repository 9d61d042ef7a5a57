package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const userSchema = `
name:  string
age:   int & >=0
admin: bool | *false
`

func TestCUEValidate(t *testing.T) {
	v, err := CUE(userSchema)
	require.NoError(t, err)

	out, err := v.Validate(map[string]any{"name": "amy", "age": 30})
	require.NoError(t, err)
	require.Equal(t, "amy", out["name"])
	// The schema default is filled in.
	require.Equal(t, false, out["admin"])

	_, err = v.Validate(map[string]any{"name": 5, "age": -1})
	require.Error(t, err)
	var f *Feedback
	require.ErrorAs(t, err, &f)
	require.Contains(t, f.Fields, "name")
	require.Contains(t, f.Fields, "age")
}

func TestCUEValidateMissingField(t *testing.T) {
	v, err := CUE(userSchema)
	require.NoError(t, err)

	_, err = v.Validate(map[string]any{"name": "amy"})
	require.Error(t, err, "missing required field must fail concrete validation")
}

func TestCUEPartial(t *testing.T) {
	v, err := CUE(userSchema)
	require.NoError(t, err)

	// Partial mode validates only the fields present.
	out, err := v.Partial(map[string]any{"age": 31})
	require.NoError(t, err)
	require.EqualValues(t, 31, out["age"])

	_, err = v.Partial(map[string]any{"age": "old"})
	var f *Feedback
	require.ErrorAs(t, err, &f)
	require.Contains(t, f.Fields, "age")

	_, err = v.Partial(map[string]any{"nope": 1})
	require.ErrorAs(t, err, &f)
	require.Contains(t, f.Fields, "nope")
}

func TestCUEBadSchema(t *testing.T) {
	_, err := CUE(`name: strang`)
	require.Error(t, err)
}

func TestFeedbackMessages(t *testing.T) {
	f := NewFeedback("invalid data").WithField("b", "too big").WithField("a", "too small")
	require.Equal(t, "invalid data (a: too small; b: too big)", f.Error())

	b := NewBatchFeedback()
	require.True(t, b.Empty())
	b.Add("x2", NewFeedback("bad"))
	b.Add("x1", NewFeedback("bad"))
	require.False(t, b.Empty())
	require.Equal(t, "2 invalid items: x1, x2", b.Error())
}
