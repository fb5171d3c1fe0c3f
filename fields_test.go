package tracefan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFields_Pairs(t *testing.T) {
	f := NewFields("a", 1, "b", "two")
	assert.Equal(t, 2, f.Len())

	v, ok := f.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = f.Get("b")
	require.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestNewFields_TrailingKey(t *testing.T) {
	f := NewFields("a", 1, "orphan")
	v, ok := f.Get("orphan")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestNewFields_NonStringKey(t *testing.T) {
	f := NewFields(42, "answer")
	v, ok := f.Get("42")
	require.True(t, ok)
	assert.Equal(t, "answer", v)
}

func TestFields_InsertionOrder(t *testing.T) {
	f := NewFields("z", 1, "a", 2, "m", 3)
	assert.Equal(t, []string{"z", "a", "m"}, f.Keys())

	// Overwriting an existing key keeps its original position.
	f.Set("a", 20)
	assert.Equal(t, []string{"z", "a", "m"}, f.Keys())

	v, _ := f.Get("a")
	assert.Equal(t, 20, v)
}

func TestFields_Delete(t *testing.T) {
	f := NewFields("a", 1, "b", 2, "c", 3)
	f.Delete("b")
	assert.Equal(t, []string{"a", "c"}, f.Keys())
	_, ok := f.Get("b")
	assert.False(t, ok)
}

func TestFields_CloneIsolation(t *testing.T) {
	nested := NewFields("inner", 1)
	f := NewFields("top", nested)

	clone := f.Clone()
	clonedNested, ok := clone.Get("top")
	require.True(t, ok)
	clonedNested.(*Fields).Set("inner", 99)

	v, _ := nested.Get("inner")
	assert.Equal(t, 1, v, "mutating the clone must not touch the original")
}

func TestFields_MergeDeep(t *testing.T) {
	base := NewFields("name", "svc", "opts", NewFields("retries", 3, "debug", false))
	overlay := NewFields("opts", NewFields("debug", true, "timeout", "5s"), "extra", 1)

	base.Merge(overlay)

	opts, ok := base.Get("opts")
	require.True(t, ok)
	nested := opts.(*Fields)

	v, _ := nested.Get("retries")
	assert.Equal(t, 3, v, "untouched nested keys survive a merge")
	v, _ = nested.Get("debug")
	assert.Equal(t, true, v)
	v, _ = nested.Get("timeout")
	assert.Equal(t, "5s", v)

	// New top-level keys append after existing ones.
	assert.Equal(t, []string{"name", "opts", "extra"}, base.Keys())
}

func TestFields_MergeReplacesScalarWithNested(t *testing.T) {
	base := NewFields("opts", "plain")
	base.Merge(NewFields("opts", NewFields("a", 1)))

	opts, _ := base.Get("opts")
	_, isFields := opts.(*Fields)
	assert.True(t, isFields)
}

func TestFields_MarshalJSONOrder(t *testing.T) {
	f := NewFields("z", 1, "a", "x", "m", true)
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x","m":true}`, string(data))
}

func TestFields_MarshalJSONUnmarshalable(t *testing.T) {
	f := NewFields("fn", func() {})
	data, err := json.Marshal(f)
	require.NoError(t, err, "unmarshalable values must degrade, not fail")
	assert.Contains(t, string(data), `"fn"`)
}

func TestFields_NilReceiver(t *testing.T) {
	var f *Fields
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, f.Keys())
	_, ok := f.Get("a")
	assert.False(t, ok)
	assert.NotPanics(t, func() { f.Walk(func(string, any) {}) })
	assert.NotNil(t, f.Clone())
}
