package tracefan

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Fields is an insertion-ordered mapping of string keys to arbitrary
// structured values. Insertion order is irrelevant to correctness but
// preserved so that formatted output is stable. Values are opaque to
// the runtime; nested *Fields values merge recursively.
type Fields struct {
	keys []string
	vals map[string]any
}

// NewFields builds a Fields from alternating key/value arguments.
// Non-string keys are stringified; a trailing key without a value is
// paired with nil.
func NewFields(kv ...any) *Fields {
	f := &Fields{vals: make(map[string]any, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		f.Set(key, val)
	}
	return f
}

// Set stores a value under key, appending the key on first insertion.
func (f *Fields) Set(key string, value any) {
	if f.vals == nil {
		f.vals = make(map[string]any)
	}
	if _, exists := f.vals[key]; !exists {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = value
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (any, bool) {
	if f == nil || f.vals == nil {
		return nil, false
	}
	v, ok := f.vals[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (f *Fields) Value(key string) any {
	v, _ := f.Get(key)
	return v
}

// Delete removes a key. It is a no-op when the key is absent.
func (f *Fields) Delete(key string) {
	if f == nil || f.vals == nil {
		return
	}
	if _, ok := f.vals[key]; !ok {
		return
	}
	delete(f.vals, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Walk calls fn for every key/value pair in insertion order.
func (f *Fields) Walk(fn func(key string, value any)) {
	if f == nil {
		return
	}
	for _, k := range f.keys {
		fn(k, f.vals[k])
	}
}

// Clone returns a deep copy. Nested *Fields values are cloned too so
// that concurrent readers of a dispatched record never observe
// mutation.
func (f *Fields) Clone() *Fields {
	out := &Fields{vals: make(map[string]any, f.Len())}
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		v := f.vals[k]
		if nested, ok := v.(*Fields); ok {
			v = nested.Clone()
		}
		out.Set(k, v)
	}
	return out
}

// Merge deep-merges other into f: nested *Fields merge recursively,
// scalar values override, new keys are appended in other's order.
func (f *Fields) Merge(other *Fields) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		newVal := other.vals[k]
		oldVal, exists := f.Get(k)
		if exists {
			oldNested, oldOK := oldVal.(*Fields)
			newNested, newOK := newVal.(*Fields)
			if oldOK && newOK {
				merged := oldNested.Clone()
				merged.Merge(newNested)
				f.Set(k, merged)
				continue
			}
		}
		if nested, ok := newVal.(*Fields); ok {
			newVal = nested.Clone()
		}
		f.Set(k, newVal)
	}
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if f != nil {
		for i, k := range f.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			valJSON, err := json.Marshal(f.vals[k])
			if err != nil {
				// Fall back to the default Go formatting for values
				// the encoder cannot handle; logging must not fail.
				valJSON, _ = json.Marshal(fmt.Sprintf("%v", f.vals[k]))
			}
			buf.Write(valJSON)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
