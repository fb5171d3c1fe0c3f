package tracefan

import "strings"

// Redactor replaces the values of sensitive fields in record data
// before dispatch. Matching is by exact field name, case-insensitive,
// and recurses into nested Fields values.
type Redactor struct {
	fields      map[string]struct{}
	replacement string
}

// DefaultRedactedFields is the field list applied when redaction is
// enabled without an explicit list.
var DefaultRedactedFields = []string{
	"password", "secret", "token", "key", "auth", "credential",
	"api_key", "private_key", "access_token", "refresh_token",
}

// NewRedactor builds a redactor for the given field names. An empty
// replacement defaults to "[REDACTED]".
func NewRedactor(fields []string, replacement string) *Redactor {
	if replacement == "" {
		replacement = "[REDACTED]"
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &Redactor{fields: set, replacement: replacement}
}

// Apply redacts matching keys in place. The caller owns f.
func (r *Redactor) Apply(f *Fields) {
	if r == nil || f == nil {
		return
	}
	for _, k := range f.Keys() {
		if _, hit := r.fields[strings.ToLower(k)]; hit {
			f.Set(k, r.replacement)
			continue
		}
		if nested, ok := f.Value(k).(*Fields); ok {
			r.Apply(nested)
		}
	}
}
