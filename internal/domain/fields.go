package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Fields holds the members of a JSON object that the model does not know,
// and known members whose value did not decode. Values are compact JSON and
// are written back unchanged.
type Fields map[string]json.RawMessage

var errNotObject = errors.New("expected a JSON object")

// splitObject decodes data into its members, compacting every value.
func splitObject(data []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	for k, v := range f {
		f[k] = compactJSON(v)
	}
	return f, nil
}

// compactJSON returns raw compacted and HTML-escaped, the form encoding/json
// writes marshaler output in, so raw values survive an encode unchanged.
func compactJSON(raw []byte) json.RawMessage {
	var compacted, escaped bytes.Buffer
	if err := json.Compact(&compacted, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	json.HTMLEscape(&escaped, compacted.Bytes())
	return json.RawMessage(escaped.Bytes())
}

// take decodes member key into dst and removes it from f. A member whose
// value does not fit dst stays in f and dst is left untouched.
func take[T any](f Fields, key string, dst *T) {
	raw, ok := f[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
	delete(f, key)
}

// Without returns a copy of f without keys, or nil when nothing is left.
func (f Fields) Without(keys ...string) Fields {
	out := f.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out.orNil()
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (f Fields) orNil() Fields {
	if len(f) == 0 {
		return nil
	}
	return f
}

func cloneRawMessage(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

// objectWriter builds a JSON object member by member. Known members come
// first in declaration order, then the extra members sorted by key.
type objectWriter struct {
	buf     bytes.Buffer
	extra   Fields
	written map[string]bool
	err     error
}

func newObjectWriter(extra Fields) *objectWriter {
	w := &objectWriter{extra: extra, written: make(map[string]bool)}
	w.buf.WriteByte('{')
	return w
}

// field writes key with value v. When v is unset and the extra members hold
// an undecoded value for key, that value is written instead.
func (w *objectWriter) field(key string, v any, unset bool) {
	if unset {
		if raw, ok := w.extra[key]; ok {
			w.member(key, raw)
			return
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		if w.err == nil {
			w.err = fmt.Errorf("encode %q: %w", key, err)
		}
		return
	}
	w.member(key, data)
}

// optional is field for members omitted when unset.
func (w *objectWriter) optional(key string, v any, unset bool) {
	if unset {
		if raw, ok := w.extra[key]; ok {
			w.member(key, raw)
		}
		return
	}
	w.field(key, v, false)
}

func (w *objectWriter) member(key string, raw []byte) {
	if len(w.written) > 0 {
		w.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(raw)
	w.written[key] = true
}

func (w *objectWriter) finish() ([]byte, error) {
	keys := make([]string, 0, len(w.extra))
	for k := range w.extra {
		if !w.written[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.member(k, w.extra[k])
	}
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
