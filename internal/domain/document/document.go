// Package document provides the generic structured value exchanged between
// the converter and the store: an insertion-ordered string-to-value mapping.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Document is an ordered map from field name to value. Values are scalars,
// nested *Document instances, or []any sequences. Keys are unique and keep
// insertion order, so serialization is deterministic.
type Document struct {
	keys   []string
	values map[string]any
}

// New creates an empty Document.
func New() *Document {
	return &Document{values: make(map[string]any)}
}

// FromMap creates a Document from a plain map. Keys are sorted so the
// result is deterministic; use Set for explicit ordering.
func FromMap(m map[string]any) *Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := New()
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// Set stores a value under key. An existing key keeps its position.
func (d *Document) Set(key string, value any) *Document {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return d
}

// SetFirst stores a value under key at the front of the key order.
// Used for metadata keys (type alias, id) that must serialize first.
func (d *Document) SetFirst(key string, value any) *Document {
	if _, ok := d.values[key]; ok {
		d.remove(key)
	}
	d.keys = append([]string{key}, d.keys...)
	d.values[key] = value
	return d
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (d *Document) GetString(key string) (string, bool) {
	if v, ok := d.values[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// Delete removes key from the document. Removing an absent key is a no-op.
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	d.remove(key)
	delete(d.values, key)
}

func (d *Document) remove(key string) {
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			return
		}
	}
}

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of fields.
func (d *Document) Len() int { return len(d.keys) }

// Walk calls fn for each key/value pair in insertion order.
// Iteration stops on the first error.
func (d *Document) Walk(fn func(key string, value any) error) error {
	for _, k := range d.keys {
		if err := fn(k, d.values[k]); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON serializes the document preserving key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value of %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object preserving source key order.
// Nested objects become *Document, arrays become []any, numbers float64.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read object start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	parsed, err := parseObject(dec)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

func parseObject(dec *json.Decoder) (*Document, error) {
	doc := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("read value of %q: %w", key, err)
		}
		doc.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	return doc, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
		return t.String(), nil
	default:
		return tok, nil
	}
}

func parseArray(dec *json.Decoder) ([]any, error) {
	var out []any
	for dec.More() {
		v, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}
