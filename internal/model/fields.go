// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for record timestamps (ISO-8601, millisecond precision, UTC).
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Fields holds the opaque, client-supplied attributes of a record.
// The service stores and returns them without interpretation.
type Fields map[string]any

// Without returns a copy of f with the given keys removed.
func (f Fields) Without(keys ...string) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Clone returns a shallow copy of f. A nil Fields clones to an empty map.
func (f Fields) Clone() Fields {
	return f.Without()
}

// String returns the string value stored under key, or "" if it is absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts DateLayout as well as any RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// flatten merges opaque fields with the fixed keys; fixed keys win.
func flatten(fields Fields, fixed map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields)+len(fixed))
	for k, v := range fields {
		out[k] = v
	}
	for k, v := range fixed {
		out[k] = v
	}
	return json.Marshal(out)
}

// unflatten decodes a flat JSON object and returns it for the caller to pick fixed keys from.
func unflatten(data []byte) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

// popString removes key from f and returns it as a string.
func popString(f Fields, key string) string {
	s := f.String(key)
	delete(f, key)
	return s
}

func popDate(f Fields, key string) (time.Time, error) {
	s := popString(f, key)
	if s == "" {
		return time.Time{}, nil
	}
	return ParseDate(s)
}
