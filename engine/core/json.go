package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON is a tagged variant over the six JSON shapes: object, array, string,
// number, bool and null. It generalizes the corpus's map[string]any
// Input/Output pair to the arbitrary JSON the flow core passes around
// (action config, rendered variables, task results, plugin error payloads)
// so that raw `any` never has to leak across a package boundary.
type JSON struct {
	v any
}

// NewJSON wraps an already-decoded Go value (the output of json.Unmarshal
// into `any`, or a literal map/slice/string/number/bool/nil built in code).
func NewJSON(v any) JSON {
	return JSON{v: normalize(v)}
}

// Null is the JSON null value.
var Null = JSON{v: nil}

func normalize(v any) any {
	switch t := v.(type) {
	case JSON:
		return t.v
	case map[string]JSON:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = vv.v
		}
		return m
	case []JSON:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = vv.v
		}
		return s
	default:
		return v
	}
}

// ParseJSONString attempts to parse s as a JSON value (used by the template
// engine's path resolver for JSON-in-string re-entry: a string field whose
// content happens to itself be valid JSON transparently re-enters as that
// value). A bare word like "hello" is not valid JSON and returns an error.
func ParseJSONString(s string) (JSON, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Null, err
	}
	if dec.More() {
		return Null, fmt.Errorf("trailing data after JSON value")
	}
	return NewJSON(v), nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j.v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.v)
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode JSON value: %w", err)
	}
	j.v = v
	return nil
}

// Raw returns the underlying decoded value (map[string]any, []any, string,
// json.Number, bool, or nil).
func (j JSON) Raw() any {
	return j.v
}

func (j JSON) IsNull() bool {
	return j.v == nil
}

func (j JSON) IsObject() bool {
	_, ok := j.v.(map[string]any)
	return ok
}

func (j JSON) IsArray() bool {
	_, ok := j.v.([]any)
	return ok
}

func (j JSON) IsString() bool {
	_, ok := j.v.(string)
	return ok
}

func (j JSON) IsNumber() bool {
	switch j.v.(type) {
	case json.Number, float64, int, int64:
		return true
	default:
		return false
	}
}

func (j JSON) IsBool() bool {
	_, ok := j.v.(bool)
	return ok
}

// Object returns the value as a map, or false if it isn't one.
func (j JSON) Object() (map[string]any, bool) {
	m, ok := j.v.(map[string]any)
	return m, ok
}

// Array returns the value as a slice, or false if it isn't one.
func (j JSON) Array() (arr []any, ok bool) {
	arr, ok = j.v.([]any)
	return
}

// String returns the value as a string, or "" and false if it isn't one.
func (j JSON) String() (string, bool) {
	s, ok := j.v.(string)
	return s, ok
}

// Get looks up a single key of an object value and returns Null if the
// value is not an object or has no such key. The key is used literally:
// dotted or bracketed paths are not parsed.
func (j JSON) Get(key string) JSON {
	m, ok := j.Object()
	if !ok {
		return Null
	}
	v, ok := m[key]
	if !ok {
		return Null
	}
	return NewJSON(v)
}
