package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Kind names the JSON type of raw: object, array, string, number, boolean, null or undefined.
func Kind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func expected(want string, raw json.RawMessage) string {
	got := Kind(raw)
	if got == "undefined" {
		return "Required"
	}
	return fmt.Sprintf("Expected %s, received %s", want, got)
}

// Object reads typed fields from a JSON object and accumulates issues for
// missing or mistyped keys. Unknown keys are ignored.
type Object struct {
	fields map[string]json.RawMessage
	path   string
	issues *Issues
}

// ReadObject decodes raw as an object. When raw is not an object the issue is
// recorded at path and ok is false.
func ReadObject(raw json.RawMessage, issues *Issues, path string) (*Object, bool) {
	if Kind(raw) != "object" {
		issues.Add(path, expected("object", raw))
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		issues.Add(path, "Invalid JSON object")
		return nil, false
	}
	return &Object{fields: fields, path: path, issues: issues}, true
}

// Path returns the issue path of key inside this object.
func (o *Object) Path(key string) string {
	return Join(o.path, key)
}

// Issues exposes the shared issue collector for nested readers.
func (o *Object) Issues() *Issues {
	return o.issues
}

// Raw returns the raw value of key and whether it was present.
func (o *Object) Raw(key string) (json.RawMessage, bool) {
	raw, ok := o.fields[key]
	return raw, ok
}

// Has reports whether key is present, including an explicit null.
func (o *Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// String reads a required string.
func (o *Object) String(key string) string {
	raw := o.fields[key]
	var out string
	if Kind(raw) != "string" || json.Unmarshal(raw, &out) != nil {
		o.issues.Add(o.Path(key), expected("string", raw))
		return ""
	}
	return out
}

// NonEmptyString reads a required string with at least one character.
func (o *Object) NonEmptyString(key string) string {
	before := len(o.issues.FieldErrors[o.Path(key)])
	out := o.String(key)
	if out == "" && len(o.issues.FieldErrors[o.Path(key)]) == before {
		o.issues.Add(o.Path(key), "String must contain at least 1 character(s)")
	}
	return out
}

// OptionalString reads a string that may be absent. Null is rejected.
func (o *Object) OptionalString(key string) (string, bool) {
	if !o.Has(key) {
		return "", false
	}
	return o.String(key), true
}

// NullableString reads a string that may be absent or null.
func (o *Object) NullableString(key string) *string {
	raw, ok := o.fields[key]
	if !ok || Kind(raw) == "null" {
		return nil
	}
	out := o.String(key)
	return &out
}

// Number reads a required number.
func (o *Object) Number(key string) float64 {
	raw := o.fields[key]
	var out float64
	if Kind(raw) != "number" || json.Unmarshal(raw, &out) != nil {
		o.issues.Add(o.Path(key), expected("number", raw))
		return 0
	}
	return out
}

// Int reads a required number as a count. Fractional values are accepted
// and rounded half away from zero; values beyond int64 are clamped.
func (o *Object) Int(key string) int64 {
	raw := o.fields[key]
	if Kind(raw) != "number" {
		o.issues.Add(o.Path(key), expected("number", raw))
		return 0
	}
	v := math.Round(o.Number(key))
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

// OptionalInt reads an integer that may be absent.
func (o *Object) OptionalInt(key string) *int64 {
	if !o.Has(key) {
		return nil
	}
	v := o.Int(key)
	return &v
}

// Bool reads a required boolean.
func (o *Object) Bool(key string) bool {
	raw := o.fields[key]
	var out bool
	if Kind(raw) != "boolean" || json.Unmarshal(raw, &out) != nil {
		o.issues.Add(o.Path(key), expected("boolean", raw))
		return false
	}
	return out
}

// Literal reads a required boolean that must equal want.
func (o *Object) Literal(key string, want bool) bool {
	raw := o.fields[key]
	if Kind(raw) != "boolean" {
		o.issues.Add(o.Path(key), expected("boolean", raw))
		return false
	}
	got := o.Bool(key)
	if got != want {
		o.issues.Add(o.Path(key), fmt.Sprintf("Invalid literal value, expected %t", want))
		return false
	}
	return true
}

// Enum reads a required string restricted to allowed.
func (o *Object) Enum(key string, allowed ...string) string {
	raw := o.fields[key]
	if Kind(raw) != "string" {
		o.issues.Add(o.Path(key), expected("string", raw))
		return ""
	}
	got := o.String(key)
	for _, a := range allowed {
		if got == a {
			return got
		}
	}
	o.issues.Add(o.Path(key), fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", quoteList(allowed), got))
	return ""
}

// Array reads a required array and returns its raw elements.
func (o *Object) Array(key string) []json.RawMessage {
	raw := o.fields[key]
	var out []json.RawMessage
	if Kind(raw) != "array" || json.Unmarshal(raw, &out) != nil {
		o.issues.Add(o.Path(key), expected("array", raw))
		return nil
	}
	return out
}

// OptionalArray reads an array that may be absent. Absent yields an empty slice.
func (o *Object) OptionalArray(key string) []json.RawMessage {
	if !o.Has(key) {
		return []json.RawMessage{}
	}
	return o.Array(key)
}

// Strings reads a required array of strings.
func (o *Object) Strings(key string) []string {
	items := o.Array(key)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for idx, item := range items {
		var s string
		if Kind(item) != "string" || json.Unmarshal(item, &s) != nil {
			o.issues.Add(Join(o.Path(key), fmt.Sprint(idx)), expected("string", item))
			continue
		}
		out = append(out, s)
	}
	return out
}

// OptionalStrings reads an array of strings that may be absent.
func (o *Object) OptionalStrings(key string) []string {
	if !o.Has(key) {
		return nil
	}
	return o.Strings(key)
}

// StringMap reads an optional object whose values are strings.
func (o *Object) StringMap(key string) map[string]string {
	raw, ok := o.fields[key]
	if !ok {
		return nil
	}
	inner, ok := ReadObject(raw, o.issues, o.Path(key))
	if !ok {
		return nil
	}
	out := make(map[string]string, len(inner.fields))
	for k := range inner.fields {
		out[k] = inner.String(k)
	}
	return out
}

// Record reads an optional object of arbitrary JSON values.
func (o *Object) Record(key string) (map[string]any, bool) {
	raw, ok := o.fields[key]
	if !ok {
		return nil, false
	}
	return DecodeRecord(raw, o.issues, o.Path(key))
}

// DecodeRecord decodes raw as an object of arbitrary JSON values.
func DecodeRecord(raw json.RawMessage, issues *Issues, path string) (map[string]any, bool) {
	if Kind(raw) != "object" {
		issues.Add(path, expected("object", raw))
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		issues.Add(path, "Invalid JSON object")
		return nil, false
	}
	return out, true
}

// Unknown returns the raw value of key with no validation. Absent yields nil.
func (o *Object) Unknown(key string) json.RawMessage {
	raw, ok := o.fields[key]
	if !ok {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func quoteList(values []string) string {
	var b bytes.Buffer
	for i, v := range values {
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "'%s'", v)
	}
	return b.String()
}
