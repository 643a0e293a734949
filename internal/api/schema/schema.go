package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Issues is the flattened validation report attached to shape errors.
type Issues struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

// Empty reports whether no issue was recorded.
func (i *Issues) Empty() bool {
	return i == nil || (len(i.FormErrors) == 0 && len(i.FieldErrors) == 0)
}

// Add records a message against path. An empty path is a form-level issue.
func (i *Issues) Add(path, msg string) {
	if path == "" {
		i.FormErrors = append(i.FormErrors, msg)
		return
	}
	if i.FieldErrors == nil {
		i.FieldErrors = make(map[string][]string)
	}
	i.FieldErrors[path] = append(i.FieldErrors[path], msg)
}

// Merge copies other into i, nesting every path under prefix.
func (i *Issues) Merge(prefix string, other Issues) {
	for _, msg := range other.FormErrors {
		i.Add(prefix, msg)
	}
	for path, msgs := range other.FieldErrors {
		for _, msg := range msgs {
			i.Add(Join(prefix, path), msg)
		}
	}
}

// Normalized returns a copy with non-nil collections so it encodes as {formErrors:[],fieldErrors:{}}.
func (i Issues) Normalized() Issues {
	out := Issues{
		FormErrors:  append([]string{}, i.FormErrors...),
		FieldErrors: make(map[string][]string, len(i.FieldErrors)),
	}
	for k, v := range i.FieldErrors {
		out.FieldErrors[k] = append([]string(nil), v...)
	}
	return out
}

// Error is returned when a payload does not match a schema.
type Error struct {
	Issues Issues
}

func (e *Error) Error() string {
	parts := append([]string{}, e.Issues.FormErrors...)
	paths := make([]string, 0, len(e.Issues.FieldErrors))
	for p := range e.Issues.FieldErrors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		parts = append(parts, fmt.Sprintf("%s: %s", p, strings.Join(e.Issues.FieldErrors[p], ", ")))
	}
	if len(parts) == 0 {
		return "schema mismatch"
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// Check returns nil when issues is empty, otherwise an *Error.
func Check(issues Issues) error {
	if issues.Empty() {
		return nil
	}
	return &Error{Issues: issues}
}

// IssuesOf extracts the validation report from err. Non-schema errors become a single form issue.
func IssuesOf(err error) Issues {
	if err == nil {
		return Issues{}
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Issues
	}
	return Issues{FormErrors: []string{err.Error()}}
}

// Schema parses raw JSON into T, validating its shape.
type Schema[T any] interface {
	Parse(raw json.RawMessage) (T, error)
}

// Func adapts a plain function into a Schema.
type Func[T any] func(raw json.RawMessage) (T, error)

// Parse calls f.
func (f Func[T]) Parse(raw json.RawMessage) (T, error) {
	return f(raw)
}

// FirstOf tries each schema in order and returns the first success.
// When all fail, the issues of every attempt are merged under an "Invalid input" form error.
func FirstOf[T any](schemas ...Schema[T]) Schema[T] {
	return Func[T](func(raw json.RawMessage) (T, error) {
		var zero T
		merged := Issues{FormErrors: []string{"Invalid input"}}
		for _, s := range schemas {
			out, err := s.Parse(raw)
			if err == nil {
				return out, nil
			}
			merged.Merge("", IssuesOf(err))
		}
		return zero, &Error{Issues: dedupe(merged)}
	})
}

// Join builds a dotted issue path.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

func dedupe(in Issues) Issues {
	out := Issues{}
	seenForm := map[string]bool{}
	for _, msg := range in.FormErrors {
		if !seenForm[msg] {
			seenForm[msg] = true
			out.FormErrors = append(out.FormErrors, msg)
		}
	}
	for path, msgs := range in.FieldErrors {
		seen := map[string]bool{}
		for _, msg := range msgs {
			if !seen[msg] {
				seen[msg] = true
				out.Add(path, msg)
			}
		}
	}
	return out
}
