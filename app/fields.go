package app

import (
	"errors"
	"fmt"

	"github.com/msmafra/sogeBot/domain/setting"
)

// ErrBadValue is returned by setters handed a value of the wrong shape.
var ErrBadValue = errors.New("app: value has the wrong shape")

// Field binds a registered setting key to typed accessors on the owning
// feature module. The table of fields replaces free-form reflection: every
// settable key has exactly one typed setter, built once at declaration
// time.
type Field struct {
	Key setting.Key

	// PermScoped marks the field as permission-scoped: its effective value
	// is resolved per tier through the waterfall.
	PermScoped bool

	// Default is the compiled-in value. Persisted records exist only for
	// non-default values; writing the default back deletes the record.
	Default any

	Get func() any
	Set func(v any) error
}

// UIElement describes one settings-form leaf. Leaves may be conditionally
// visible and selector leaves compute their value list per snapshot.
type UIElement struct {
	Kind   string
	If     func() bool
	Values func() []string
}

// Describe renders the element for the settings protocol, or nil when the
// visibility predicate rejects it.
func (e UIElement) Describe() map[string]any {
	if e.If != nil && !e.If() {
		return nil
	}
	out := map[string]any{"type": e.Kind}
	if e.Values != nil {
		out["values"] = e.Values()
	}
	return out
}

// Coercion helpers for setter closures. Update payloads arrive JSON
// decoded, so numbers are float64 and arrays are []any.

// AsBool coerces a JSON value to bool.
func AsBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

// AsInt coerces a JSON value to int.
func AsInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// AsFloat coerces a JSON value to float64.
func AsFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// AsString coerces a JSON value to string.
func AsString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// AsStringSlice coerces a JSON array to []string.
func AsStringSlice(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string element, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
