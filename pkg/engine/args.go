package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Args is a positional argument list. Elements are json.RawMessage as received from the
// client, except where the dispatcher substituted a compiled Script.
type Args []any

// ArgsFromJSON decodes a positional argument list. A non-array value is treated as a
// single argument; an empty or null input yields no arguments.
func ArgsFromJSON(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Args{}, nil
	}
	if trimmed[0] != '[' {
		return Args{json.RawMessage(trimmed)}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("invalid argument list: %w", err)
	}
	out := make(Args, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Has reports whether argument i is present and not JSON null.
func (a Args) Has(i int) bool {
	if i < 0 || i >= len(a) {
		return false
	}
	if raw, ok := a[i].(json.RawMessage); ok {
		return !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	}
	return a[i] != nil
}

// Decode unmarshals argument i into v. It reports false when the argument is absent.
func (a Args) Decode(i int, v any) (bool, error) {
	if !a.Has(i) {
		return false, nil
	}
	switch x := a[i].(type) {
	case json.RawMessage:
		if err := json.Unmarshal(x, v); err != nil {
			return true, fmt.Errorf("argument %d: %w", i, err)
		}
		return true, nil
	default:
		// Already-decoded value; round-trip through JSON to fit the target.
		b, err := json.Marshal(x)
		if err != nil {
			return true, fmt.Errorf("argument %d: %w", i, err)
		}
		if err := json.Unmarshal(b, v); err != nil {
			return true, fmt.Errorf("argument %d: %w", i, err)
		}
		return true, nil
	}
}

// String returns required string argument i.
func (a Args) String(i int) (string, error) {
	var s string
	ok, err := a.Decode(i, &s)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("argument %d: required string is missing", i)
	}
	return s, nil
}

// Float returns required numeric argument i.
func (a Args) Float(i int) (float64, error) {
	var f float64
	ok, err := a.Decode(i, &f)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("argument %d: required number is missing", i)
	}
	return f, nil
}

// Bool returns required boolean argument i.
func (a Args) Bool(i int) (bool, error) {
	var b bool
	ok, err := a.Decode(i, &b)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("argument %d: required boolean is missing", i)
	}
	return b, nil
}

// Script returns argument i as compiled script source.
func (a Args) Script(i int) (Script, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("argument %d: required script is missing", i)
	}
	s, ok := a[i].(Script)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected compiled script, got %T", i, a[i])
	}
	return s, nil
}

// Values decodes arguments from index i onwards into generic values.
func (a Args) Values(i int) ([]any, error) {
	if i >= len(a) {
		return nil, nil
	}
	out := make([]any, 0, len(a)-i)
	for j := i; j < len(a); j++ {
		var v any
		if _, err := a.Decode(j, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// With returns a copy of a with argument i replaced by v.
func (a Args) With(i int, v any) Args {
	out := make(Args, len(a))
	copy(out, a)
	if i >= 0 && i < len(out) {
		out[i] = v
	}
	return out
}
