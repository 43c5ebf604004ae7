package capspec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Normalize converts an engine API description of the form
//
//	{Class: {"members": {method: {"args": {argName: {...}}}}}}
//
// into the persisted capability spec form, assigning each argument its position in the
// source listing. Classes, methods and arguments are written in source order.
func Normalize(r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	root, err := readValue(dec)
	if err != nil {
		return fmt.Errorf("%s - failed to read API description: %w", logPrefix, err)
	}
	classes, ok := root.(*orderedObject)
	if !ok {
		return fmt.Errorf("%s - API description must be an object", logPrefix)
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("{")
	for ci, class := range classes.keys {
		if ci > 0 {
			bw.WriteString(",")
		}
		writeKey(bw, class)
		bw.WriteString("{")
		methods := membersOf(classes.vals[class])
		for mi, method := range methods.keys {
			if mi > 0 {
				bw.WriteString(",")
			}
			writeKey(bw, method)
			args, err := argsOf(method, methods.vals[method])
			if err != nil {
				return fmt.Errorf("%s - %s: %w", logPrefix, class, err)
			}
			b, err := json.Marshal(args)
			if err != nil {
				return err
			}
			bw.Write(b)
		}
		bw.WriteString("}")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

type orderedObject struct {
	keys []string
	vals map[string]any
}

func (o *orderedObject) get(key string) any {
	if o == nil {
		return nil
	}
	return o.vals[key]
}

var emptyObject = &orderedObject{vals: map[string]any{}}

func membersOf(v any) *orderedObject {
	class, ok := v.(*orderedObject)
	if !ok {
		return emptyObject
	}
	members, ok := class.get("members").(*orderedObject)
	if !ok {
		return emptyObject
	}
	return members
}

func argsOf(method string, v any) ([]Arg, error) {
	m, ok := v.(*orderedObject)
	if !ok {
		return []Arg{}, nil
	}
	raw := m.get("args")
	if raw == nil {
		return []Arg{}, nil
	}
	listing, ok := raw.(*orderedObject)
	if !ok {
		return nil, fmt.Errorf("%s: args must be an object", method)
	}
	out := make([]Arg, 0, len(listing.keys))
	for i, name := range listing.keys {
		a := Arg{Name: name, Order: i}
		if desc, ok := listing.vals[name].(*orderedObject); ok {
			if n, ok := desc.get("name").(string); ok && n != "" {
				a.Name = n
			}
			if req, ok := desc.get("required").(bool); ok {
				a.Optional = !req
			}
			switch t := desc.get("type").(type) {
			case string:
				a.Type = t
			case *orderedObject:
				if n, ok := t.get("name").(string); ok {
					a.Type = n
				}
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func writeKey(w *bufio.Writer, key string) {
	b, _ := json.Marshal(key)
	w.Write(b)
	w.WriteString(":")
}

// readValue decodes the next JSON value, keeping object key order.
func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &orderedObject{vals: map[string]any{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, errors.New("object key is not a string")
				}
				val, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.vals[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []any
			for dec.More() {
				val, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return tok, nil
	}
}
