package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
)

// Parse decodes the wire shape of a filter. Nested maps in arg0/arg1 of
// logical operators are decoded recursively.
//
// An empty map decodes to a nil Expr, which query builders reject as an
// empty filter.
func Parse(m map[string]any) (Expr, error) {
	if len(m) == 0 {
		return nil, nil
	}

	raw, ok := m["operator"]
	if !ok {
		return nil, fmt.Errorf("%w: the field 'operator' is missing", ErrMalformedFilter)
	}

	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: operator must be a string, got %T", ErrMalformedFilter, raw)
	}

	op, err := ParseOp(name)
	if err != nil {
		return nil, err
	}

	info, _ := op.info()
	arg0, arg1 := m["arg0"], m["arg1"]

	switch info.class {
	case classLogical:
		left, err := parseChild(op, "arg0", arg0)
		if err != nil {
			return nil, err
		}

		right, err := parseChild(op, "arg1", arg1)
		if err != nil {
			return nil, err
		}

		return New(name, left, right)
	case classNot:
		child, err := parseChild(op, "arg0", arg0)
		if err != nil {
			return nil, err
		}

		return New(name, child, arg1)
	default:
		return New(name, arg0, arg1)
	}
}

// ParseJSON decodes a filter from JSON. Comments and trailing commas are
// accepted. Numbers keep their textual form.
func ParseJSON(data []byte) (Expr, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFilter, err)
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()

	var m map[string]any

	err = dec.Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFilter, err)
	}

	return Parse(m)
}

func parseChild(op Op, arg string, v any) (Expr, error) {
	switch x := v.(type) {
	case Expr:
		return x, nil
	case map[string]any:
		child, err := Parse(x)
		if err != nil {
			return nil, err
		}

		if child == nil {
			return nil, fmt.Errorf("%w: %s %s is empty", ErrMalformedFilter, op, arg)
		}

		return child, nil
	default:
		return nil, fmt.Errorf("%w: %s %s must be an expression, got %T", ErrMalformedFilter, op, arg, v)
	}
}
