package confdb

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/calvinalkan/confdb/pkg/confdb/filter"
	"github.com/calvinalkan/confdb/pkg/confdb/xmlstore"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

// coerce converts v to the Go type of prop.
func coerce(prop *datamodel.Property, v any) (any, error) {
	switch prop.Type {
	case datamodel.TypeBoolean:
		return coerceBool(v)
	case datamodel.TypeInteger:
		return coerceInt(v)
	case datamodel.TypeNumber:
		return coerceFloat(v)
	case datamodel.TypeArray:
		return coerceArray(prop.Items, v)
	case datamodel.TypeObject:
		return coerceObject(prop.Properties, v)
	default:
		return coerceString(v)
	}
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string, bool, int64, uint64, float64, json.Number:
		return filter.Text(x), nil
	case int, int32, int16, int8, uint, uint32, uint16, uint8, float32:
		return fmt.Sprint(x), nil
	default:
		return nil, fmt.Errorf("cannot use %T as string", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "on", "y":
			return true, nil
		case "0", "false", "no", "off", "n", "":
			return false, nil
		}

		return false, fmt.Errorf("cannot use %q as boolean", x)
	default:
		i, err := coerceInt(v)
		if err != nil {
			return false, fmt.Errorf("cannot use %T as boolean", v)
		}

		return i != 0, nil
	}
}

func coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}

		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}

		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}

		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}

		return 0, nil
	case json.Number:
		return coerceInt(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}

		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, nil
		}

		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("cannot use %q as integer", x)
		}

		return coerceInt(f)
	default:
		return 0, fmt.Errorf("cannot use %T as integer", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return coerceFloat(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot use %q as number", x)
		}

		return f, nil
	default:
		i, err := coerceInt(v)
		if err != nil {
			return 0, fmt.Errorf("cannot use %T as number", v)
		}

		return float64(i), nil
	}
}

func coerceArray(items *datamodel.Property, v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}

	if items == nil {
		items = &datamodel.Property{Type: datamodel.TypeString}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		// A single scalar is a one-element array.
		e, err := coerce(items, v)
		if err != nil {
			return nil, err
		}

		return []any{e}, nil
	}

	out := make([]any, rv.Len())

	for i := range rv.Len() {
		e, err := coerce(items, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}

		out[i] = e
	}

	return out, nil
}

func coerceObject(props datamodel.Properties, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		if v == nil {
			m = map[string]any{}
		} else {
			return nil, fmt.Errorf("cannot use %T as object", v)
		}
	}

	out := make(map[string]any, len(m))

	for key, raw := range m {
		prop, declared := props.Get(key)
		if !declared {
			return nil, fmt.Errorf("%w %q", ErrUnknownProperty, key)
		}

		val, err := coerce(prop, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		out[key] = val
	}

	fillDefaults(props, out)

	return out, nil
}

// decodeObject builds an object from a document node.
func decodeObject(m *datamodel.Model, node *xmlquery.Node) *Object {
	values := decodeValues(m.Properties, node)
	fillDefaults(m.Properties, values)

	return &Object{model: m, values: values}
}

// decodeValues reads the element children of node. Values that do not
// convert to their declared type are kept as text.
func decodeValues(props datamodel.Properties, node *xmlquery.Node) map[string]any {
	values := map[string]any{}

	for _, child := range xmlstore.ChildElements(node) {
		name := child.Data

		prop, declared := props.Get(name)
		if !declared {
			values[name] = decodeUntyped(child)

			continue
		}

		switch prop.Type {
		case datamodel.TypeArray:
			items := prop.Items
			if items == nil {
				items = &datamodel.Property{Type: datamodel.TypeString}
			}

			list, _ := values[name].([]any)
			values[name] = append(list, decodeScalar(items, child.InnerText()))
		case datamodel.TypeObject:
			nested := decodeValues(prop.Properties, child)
			fillDefaults(prop.Properties, nested)
			values[name] = nested
		default:
			values[name] = decodeScalar(prop, child.InnerText())
		}
	}

	return values
}

func decodeScalar(prop *datamodel.Property, text string) any {
	v, err := coerce(prop, text)
	if err != nil {
		return text
	}

	return v
}

func decodeUntyped(node *xmlquery.Node) any {
	if !xmlstore.HasChildElements(node) {
		return node.InnerText()
	}

	return decodeValues(datamodel.Properties{}, node)
}

// encodeObject renders o as an element named after its model.
func encodeObject(o *Object) *xmlquery.Node {
	return encodeValues(o.model.ElementName(), o.model.Properties, o.values)
}

func encodeValues(name string, props datamodel.Properties, values map[string]any) *xmlquery.Node {
	node := xmlstore.Element(name)

	for _, key := range orderedKeys(props, values) {
		prop, _ := props.Get(key)

		for _, child := range encodeValue(key, prop, values[key]) {
			xmlquery.AddChild(node, child)
		}
	}

	return node
}

func encodeValue(name string, prop *datamodel.Property, v any) []*xmlquery.Node {
	switch x := v.(type) {
	case []any:
		out := make([]*xmlquery.Node, 0, len(x))
		for _, e := range x {
			out = append(out, encodeValue(name, nil, e)...)
		}

		return out
	case map[string]any:
		var nested datamodel.Properties
		if prop != nil {
			nested = prop.Properties
		}

		return []*xmlquery.Node{encodeValues(name, nested, x)}
	case nil:
		return []*xmlquery.Node{xmlstore.Element(name)}
	default:
		return []*xmlquery.Node{xmlstore.TextElement(name, filter.Text(x))}
	}
}
