package confdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/calvinalkan/confdb/pkg/confdb/filter"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

// NewObjectID marks an object of a collection model that has not been
// stored yet. [Database.Set] replaces it with a generated identifier.
const NewObjectID = "fa4b1c66-ef79-11e5-87a0-0002b3a176b4"

// Object is one configuration node with typed property values.
//
// Values have the Go type matching their declaration: string, bool, int64,
// float64, []any for arrays and map[string]any for nested objects.
// Properties present in the document but not declared in the model are kept
// as strings (or maps of strings) so that they survive a round trip.
//
// An Object is owned by its caller and is not safe for concurrent use.
type Object struct {
	model  *datamodel.Model
	values map[string]any
}

// NewObject returns an object of model m with every property set to its
// declared default, or the zero value of its type.
func NewObject(m *datamodel.Model) *Object {
	o := &Object{model: m, values: map[string]any{}}
	fillDefaults(m.Properties, o.values)

	if m.IsIterable() {
		o.values[m.IDProperty()] = NewObjectID
	}

	return o
}

// Model returns the object's data model.
func (o *Object) Model() *datamodel.Model {
	return o.model
}

// ModelID returns the object's data model identifier.
func (o *Object) ModelID() string {
	return o.model.ID
}

// ID returns the identity of a collection object, or "" for singletons.
func (o *Object) ID() string {
	if !o.model.IsIterable() {
		return ""
	}

	return o.GetString(o.model.IDProperty())
}

// IsNew reports whether a collection object has not been stored yet.
func (o *Object) IsNew() bool {
	if !o.model.IsIterable() {
		return false
	}

	id := o.ID()

	return id == "" || id == NewObjectID
}

// IsIterable reports whether the object belongs to a collection model.
func (o *Object) IsIterable() bool {
	return o.model.IsIterable()
}

// IsReferenceable reports whether other objects may reference this one.
func (o *Object) IsReferenceable() bool {
	return o.model.IsReferenceable()
}

// Has reports whether the property at path has a value. Nested properties
// are addressed with dots, e.g. "ntp.enable".
func (o *Object) Has(path string) bool {
	_, ok := lookup(o.values, path)

	return ok
}

// Get returns the value at path, or nil.
func (o *Object) Get(path string) any {
	v, _ := lookup(o.values, path)

	return v
}

// GetString returns the value at path in its stored text form.
func (o *Object) GetString(path string) string {
	v, ok := lookup(o.values, path)
	if !ok || v == nil {
		return ""
	}

	return filter.Text(v)
}

// GetBool returns the value at path as a boolean.
func (o *Object) GetBool(path string) bool {
	b, _ := coerceBool(o.Get(path))

	return b
}

// Set assigns the value at path after converting it to the declared type.
func (o *Object) Set(path string, value any) error {
	names := strings.Split(path, ".")
	props := o.model.Properties
	values := o.values

	for i, name := range names {
		prop, ok := props.Get(name)
		if !ok {
			return fmt.Errorf("%w %q in %s", ErrUnknownProperty, strings.Join(names[:i+1], "."), o.model.ID)
		}

		if i == len(names)-1 {
			v, err := coerce(prop, value)
			if err != nil {
				return fmt.Errorf("%w for %q: %w", ErrInvalidValue, path, err)
			}

			values[name] = v

			return nil
		}

		if prop.Type != datamodel.TypeObject {
			return fmt.Errorf("%w %q in %s: not an object", ErrUnknownProperty, strings.Join(names[:i+1], "."), o.model.ID)
		}

		child, ok := values[name].(map[string]any)
		if !ok {
			child = map[string]any{}
			values[name] = child
		}

		props = prop.Properties
		values = child
	}

	return nil
}

// SetAssoc assigns every entry of values. Keys may be dotted paths.
// It stops at the first failure.
func (o *Object) SetAssoc(values map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := o.Set(key, values[key]); err != nil {
			return err
		}
	}

	return nil
}

// Values returns a deep copy of all property values.
func (o *Object) Values() map[string]any {
	return deepCopyMap(o.values)
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	return &Object{model: o.model, values: deepCopyMap(o.values)}
}

// MarshalJSON encodes the values with declared properties first, in
// declaration order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return marshalOrdered(o.model.Properties, o.values)
}

func marshalOrdered(props datamodel.Properties, values map[string]any) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	first := true

	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}

		first = false

		k, err := json.Marshal(key)
		if err != nil {
			return err
		}

		var v []byte

		prop, declared := props.Get(key)
		if nested, ok := value.(map[string]any); ok && declared && prop.Type == datamodel.TypeObject {
			v, err = marshalOrdered(prop.Properties, nested)
		} else {
			v, err = json.Marshal(value)
		}

		if err != nil {
			return err
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)

		return nil
	}

	for _, key := range orderedKeys(props, values) {
		if err := write(key, values[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// orderedKeys lists declared properties present in values in declaration
// order, then undeclared keys sorted.
func orderedKeys(props datamodel.Properties, values map[string]any) []string {
	keys := make([]string, 0, len(values))

	for _, name := range props.Names() {
		if _, ok := values[name]; ok {
			keys = append(keys, name)
		}
	}

	var extra []string

	for key := range values {
		if _, declared := props.Get(key); !declared {
			extra = append(extra, key)
		}
	}

	slices.Sort(extra)

	return append(keys, extra...)
}

func lookup(values map[string]any, path string) (any, bool) {
	names := strings.Split(path, ".")

	var cur any = values

	for _, name := range names {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		cur, ok = m[name]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// property resolves a dotted path against the model's schema.
func (o *Object) property(path string) (*datamodel.Property, error) {
	names := strings.Split(path, ".")
	props := o.model.Properties

	var prop *datamodel.Property

	for i, name := range names {
		p, ok := props.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownProperty, strings.Join(names[:i+1], "."), o.model.ID)
		}

		prop = p
		props = p.Properties
	}

	return prop, nil
}

func fillDefaults(props datamodel.Properties, values map[string]any) {
	for _, name := range props.Names() {
		if _, ok := values[name]; ok {
			continue
		}

		prop, _ := props.Get(name)
		values[name] = defaultValue(prop)
	}
}

func defaultValue(prop *datamodel.Property) any {
	if prop.Type == datamodel.TypeObject {
		nested := map[string]any{}
		if m, ok := prop.Default.(map[string]any); ok {
			for k, v := range m {
				nested[k] = v
			}
		}

		fillDefaults(prop.Properties, nested)

		return nested
	}

	if prop.Default != nil {
		if v, err := coerce(prop, prop.Default); err == nil {
			return v
		}
	}

	switch prop.Type {
	case datamodel.TypeBoolean:
		return false
	case datamodel.TypeInteger:
		return int64(0)
	case datamodel.TypeNumber:
		return float64(0)
	case datamodel.TypeArray:
		return []any{}
	default:
		return ""
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		out[k] = deepCopy(v)
	}

	return out
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}

		return out
	default:
		return v
	}
}
