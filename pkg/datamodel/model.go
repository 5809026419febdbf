// Package datamodel describes configuration schemas: where a model's nodes
// live in the config document, whether the model is a singleton or a
// collection, and the types of its properties.
//
// Models are usually loaded from JSON definitions such as
//
//	{
//	  "type": "config",
//	  "id": "conf.system.notification.notification",
//	  "queryinfo": {
//	    "xpath": "//system/notification/notifications/notification",
//	    "iterable": true,
//	    "idproperty": "uuid"
//	  },
//	  "properties": {
//	    "uuid": {"type": "string"},
//	    "id": {"type": "string"},
//	    "enable": {"type": "boolean", "default": false}
//	  }
//	}
package datamodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DefaultIDProperty is the identity property of collection models that do
// not name one.
const DefaultIDProperty = "uuid"

// Property types.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Model is one configuration schema.
type Model struct {
	Type        string     `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	QueryInfo   QueryInfo  `json:"queryinfo"`
	Properties  Properties `json:"properties"`
}

// QueryInfo locates a model in the config document.
type QueryInfo struct {
	XPath       string `json:"xpath"`
	Iterable    bool   `json:"iterable"`
	IDProperty  string `json:"idproperty,omitempty"`
	RefProperty string `json:"refproperty,omitempty"`
}

// Property is the type declaration of one field.
type Property struct {
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Default     any        `json:"default,omitempty"`
	Items       *Property  `json:"items,omitempty"`
	Properties  Properties `json:"properties,omitzero"`
}

// Properties is a set of named property declarations that remembers the
// order they were declared in. The order decides the element order of
// encoded objects.
type Properties struct {
	names  []string
	byName map[string]*Property
}

// NewProperties builds a [Properties] declared in the order of names.
// Names missing from props are skipped.
func NewProperties(names []string, props map[string]*Property) Properties {
	p := Properties{byName: make(map[string]*Property, len(names))}

	for _, name := range names {
		if prop, ok := props[name]; ok {
			p.names = append(p.names, name)
			p.byName[name] = prop
		}
	}

	return p
}

// Names returns the property names in declaration order.
func (p Properties) Names() []string {
	return slices.Clone(p.names)
}

// Get returns the named property.
func (p Properties) Get(name string) (*Property, bool) {
	prop, ok := p.byName[name]

	return prop, ok
}

// Len returns the number of properties.
func (p Properties) Len() int {
	return len(p.names)
}

// IsZero reports whether no property is declared.
func (p Properties) IsZero() bool {
	return len(p.names) == 0
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if tok == nil {
		*p = Properties{}

		return nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be an object")
	}

	out := Properties{byName: map[string]*Property{}}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		name, _ := tok.(string)

		var prop Property

		err = dec.Decode(&prop)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}

		if _, dup := out.byName[name]; !dup {
			out.names = append(out.names, name)
		}

		out.byName[name] = &prop
	}

	*p = out

	return nil
}

// MarshalJSON encodes the properties in declaration order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(p.byName[name])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// BasePath is the XPath location of the model's nodes.
func (m *Model) BasePath() string {
	return m.QueryInfo.XPath
}

// IsIterable reports whether the model is a collection.
func (m *Model) IsIterable() bool {
	return m.QueryInfo.Iterable
}

// IDProperty returns the identity field of a collection model, or "" for
// singletons.
func (m *Model) IDProperty() string {
	if !m.QueryInfo.Iterable {
		return ""
	}

	if m.QueryInfo.IDProperty == "" {
		return DefaultIDProperty
	}

	return m.QueryInfo.IDProperty
}

// RefProperty is the element name other models use to reference objects of
// this model. Empty when objects cannot be referenced.
func (m *Model) RefProperty() string {
	return m.QueryInfo.RefProperty
}

// IsReferenceable reports whether the model declares a reference property.
func (m *Model) IsReferenceable() bool {
	return m.QueryInfo.RefProperty != ""
}

// ArrayFields returns the names of properties holding sequences.
func (m *Model) ArrayFields() []string {
	var out []string

	for _, name := range m.Properties.names {
		if m.Properties.byName[name].Type == TypeArray {
			out = append(out, name)
		}
	}

	return out
}

// ParentPath is the base path without its last step. New collection nodes
// are appended to the node it selects.
func (m *Model) ParentPath() string {
	idx := strings.LastIndex(m.QueryInfo.XPath, "/")
	if idx <= 0 {
		return ""
	}

	parent := m.QueryInfo.XPath[:idx]
	if strings.Trim(parent, "/") == "" {
		return ""
	}

	return parent
}

// ElementName is the last step of the base path.
func (m *Model) ElementName() string {
	idx := strings.LastIndex(m.QueryInfo.XPath, "/")

	return m.QueryInfo.XPath[idx+1:]
}

// Property returns the declaration of a top-level property.
func (m *Model) Property(name string) (*Property, bool) {
	return m.Properties.Get(name)
}

// validate checks that m can be used to build queries.
func (m *Model) validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidModel)
	}

	xpath := m.QueryInfo.XPath
	if !strings.HasPrefix(xpath, "/") || strings.ContainsAny(xpath, "[]|() '\"") {
		return fmt.Errorf("%w %s: xpath %q must be an absolute location path without predicates", ErrInvalidModel, m.ID, xpath)
	}

	if m.ElementName() == "" || m.ParentPath() == "" {
		return fmt.Errorf("%w %s: xpath %q needs a parent element", ErrInvalidModel, m.ID, xpath)
	}

	if m.IsIterable() {
		if _, ok := m.Properties.Get(m.IDProperty()); !ok {
			return fmt.Errorf("%w %s: id property %q is not declared", ErrInvalidModel, m.ID, m.IDProperty())
		}
	}

	return validateProperties(m.ID, "", m.Properties)
}

func validateProperties(id, prefix string, props Properties) error {
	for _, name := range props.names {
		prop := props.byName[name]

		switch prop.Type {
		case TypeString, TypeBoolean, TypeInteger, TypeNumber:
		case TypeArray:
			if prop.Items != nil && (prop.Items.Type == TypeArray || prop.Items.Type == TypeObject) {
				return fmt.Errorf("%w %s: property %s%s: arrays of %s are not supported", ErrInvalidModel, id, prefix, name, prop.Items.Type)
			}
		case TypeObject:
			err := validateProperties(id, prefix+name+"/", prop.Properties)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w %s: property %s%s has unknown type %q", ErrInvalidModel, id, prefix, name, prop.Type)
		}
	}

	return nil
}
