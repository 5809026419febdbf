package confdb

import (
	"fmt"

	"github.com/calvinalkan/confdb/pkg/confdb/filter"
	"github.com/calvinalkan/confdb/pkg/confdb/xmlstore"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

// Query is a compiled XPath expression selecting configuration nodes.
// Two queries are equal when their strings are equal.
type Query string

func (q Query) String() string {
	return string(q)
}

// NewGetQuery selects the nodes of model m. For singletons id is ignored.
// For collections an empty id selects the whole collection, otherwise the
// object whose id property equals id.
func NewGetQuery(m *datamodel.Model, id string) (Query, error) {
	if !m.IsIterable() || id == "" {
		return Query(m.BasePath()), nil
	}

	return NewFilterQuery(m, filter.StringEquals(m.IDProperty(), id))
}

// NewFilterQuery selects the objects of collection model m matching f.
func NewFilterQuery(m *datamodel.Model, f filter.Expr) (Query, error) {
	if f == nil {
		return "", ErrEmptyFilter
	}

	if !m.IsIterable() {
		return "", ErrNotIterable
	}

	return predicate(m, f)
}

// NewExistsQuery selects the nodes of m, restricted by f when f is not nil.
// Unlike [NewFilterQuery] it accepts singleton models.
func NewExistsQuery(m *datamodel.Model, f filter.Expr) (Query, error) {
	if f == nil {
		return Query(m.BasePath()), nil
	}

	return predicate(m, f)
}

// NewReferencedQuery selects any reference to o anywhere in the document.
func NewReferencedQuery(o *Object) (Query, error) {
	if !o.IsReferenceable() {
		return "", ErrNotReferenceable
	}

	return Query(fmt.Sprintf("//%s[.=%s]", o.model.RefProperty(), filter.Quote(o.ID()))), nil
}

func predicate(m *datamodel.Model, f filter.Expr) (Query, error) {
	pred, err := filter.Compile(f)
	if err != nil {
		return "", err
	}

	return Query(m.BasePath() + "[" + pred + "]"), nil
}

// DeleteQuery removes a stored object.
type DeleteQuery struct {
	object *Object
	query  Query
}

// NewDeleteQuery targets the stored node of o. A collection object without
// an identity is refused, since its location would select the first item.
func NewDeleteQuery(o *Object) (*DeleteQuery, error) {
	if o.IsNew() {
		return nil, fmt.Errorf("%w: object has no identity", ErrInvalidValue)
	}

	q, err := NewGetQuery(o.model, o.ID())
	if err != nil {
		return nil, err
	}

	return &DeleteQuery{object: o, query: q}, nil
}

// Query returns the compiled selection.
func (q *DeleteQuery) Query() Query {
	return q.query
}

// Execute removes the first node the query selects and returns the object
// it held. It fails with [ErrNotFound] when nothing matches.
func (q *DeleteQuery) Execute(doc *xmlstore.Document) (*Object, error) {
	node, err := doc.ReadOne(string(q.query))
	if err != nil {
		return nil, err
	}

	if node == nil {
		return nil, ErrNotFound
	}

	removed := decodeObject(q.object.model, node)
	doc.Remove(node)

	return removed, nil
}

// SetQuery inserts or replaces an object.
type SetQuery struct {
	object *Object
	query  Query
}

// NewSetQuery targets the location of o. A collection object must already
// carry its final identity.
func NewSetQuery(o *Object) (*SetQuery, error) {
	if o.IsNew() {
		return nil, fmt.Errorf("%w: object has no identity", ErrInvalidValue)
	}

	q, err := NewGetQuery(o.model, o.ID())
	if err != nil {
		return nil, err
	}

	return &SetQuery{object: o, query: q}, nil
}

// Query returns the compiled location.
func (q *SetQuery) Query() Query {
	return q.query
}

// Execute stores the object and returns the one it replaced, or nil when
// the location was empty.
func (q *SetQuery) Execute(doc *xmlstore.Document) (*Object, error) {
	node := encodeObject(q.object)

	old, err := doc.Write(string(q.query), q.object.model.ParentPath(), node)
	if err != nil {
		return nil, err
	}

	if old == nil {
		return nil, nil
	}

	return decodeObject(q.object.model, old), nil
}
