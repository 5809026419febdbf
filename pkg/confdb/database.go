// Package confdb is the schema-aware access layer over the config document.
//
// Callers name a data model and optionally an identity or a filter; the
// [Database] looks up the model, compiles the query and decodes the
// selected nodes into typed [Object] values:
//
//	db := confdb.New(xmlstore.New("/etc/openmediavault/config.xml"), registry)
//
//	res, err := db.Get(ctx, "conf.system.notification.notification", "c1cd54af-660d-4311-8e21-2a19420355bb")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Object().GetString("id"))
//
// Every read loads the document afresh and every mutation writes it back
// atomically. There is no locking: one mutating process at a time is
// assumed. Multi-step changes that need to be undone as a whole are guarded
// with the backup package.
package confdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calvinalkan/confdb/pkg/confdb/filter"
	"github.com/calvinalkan/confdb/pkg/confdb/xmlstore"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

// Store is the document store the database runs against.
// [*xmlstore.Store] implements it.
type Store interface {
	View(ctx context.Context, fn func(*xmlstore.Document) error) error
	Update(ctx context.Context, fn func(*xmlstore.Document) error) error
}

// Schemas resolves data model identifiers. [*datamodel.Registry]
// implements it.
type Schemas interface {
	Lookup(id string) (*datamodel.Model, error)
}

// Database implements get, exists, uniqueness and reference checks, and
// mutations over a [Store].
//
// It holds no document state and is safe for concurrent readers.
type Database struct {
	store   Store
	schemas Schemas
	log     *zap.SugaredLogger
	journal Journal
	newID   func() string
	now     func() time.Time
}

// Option configures a [Database].
type Option func(*Database)

// WithLogger sets the logger. Queries are logged at debug level and
// mutations at info level.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(db *Database) {
		db.log = log
	}
}

// WithJournal records every committed mutation in j.
func WithJournal(j Journal) Option {
	return func(db *Database) {
		db.journal = j
	}
}

// WithIDGenerator replaces the generator of identities for new collection
// objects. The default produces random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(db *Database) {
		db.newID = fn
	}
}

// New returns a database over store using schemas.
func New(store Store, schemas Schemas, opts ...Option) *Database {
	db := &Database{
		store:   store,
		schemas: schemas,
		log:     zap.NewNop().Sugar(),
		newID:   uuid.NewString,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(db)
	}

	return db
}

// Model returns the data model registered under modelID.
func (db *Database) Model(modelID string) (*datamodel.Model, error) {
	m, err := db.schemas.Lookup(modelID)
	if err != nil {
		return nil, errCtx{op: "lookup", model: modelID}.wrap(err)
	}

	return m, nil
}

// NewObject returns an empty object of model modelID with defaults applied.
func (db *Database) NewObject(modelID string) (*Object, error) {
	m, err := db.Model(modelID)
	if err != nil {
		return nil, err
	}

	return NewObject(m), nil
}

// Get reads the object(s) of a model.
//
// For a singleton model id is ignored and the single object is returned.
// For a collection an empty id returns the whole collection as a list, and
// a non-empty id returns the matching object or fails with [ErrNotFound].
func (db *Database) Get(ctx context.Context, modelID, id string) (Result, error) {
	c := errCtx{op: "get", model: modelID}

	m, err := db.schemas.Lookup(modelID)
	if err != nil {
		return Result{}, c.wrap(err)
	}

	q, err := NewGetQuery(m, id)
	if err != nil {
		return Result{}, c.wrap(err)
	}

	c.query = q

	var res Result

	err = db.store.View(ctx, func(doc *xmlstore.Document) error {
		nodes, err := doc.Read(string(q))
		if err != nil {
			return err
		}

		if m.IsIterable() && id == "" {
			res = List(decodeAll(m, nodes))

			return nil
		}

		if len(nodes) == 0 {
			return ErrNotFound
		}

		res = Single(decodeObject(m, nodes[0]))

		return nil
	})
	if err != nil {
		return Result{}, c.wrap(err)
	}

	db.log.Debugw("get", "model", modelID, "query", q, "count", res.Len())

	return res, nil
}

// GetByFilter returns the objects of a collection model matching f, at
// most max of them when max > 0.
//
// With max == 1 the result is a single object and zero matches fail with
// [ErrNotFound]; otherwise it is a list, possibly empty.
func (db *Database) GetByFilter(ctx context.Context, modelID string, f filter.Expr, max int) (Result, error) {
	c := errCtx{op: "get_by_filter", model: modelID}

	objects, q, err := db.find(ctx, modelID, f, max)
	c.query = q

	if err != nil {
		return Result{}, c.wrap(err)
	}

	if max == 1 {
		if len(objects) == 0 {
			return Result{}, c.wrap(ErrNotFound)
		}

		return Single(objects[0]), nil
	}

	return List(objects), nil
}

// FindByFilter returns all objects of a collection model matching f.
func (db *Database) FindByFilter(ctx context.Context, modelID string, f filter.Expr) ([]*Object, error) {
	objects, q, err := db.find(ctx, modelID, f, 0)
	if err != nil {
		return nil, errCtx{op: "find_by_filter", model: modelID, query: q}.wrap(err)
	}

	return objects, nil
}

func (db *Database) find(ctx context.Context, modelID string, f filter.Expr, max int) ([]*Object, Query, error) {
	m, err := db.schemas.Lookup(modelID)
	if err != nil {
		return nil, "", err
	}

	q, err := NewFilterQuery(m, f)
	if err != nil {
		return nil, "", err
	}

	var objects []*Object

	err = db.store.View(ctx, func(doc *xmlstore.Document) error {
		nodes, err := doc.Read(string(q))
		if err != nil {
			return err
		}

		if max > 0 && len(nodes) > max {
			nodes = nodes[:max]
		}

		objects = decodeAll(m, nodes)

		return nil
	})
	if err != nil {
		return nil, q, err
	}

	db.log.Debugw("find", "model", modelID, "query", q, "count", len(objects))

	return objects, q, nil
}

// Exists reports whether at least one object of a model exists, restricted
// to objects matching f when f is not nil.
func (db *Database) Exists(ctx context.Context, modelID string, f filter.Expr) (bool, error) {
	c := errCtx{op: "exists", model: modelID}

	m, err := db.schemas.Lookup(modelID)
	if err != nil {
		return false, c.wrap(err)
	}

	q, err := NewExistsQuery(m, f)
	if err != nil {
		return false, c.wrap(err)
	}

	c.query = q

	found, err := db.exists(ctx, q)
	if err != nil {
		return false, c.wrap(err)
	}

	return found, nil
}

// IsReferenced reports whether any node in the document refers to o by its
// identity. Fails with [ErrNotReferenceable] when o's model declares no
// reference property.
func (db *Database) IsReferenced(ctx context.Context, o *Object) (bool, error) {
	c := errCtx{op: "is_referenced", model: o.ModelID()}

	q, err := NewReferencedQuery(o)
	if err != nil {
		return false, c.wrap(err)
	}

	c.query = q

	found, err := db.exists(ctx, q)
	if err != nil {
		return false, c.wrap(err)
	}

	return found, nil
}

func (db *Database) exists(ctx context.Context, q Query) (bool, error) {
	var found bool

	err := db.store.View(ctx, func(doc *xmlstore.Document) error {
		var err error

		found, err = doc.Exists(string(q))

		return err
	})

	db.log.Debugw("exists", "query", q, "found", found)

	return found, err
}

// IsUnique reports whether no other stored object of o's model has the
// same value for field. Only scalar fields can be compared; array and
// object fields fail with [ErrInvalidValue].
func (db *Database) IsUnique(ctx context.Context, o *Object, field string) (bool, error) {
	c := errCtx{op: "is_unique", model: o.ModelID(), field: field}

	if o.IsIterable() {
		prop, err := o.property(field)
		if err != nil {
			return false, c.wrap(err)
		}

		if prop.Type == datamodel.TypeArray || prop.Type == datamodel.TypeObject {
			return false, c.wrap(fmt.Errorf("%w: %s field %q cannot be compared", ErrInvalidValue, prop.Type, field))
		}
	}

	path := strings.ReplaceAll(field, ".", "/")

	unique, err := db.isUnique(ctx, o, filter.StringEquals(path, o.GetString(field)))
	if err != nil {
		return false, c.wrap(err)
	}

	return unique, nil
}

// IsUniqueByFilter reports whether no other stored object of o's model
// matches f. A stored object never collides with itself. Singleton models
// fail with [ErrNotIterable].
func (db *Database) IsUniqueByFilter(ctx context.Context, o *Object, f filter.Expr) (bool, error) {
	unique, err := db.isUnique(ctx, o, f)
	if err != nil {
		return false, errCtx{op: "is_unique_by_filter", model: o.ModelID()}.wrap(err)
	}

	return unique, nil
}

func (db *Database) isUnique(ctx context.Context, o *Object, f filter.Expr) (bool, error) {
	if !o.IsIterable() {
		return false, ErrNotIterable
	}

	if f == nil {
		return false, ErrEmptyFilter
	}

	if !o.IsNew() {
		f = filter.And(filter.StringNotEquals(o.model.IDProperty(), o.ID()), f)
	}

	objects, _, err := db.find(ctx, o.ModelID(), f, 0)
	if err != nil {
		return false, err
	}

	return len(objects) == 0, nil
}

// Set stores o and returns the object previously stored at its location, or
// nil. A new collection object is assigned a fresh identity, which is
// written back to o on success.
func (db *Database) Set(ctx context.Context, o *Object) (*Object, error) {
	c := errCtx{op: "set", model: o.ModelID()}

	stored := o.Clone()
	if stored.IsNew() {
		stored.values[o.model.IDProperty()] = db.newID()
	}

	q, err := NewSetQuery(stored)
	if err != nil {
		return nil, c.wrap(err)
	}

	c.query = q.Query()

	var prev *Object

	err = db.store.Update(ctx, func(doc *xmlstore.Document) error {
		var err error

		prev, err = q.Execute(doc)

		return err
	})
	if err != nil {
		return nil, c.wrap(err)
	}

	if o.IsNew() {
		o.values[o.model.IDProperty()] = stored.ID()
	}

	db.log.Infow("set", "model", o.ModelID(), "id", stored.ID(), "created", prev == nil)

	err = db.record(ctx, Mutation{Kind: MutationSet, Model: o.ModelID(), ObjectID: stored.ID(), Before: prev, After: stored})
	if err != nil {
		return prev, c.wrap(err)
	}

	return prev, nil
}

// Delete removes the stored node of o and returns the object it held.
// Fails with [ErrNotFound] when o is not stored.
func (db *Database) Delete(ctx context.Context, o *Object) (*Object, error) {
	c := errCtx{op: "delete", model: o.ModelID()}

	q, err := NewDeleteQuery(o)
	if err != nil {
		return nil, c.wrap(err)
	}

	c.query = q.Query()

	var removed *Object

	err = db.store.Update(ctx, func(doc *xmlstore.Document) error {
		var err error

		removed, err = q.Execute(doc)

		return err
	})
	if err != nil {
		return nil, c.wrap(err)
	}

	db.log.Infow("delete", "model", o.ModelID(), "id", removed.ID())

	err = db.record(ctx, Mutation{Kind: MutationDelete, Model: o.ModelID(), ObjectID: removed.ID(), Before: removed})
	if err != nil {
		return removed, c.wrap(err)
	}

	return removed, nil
}

// DeleteByFilter removes every object of a collection model matching f and
// returns them in document order. Fails with [ErrNotFound] when nothing
// matches.
func (db *Database) DeleteByFilter(ctx context.Context, modelID string, f filter.Expr) ([]*Object, error) {
	c := errCtx{op: "delete_by_filter", model: modelID}

	m, err := db.schemas.Lookup(modelID)
	if err != nil {
		return nil, c.wrap(err)
	}

	q, err := NewFilterQuery(m, f)
	if err != nil {
		return nil, c.wrap(err)
	}

	c.query = q

	var removed []*Object

	err = db.store.Update(ctx, func(doc *xmlstore.Document) error {
		nodes, err := doc.Delete(string(q))
		if err != nil {
			return err
		}

		if len(nodes) == 0 {
			return ErrNotFound
		}

		removed = decodeAll(m, nodes)

		return nil
	})
	if err != nil {
		return nil, c.wrap(err)
	}

	db.log.Infow("delete_by_filter", "model", modelID, "query", q, "count", len(removed))

	for _, o := range removed {
		err = db.record(ctx, Mutation{Kind: MutationDelete, Model: modelID, ObjectID: o.ID(), Before: o})
		if err != nil {
			return removed, c.wrap(err)
		}
	}

	return removed, nil
}

func (db *Database) record(ctx context.Context, m Mutation) error {
	if db.journal == nil {
		return nil
	}

	m.Time = db.now()

	err := db.journal.Record(ctx, m)
	if err != nil {
		db.log.Warnw("journal record failed", "model", m.Model, "id", m.ObjectID, "error", err)

		return fmt.Errorf("%w: %w", ErrJournal, err)
	}

	return nil
}

func decodeAll(m *datamodel.Model, nodes []*xmlquery.Node) []*Object {
	out := make([]*Object, 0, len(nodes))

	for _, n := range nodes {
		out = append(out, decodeObject(m, n))
	}

	return out
}
