package confdb

import (
	"context"
	"time"
)

// Mutation kinds.
const (
	MutationSet    = "set"
	MutationDelete = "delete"
)

// Mutation describes one committed change to the document.
type Mutation struct {
	Kind     string
	Model    string
	ObjectID string
	Time     time.Time

	// Before is nil when the object was created.
	Before *Object

	// After is nil when the object was deleted.
	After *Object
}

// Journal records committed mutations.
type Journal interface {
	Record(ctx context.Context, m Mutation) error
}
