package datamodel

import "errors"

var (
	// ErrNoSuchModel is returned by [Registry.Lookup] for unknown identifiers.
	ErrNoSuchModel = errors.New("no such data model")

	// ErrInvalidModel reports a model definition that cannot be used.
	ErrInvalidModel = errors.New("invalid data model")

	// ErrDuplicateModel reports two definitions with the same identifier.
	ErrDuplicateModel = errors.New("duplicate data model")
)
