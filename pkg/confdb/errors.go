package confdb

import (
	"errors"
	"strings"

	"github.com/calvinalkan/confdb/pkg/confdb/filter"
	"github.com/calvinalkan/confdb/pkg/confdb/xmlstore"
	"github.com/calvinalkan/confdb/pkg/datamodel"
)

// Sentinel errors. Use [errors.Is] to match them; all errors returned by
// [Database] are wrapped in [*Error].
var (
	ErrNoSuchModel         = datamodel.ErrNoSuchModel
	ErrNotIterable         = errors.New("data model is not iterable")
	ErrNotFound            = errors.New("configuration object not found")
	ErrNotReferenceable    = errors.New("configuration object can not be referenced")
	ErrEmptyFilter         = errors.New("filter must not be empty")
	ErrMalformedFilter     = filter.ErrMalformedFilter
	ErrUnsupportedOperator = filter.ErrUnsupportedOperator
	ErrStoreIO             = xmlstore.ErrStoreIO
	ErrUnknownProperty     = errors.New("unknown property")
	ErrInvalidValue        = errors.New("invalid property value")
	ErrJournal             = errors.New("journal")
)

// Error carries the context of a failed database operation.
//
// The cause comes first, followed by the context:
//
//	configuration object not found (op=get model=conf.system.notification.notification query=//...)
//
// Use [errors.As] to extract structured fields:
//
//	var dbErr *confdb.Error
//	if errors.As(err, &dbErr) {
//	    fmt.Println(dbErr.Model, dbErr.Operator)
//	}
type Error struct {
	// Op is the database operation, e.g. "get" or "delete_by_filter".
	Op string

	// Model is the data model identifier.
	Model string

	// Field is the property involved, if any.
	Field string

	// Operator is the offending filter operator for
	// [ErrUnsupportedOperator].
	Operator string

	// Query is the compiled XPath, when one was built.
	Query string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X model=Y ...)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	var parts []string

	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}

	add("op", e.Op)
	add("model", e.Model)
	add("field", e.Field)
	add("operator", e.Operator)
	add("query", e.Query)

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// errCtx is the context attached to errors leaving the package.
type errCtx struct {
	op    string
	model string
	field string
	query Query
}

// wrap attaches context at API boundaries and returns *Error.
// If err is already *Error, missing fields are filled in-place.
func (c errCtx) wrap(err error) error {
	if err == nil {
		return nil
	}

	operator := ""

	var opErr *filter.OperatorError
	if errors.As(err, &opErr) {
		operator = opErr.Operator
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		fill(&existing.Op, c.op)
		fill(&existing.Model, c.model)
		fill(&existing.Field, c.field)
		fill(&existing.Operator, operator)
		fill(&existing.Query, string(c.query))

		return existing
	}

	return &Error{
		Op:       c.op,
		Model:    c.model,
		Field:    c.field,
		Operator: operator,
		Query:    string(c.query),
		Err:      err,
	}
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
