package filter

import (
	"errors"
	"strconv"
)

var (
	// ErrMalformedFilter reports a filter whose shape does not match its operator.
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrUnsupportedOperator reports an operator name outside the operator table.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
)

// OperatorError carries the offending operator name.
//
// It matches [ErrUnsupportedOperator] with [errors.Is].
type OperatorError struct {
	Operator string
}

func (e *OperatorError) Error() string {
	return ErrUnsupportedOperator.Error() + " " + strconv.Quote(e.Operator)
}

func (e *OperatorError) Unwrap() error {
	return ErrUnsupportedOperator
}
