// Package filter implements the predicate language used to select
// configuration objects and its compiler to XPath 1.0.
//
// A filter is a tree of [Expr] nodes. Trees are usually decoded from their
// wire shape, a map with an "operator" key plus "arg0"/"arg1":
//
//	{"operator": "or",
//	 "arg0": {"operator": "=", "arg0": "port", "arg1": 8080},
//	 "arg1": {"operator": "equals", "arg0": "port", "arg1": 4443}}
//
// which [Compile] turns into the predicate
//
//	(port=8080 or port=4443)
//
// Shape errors are reported when the tree is built ([New], [Parse]), not when
// it is compiled. Values taken from callers are always rendered as escaped
// literals or validated numbers, never spliced in verbatim.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
)

// Expr is a node of a filter tree.
type Expr interface {
	isExpr()
}

// Logical joins two expressions with "and" or "or".
type Logical struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Not negates its child.
type Not struct {
	Child Expr
}

// Compare tests a single field against a scalar.
type Compare struct {
	Op    Op
	Field string
	Value any
}

// Enum matches a field against any of the listed scalars, in order.
type Enum struct {
	Op     Op
	Field  string
	Values []any
}

func (Logical) isExpr() {}
func (Not) isExpr()     {}
func (Compare) isExpr() {}
func (Enum) isExpr()    {}

// And constructs "(a and b)".
func And(a, b Expr) Expr { return Logical{Op: OpAnd, Left: a, Right: b} }

// Or constructs "(a or b)".
func Or(a, b Expr) Expr { return Logical{Op: OpOr, Left: a, Right: b} }

// Negate constructs "not(a)".
func Negate(a Expr) Expr { return Not{Child: a} }

// StringEquals constructs a quoted equality test.
func StringEquals(field, value string) Expr {
	return Compare{Op: OpStringEquals, Field: field, Value: value}
}

// StringNotEquals constructs a quoted inequality test.
func StringNotEquals(field, value string) Expr {
	return Compare{Op: OpStringNotEquals, Field: field, Value: value}
}

// StringContains constructs a contains() test.
func StringContains(field, value string) Expr {
	return Compare{Op: OpStringContains, Field: field, Value: value}
}

// Equals constructs an unquoted equality test; value must be a scalar.
func Equals(field string, value any) Expr {
	return Compare{Op: OpEquals, Field: field, Value: value}
}

// StringEnum constructs a quoted enum test.
func StringEnum(field string, values ...string) Expr {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}

	return Enum{Op: OpStringEnum, Field: field, Values: vals}
}

// fieldPattern accepts element names and relative child paths such as
// "port" or "opts/mode".
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*(/[A-Za-z_][A-Za-z0-9_.-]*)*$`)

// New builds and validates a single node. For "and"/"or" both args must be
// expressions, for "not" arg0 must be an expression and arg1 nil, for enum
// operators arg1 must be a sequence of scalars, for every other operator
// arg0 is a field name and arg1 a scalar.
func New(operator string, arg0, arg1 any) (Expr, error) {
	op, err := ParseOp(operator)
	if err != nil {
		return nil, err
	}

	info, _ := op.info()

	switch info.class {
	case classLogical:
		left, lok := arg0.(Expr)
		right, rok := arg1.(Expr)

		if !lok || !rok || left == nil || right == nil {
			return nil, fmt.Errorf("%w: %s requires two expressions", ErrMalformedFilter, op)
		}

		return Logical{Op: op, Left: left, Right: right}, nil
	case classNot:
		child, ok := arg0.(Expr)
		if !ok || child == nil {
			return nil, fmt.Errorf("%w: %s requires one expression", ErrMalformedFilter, op)
		}

		if arg1 != nil {
			return nil, fmt.Errorf("%w: %s takes no arg1", ErrMalformedFilter, op)
		}

		return Not{Child: child}, nil
	case classEnum:
		field, err := fieldName(op, arg0)
		if err != nil {
			return nil, err
		}

		values, err := scalars(op, arg1)
		if err != nil {
			return nil, err
		}

		return Enum{Op: op, Field: field, Values: values}, nil
	default:
		field, err := fieldName(op, arg0)
		if err != nil {
			return nil, err
		}

		value, err := scalar(arg1)
		if err != nil {
			return nil, fmt.Errorf("%w: %s on %q: %w", ErrMalformedFilter, op, field, err)
		}

		return Compare{Op: op, Field: field, Value: value}, nil
	}
}

// Validate reports whether a tree built by hand (not through [New]) is well formed.
func Validate(e Expr) error {
	switch n := e.(type) {
	case Logical:
		if info, ok := n.Op.info(); !ok || info.class != classLogical {
			return fmt.Errorf("%w: logical node with operator %q", ErrMalformedFilter, n.Op)
		}

		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("%w: %s requires two expressions", ErrMalformedFilter, n.Op)
		}

		if err := Validate(n.Left); err != nil {
			return err
		}

		return Validate(n.Right)
	case Not:
		if n.Child == nil {
			return fmt.Errorf("%w: not requires one expression", ErrMalformedFilter)
		}

		return Validate(n.Child)
	case Compare:
		info, ok := n.Op.info()
		if !ok {
			return &OperatorError{Operator: string(n.Op)}
		}

		if info.class != classCompare {
			return fmt.Errorf("%w: comparison node with operator %q", ErrMalformedFilter, n.Op)
		}

		if _, err := fieldName(n.Op, n.Field); err != nil {
			return err
		}

		if _, err := scalar(n.Value); err != nil {
			return fmt.Errorf("%w: %s on %q: %w", ErrMalformedFilter, n.Op, n.Field, err)
		}

		return nil
	case Enum:
		info, ok := n.Op.info()
		if !ok {
			return &OperatorError{Operator: string(n.Op)}
		}

		if info.class != classEnum {
			return fmt.Errorf("%w: enum node with operator %q", ErrMalformedFilter, n.Op)
		}

		if _, err := fieldName(n.Op, n.Field); err != nil {
			return err
		}

		_, err := scalars(n.Op, n.Values)

		return err
	case nil:
		return fmt.Errorf("%w: empty expression", ErrMalformedFilter)
	default:
		return fmt.Errorf("%w: unknown node type %T", ErrMalformedFilter, e)
	}
}

func fieldName(op Op, v any) (string, error) {
	name, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s arg0 must be a field name, got %T", ErrMalformedFilter, op, v)
	}

	if !fieldPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %s arg0 %q is not a valid field name", ErrMalformedFilter, op, name)
	}

	return name, nil
}

// scalar normalizes v to string, bool, int64, uint64, float64 or json.Number.
func scalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, uint64:
		return x, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return nil, fmt.Errorf("invalid or non-finite number %s", x)
		}

		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite number %v", x)
		}

		return x, nil
	case float32:
		return scalar(float64(x))
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("value of type %T is not a scalar", v)
	}
}

func scalars(op Op, v any) ([]any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s arg1 must be a sequence", ErrMalformedFilter, op)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %s arg1 must be a sequence, got %T", ErrMalformedFilter, op, v)
	}

	out := make([]any, rv.Len())

	for i := range rv.Len() {
		s, err := scalar(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("%w: %s element %d: %w", ErrMalformedFilter, op, i, err)
		}

		out[i] = s
	}

	return out, nil
}
