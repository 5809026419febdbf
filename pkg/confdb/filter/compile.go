package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Compile renders e as an XPath 1.0 predicate (without the surrounding
// brackets). It is deterministic: the same tree always yields the same
// string.
func Compile(e Expr) (string, error) {
	if err := Validate(e); err != nil {
		return "", err
	}

	var b strings.Builder

	compile(&b, e)

	return b.String(), nil
}

// MustCompile is like [Compile] but panics on error. Intended for tests and
// trees built from constants.
func MustCompile(e Expr) string {
	s, err := Compile(e)
	if err != nil {
		panic(err)
	}

	return s
}

// compile assumes e has been validated.
func compile(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case Logical:
		b.WriteByte('(')
		compile(b, n.Left)
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		b.WriteByte(' ')
		compile(b, n.Right)
		b.WriteByte(')')
	case Not:
		b.WriteString("not(")
		compile(b, n.Child)
		b.WriteByte(')')
	case Compare:
		info, _ := n.Op.info()

		value := renderValue(n.Value, info.quoted)

		switch n.Op {
		case OpStringContains, OpStringStartsWith:
			b.WriteString(info.symbol)
			b.WriteByte('(')
			b.WriteString(n.Field)
			b.WriteByte(',')
			b.WriteString(value)
			b.WriteByte(')')
		default:
			b.WriteString(n.Field)
			b.WriteString(info.symbol)
			b.WriteString(value)
		}
	case Enum:
		if len(n.Values) == 0 {
			b.WriteString("false()")

			return
		}

		info, _ := n.Op.info()

		b.WriteByte('(')

		for i, v := range n.Values {
			if i > 0 {
				b.WriteString(" or ")
			}

			b.WriteString(n.Field)
			b.WriteByte('=')
			b.WriteString(renderValue(v, info.quoted))
		}

		b.WriteByte(')')
	}
}

// numberPattern matches what XPath 1.0 accepts as a Number token, with an
// optional leading minus.
var numberPattern = regexp.MustCompile(`^-?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// exponentPattern matches decimal numbers in exponent form, which XPath
// 1.0 does not parse.
var exponentPattern = regexp.MustCompile(`^-?([0-9]+(\.[0-9]*)?|\.[0-9]+)[eE][+-]?[0-9]+$`)

func renderValue(v any, quoted bool) string {
	s := Text(v)
	if quoted {
		return Quote(s)
	}

	if _, isBool := v.(bool); isBool || numberPattern.MatchString(s) {
		return s
	}

	if exponentPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}

	return Quote(s)
}

// Text returns the string form of a scalar as it is stored in the document:
// booleans are "1" or "0", numbers use plain decimal notation.
func Text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}

		return "0"
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		if f, err := x.Float64(); err == nil && !numberPattern.MatchString(x.String()) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}

		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// Quote returns s as an XPath string literal that evaluates to exactly s.
// XPath has no escape sequences, so a value holding both quote characters
// is assembled with concat().
func Quote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	var b strings.Builder

	b.WriteString("concat(")

	for i, part := range strings.Split(s, "'") {
		if i > 0 {
			b.WriteString(`,"'",`)
		}

		b.WriteByte('\'')
		b.WriteString(part)
		b.WriteByte('\'')
	}

	b.WriteByte(')')

	return b.String()
}
