package filter

// Op is a canonical filter operator name.
type Op string

// Operators in their canonical spelling.
const (
	OpAnd              Op = "and"
	OpOr               Op = "or"
	OpNot              Op = "not"
	OpEquals           Op = "equals"
	OpNotEquals        Op = "notEquals"
	OpStringEquals     Op = "stringEquals"
	OpStringNotEquals  Op = "stringNotEquals"
	OpStringContains   Op = "stringContains"
	OpStringStartsWith Op = "stringStartsWith"
	OpEnum             Op = "enum"
	OpStringEnum       Op = "stringEnum"
	OpLess             Op = "less"
	OpGreater          Op = "greater"
	OpLessEqual        Op = "lessEqual"
	OpGreaterEqual     Op = "greaterEqual"
)

type opClass uint8

const (
	classLogical opClass = iota + 1
	classNot
	classCompare
	classEnum
)

type opInfo struct {
	class opClass
	// quoted operators render their value as an escaped string literal.
	quoted bool
	// symbol is the XPath comparison operator, or the function name for
	// contains/starts-with.
	symbol string
}

var operators = map[Op]opInfo{
	OpAnd:              {class: classLogical, symbol: "and"},
	OpOr:               {class: classLogical, symbol: "or"},
	OpNot:              {class: classNot},
	OpEquals:           {class: classCompare, symbol: "="},
	OpNotEquals:        {class: classCompare, symbol: "!="},
	OpStringEquals:     {class: classCompare, quoted: true, symbol: "="},
	OpStringNotEquals:  {class: classCompare, quoted: true, symbol: "!="},
	OpStringContains:   {class: classCompare, quoted: true, symbol: "contains"},
	OpStringStartsWith: {class: classCompare, quoted: true, symbol: "starts-with"},
	OpEnum:             {class: classEnum},
	OpStringEnum:       {class: classEnum, quoted: true},
	OpLess:             {class: classCompare, symbol: "<"},
	OpGreater:          {class: classCompare, symbol: ">"},
	OpLessEqual:        {class: classCompare, symbol: "<="},
	OpGreaterEqual:     {class: classCompare, symbol: ">="},
}

var aliases = map[string]Op{
	"!":   OpNot,
	"=":   OpEquals,
	"!=":  OpNotEquals,
	"==":  OpStringEquals,
	"!==": OpStringNotEquals,
	"<":   OpLess,
	">":   OpGreater,
	"<=":  OpLessEqual,
	">=":  OpGreaterEqual,
}

// ParseOp resolves a canonical operator name or one of its aliases.
// Unknown names fail with an [*OperatorError].
func ParseOp(name string) (Op, error) {
	if op, ok := aliases[name]; ok {
		return op, nil
	}

	op := Op(name)
	if _, ok := operators[op]; ok {
		return op, nil
	}

	return "", &OperatorError{Operator: name}
}

func (op Op) info() (opInfo, bool) {
	info, ok := operators[op]

	return info, ok
}
