package pack

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Operator is a numeric comparison used by ThresholdMatch.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

var operatorAliases = map[string]Operator{
	">":   OpGreater,
	"gt":  OpGreater,
	">=":  OpGreaterEqual,
	"gte": OpGreaterEqual,
	"<":   OpLess,
	"lt":  OpLess,
	"<=":  OpLessEqual,
	"lte": OpLessEqual,
	"==":  OpEqual,
	"=":   OpEqual,
	"eq":  OpEqual,
	"!=":  OpNotEqual,
	"ne":  OpNotEqual,
}

// ParseOperator accepts symbolic and short-word forms ("gt", "lte"...).
func ParseOperator(s string) (Operator, error) {
	op, ok := operatorAliases[s]
	if !ok {
		return "", fmt.Errorf("%w: unsupported operator %q", ErrMalformedRule, s)
	}
	return op, nil
}

// Valid reports whether o is one of the six supported operators.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// Apply evaluates "actual o threshold".
func (o Operator) Apply(actual, threshold decimal.Decimal) bool {
	c := actual.Cmp(threshold)
	switch o {
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	}
	return false
}
