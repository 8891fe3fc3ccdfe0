package domain

import "fmt"

// FilterOp enumerates the predicate operators accepted at the search
// boundary. Filters are a tagged variant, never an untyped map.
type FilterOp int

const (
	OpEquals FilterOp = iota
	OpIn
	OpNotEquals
)

func (op FilterOp) String() string {
	switch op {
	case OpEquals:
		return "equals"
	case OpIn:
		return "in"
	case OpNotEquals:
		return "not_equals"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// FieldFilter is one predicate over a chunk metadata field.
type FieldFilter struct {
	Field  string
	Op     FilterOp
	Value  string
	Values []string
}

func Equals(field, value string) FieldFilter {
	return FieldFilter{Field: field, Op: OpEquals, Value: value}
}

func In(field string, values []string) FieldFilter {
	return FieldFilter{Field: field, Op: OpIn, Values: values}
}

func NotEquals(field, value string) FieldFilter {
	return FieldFilter{Field: field, Op: OpNotEquals, Value: value}
}
