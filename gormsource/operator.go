package gormsource

import "fmt"

// Operator is a comparison operator of a keyset condition.
type Operator string

const (
	OperatorGT  Operator = ">"
	OperatorLT  Operator = "<"
	OperatorGTE Operator = ">="
	OperatorLTE Operator = "<="

	// operatorEq is only used to pin the leading columns of a keyset
	// disjunct.
	operatorEq Operator = "="
)

// Valid reports whether o may appear in a cursor token. Tokens only carry
// strict operators; inclusiveness is a property of the token itself.
func (o Operator) Valid() bool {
	return o == OperatorLT || o == OperatorGT
}

func (o Operator) ForOrdering() Direction {
	switch o {
	case OperatorGT, OperatorGTE:
		return DirectionASC
	case OperatorLT, OperatorLTE:
		return DirectionDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to ordering", o))
	}
}

// Flip returns the operator selecting rows on the other side of a value.
func (o Operator) Flip() Operator {
	switch o {
	case OperatorGT:
		return OperatorLT
	case OperatorLT:
		return OperatorGT
	case OperatorGTE:
		return OperatorLTE
	case OperatorLTE:
		return OperatorGTE
	default:
		panic(fmt.Errorf("cannot flip operator '%s'", o))
	}
}

// Inclusive returns the non-strict form of a strict operator.
func (o Operator) Inclusive() Operator {
	switch o {
	case OperatorGT, OperatorGTE:
		return OperatorGTE
	case OperatorLT, OperatorLTE:
		return OperatorLTE
	default:
		panic(fmt.Errorf("operator '%s' has no inclusive form", o))
	}
}
