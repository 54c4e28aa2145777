package gormsource

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

type (
	tConjunct struct {
		Column   string
		Value    any
		Operator Operator
	}

	tDisjunct []tConjunct

	// tDNF is a keyset condition in disjunctive normal form: disjuncts are
	// joined by OR, the conjuncts of a disjunct by AND.
	//
	//	DNF = X1 OR X2 ... OR Xn, where Xi = Ai1 AND Ai2 ... AND Aim.
	tDNF []tDisjunct
)

// toGORMExpression renders the conjunct as "Column Operator ?".
func (c tConjunct) toGORMExpression() clause.Expression {
	return clause.Expr{
		SQL:  fmt.Sprintf("%s %s ?", c.Column, c.Operator),
		Vars: []any{parseAnyValue(c.Value)},
	}
}

// parseAnyValue restores values that lost their type in the JSON encoding of
// a cursor: timestamps come back as strings and numbers as json.Number.
func parseAnyValue(v any) any {
	fnParseBytesToTimeOrValue := func(vBytes []byte) any {
		dst := time.Time{}
		if err := dst.UnmarshalText(vBytes); err == nil {
			return dst
		}

		return v
	}

	switch vt := v.(type) {
	case string:
		return fnParseBytesToTimeOrValue([]byte(vt))
	case []byte:
		return fnParseBytesToTimeOrValue(vt)
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i
		}
		if f, err := vt.Float64(); err == nil {
			return f
		}

		return vt.String()
	default:
		return v
	}
}

// toGORMExpression joins the conjuncts with AND. Returns nil for an empty
// disjunct.
func (d tDisjunct) toGORMExpression() clause.Expression {
	andExpressions := make([]clause.Expression, 0, len(d))
	for _, conjunct := range d {
		andExpressions = append(andExpressions, conjunct.toGORMExpression())
	}

	switch len(andExpressions) {
	case 0:
		return nil
	case 1:
		return andExpressions[0]
	default:
		return clause.And(andExpressions...)
	}
}

// toGORMExpression joins the disjuncts with OR. Returns nil when there is
// nothing to filter on.
func (d tDNF) toGORMExpression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(d))
	for _, disjunct := range d {
		if exp := disjunct.toGORMExpression(); exp != nil {
			orExpressions = append(orExpressions, exp)
		}
	}

	switch len(orExpressions) {
	case 0:
		return nil
	case 1:
		return orExpressions[0]
	default:
		return clause.Or(orExpressions...)
	}
}
