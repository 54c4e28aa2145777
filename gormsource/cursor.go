package gormsource

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

var _encoder = base64.RawURLEncoding

// Cursor is a keyset position in an ordered dataset. An empty cursor denotes
// the start of the data.
//
// IMPORTANT:
// The orderings a cursor is built for must end with a unique column,
// otherwise rows sharing the same sort values may be skipped or repeated.
//
// A cursor holds one condition per ordering column:
//
//	[(C1, O1, V1), (C2, O2, V2)... (Cn, On, Vn)]
//
// Forward cursors select rows after the position, backward cursors select rows
// before it, nearest first. Inclusive cursors also select the row at the
// position itself.
type Cursor struct {
	elements  []CursorElement
	backward  bool
	inclusive bool
}

// CursorElement is a (column, value, operator) condition of a Cursor.
type CursorElement struct {
	Column   string   `json:"c"`
	Value    any      `json:"v"`
	Operator Operator `json:"o"`
}

type cursorPayload struct {
	Elements  []CursorElement `json:"e"`
	Backward  bool            `json:"b,omitempty"`
	Inclusive bool            `json:"i,omitempty"`
}

func NewCursor(elements ...CursorElement) *Cursor {
	return &Cursor{
		elements: elements,
	}
}

// DecodeCursor parses a token produced by Cursor.String. An empty token
// decodes to a nil cursor.
func DecodeCursor(b64String string) (*Cursor, error) {
	if len(b64String) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(b64String)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 encoded cursor: %w", err)
	}

	var payload cursorPayload
	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()
	if err = decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json encoded cursor: %w", err)
	}

	return &Cursor{
		elements:  payload.Elements,
		backward:  payload.Backward,
		inclusive: payload.Inclusive,
	}, nil
}

// String - implements fmt.Stringer. Returns the opaque token of the cursor.
func (c *Cursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	jTok, err := json.Marshal(cursorPayload{
		Elements:  c.elements,
		Backward:  c.backward,
		Inclusive: c.inclusive,
	})
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor value: %w", err))
	}

	return _encoder.EncodeToString(jTok)
}

func (c *Cursor) IsEmpty() bool {
	return c == nil || len(c.elements) == 0
}

func (c *Cursor) IsBackward() bool {
	return c != nil && c.backward
}

func (c *Cursor) IsInclusive() bool {
	return c != nil && c.inclusive
}

// GetElements returns the compressed conditions of the cursor. They are not
// a complete filter on their own, see Apply.
func (c *Cursor) GetElements() []CursorElement {
	if c == nil {
		return nil
	}

	return c.elements
}

// WithBackward marks the cursor as selecting rows before the position.
func (c *Cursor) WithBackward(backward bool) *Cursor {
	if c == nil {
		c = new(Cursor)
	}

	c.backward = backward

	return c
}

// WithInclusive makes the cursor select the row at the position too.
func (c *Cursor) WithInclusive(inclusive bool) *Cursor {
	if c == nil {
		c = new(Cursor)
	}

	c.inclusive = inclusive

	return c
}

// Apply adds the keyset filter of the cursor to a gorm query.
func (c *Cursor) Apply(db *gorm.DB) *gorm.DB {
	exp := c.toDNF().toGORMExpression()
	if exp == nil {
		return db
	}

	return db.Clauses(exp)
}

// toDNF inflates the cursor conditions into a complete filter:
//
//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) ... OR (C1 = V1 AND ... AND Cn On Vn)
//
// For an inclusive cursor the last operator is made non-strict.
func (c *Cursor) toDNF() tDNF {
	if c.IsEmpty() {
		return nil
	}

	last := len(c.elements) - 1
	dnf := make(tDNF, 0, len(c.elements))
	for i, element := range c.elements {
		disjunct := make(tDisjunct, 0, i+1)
		disjunct = append(disjunct, lo.Map(c.elements[:i], func(item CursorElement, _ int) tConjunct {
			return item.toConjunctWithEqualityCondition()
		})...)

		conjunct := tConjunct(element)
		if c.inclusive && i == last {
			conjunct.Operator = conjunct.Operator.Inclusive()
		}

		dnf = append(dnf, append(disjunct, conjunct))
	}

	return dnf
}

// validate checks that the cursor was built for orderings.
func (c *Cursor) validate(orderings Orderings) error {
	if c.IsEmpty() {
		return nil
	}

	if len(c.elements) != len(orderings) {
		return fmt.Errorf("cursor column number mismatch")
	}

	for i, cond := range c.elements {
		orderBy := orderings[i]

		if cond.Column != orderBy.Column {
			return fmt.Errorf("unexpected cursor column '%s'", cond.Column)
		}

		expected := orderBy.Direction.ForOperator()
		if c.backward {
			expected = expected.Flip()
		}

		if !cond.Operator.Valid() {
			return fmt.Errorf("invalid cursor operator '%s'", cond.Operator)
		} else if cond.Operator != expected {
			return fmt.Errorf("unexpected cursor operator '%s'", cond.Operator)
		}
	}

	return nil
}

func (c *CursorElement) toConjunctWithEqualityCondition() tConjunct {
	return tConjunct{
		Column:   c.Column,
		Value:    c.Value,
		Operator: operatorEq,
	}
}

var _ fmt.Stringer = (*Cursor)(nil)

// Getters maps ordering columns to functions reading the column value from a
// row. Every ordering column needs a getter.
//
//	gormsource.Getters[models.User]{
//		"id":         func(u models.User) any { return u.ID },
//		"created_at": func(u models.User) any { return u.CreatedAt },
//	}
type Getters[T any] map[string]func(T) any

func (g Getters[T]) validate(orderings Orderings) error {
	for _, orderBy := range orderings {
		if _, ok := g[orderBy.Column]; !ok {
			return fmt.Errorf("cannot find getter for column '%s' met in ordering", orderBy.Column)
		}
	}

	return nil
}

// cursorAt builds a cursor positioned at row.
func cursorAt[T any](orderings Orderings, getters Getters[T], row T, backward, inclusive bool) *Cursor {
	ret := &Cursor{
		elements:  make([]CursorElement, 0, len(orderings)),
		backward:  backward,
		inclusive: inclusive,
	}

	for _, orderBy := range orderings {
		operator := orderBy.Direction.ForOperator()
		if backward {
			operator = operator.Flip()
		}

		ret.elements = append(ret.elements, CursorElement{
			Column:   orderBy.Column,
			Value:    getters[orderBy.Column](row),
			Operator: operator,
		})
	}

	return ret
}
