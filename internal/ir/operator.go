package ir

import "fmt"

// Operator is the closed set of comparison operators usable across
// filters and assertions. Not every operator is admissible in every
// context — FilterComparison and ColumnComparison never see In/NotIn,
// for instance — callers enforce that narrower admissibility themselves;
// Operator only fixes the total set and its SQL rendering.
type Operator string

const (
	Eq    Operator = "eq"
	Neq   Operator = "neq"
	Gt    Operator = "gt"
	Gte   Operator = "gte"
	Lt    Operator = "lt"
	Lte   Operator = "lte"
	In    Operator = "in"
	NotIn Operator = "not_in"
)

// orderedOperators fixes the total ordering referenced by the value
// model: every operator appears here exactly once, in the order the
// comparison operators are introduced by the Data Model (eq, neq, gt,
// gte, lt, lte) followed by the list operators (in, not_in).
var orderedOperators = []Operator{Eq, Neq, Gt, Gte, Lt, Lte, In, NotIn}

// sqlInfix maps each operator to its SQL infix spelling. In/NotIn are
// rendered specially by the emitter (they take a parenthesized list, not
// a single right-hand operand) and are included here only so every
// operator in the enum has a defined mapping.
var sqlInfix = map[Operator]string{
	Eq:    "=",
	Neq:   "<>",
	Gt:    ">",
	Gte:   ">=",
	Lt:    "<",
	Lte:   "<=",
	In:    "IN",
	NotIn: "NOT IN",
}

// Valid reports whether o is one of the defined operators.
func (o Operator) Valid() bool {
	_, ok := sqlInfix[o]
	return ok
}

// SQLInfix returns the SQL infix spelling of o.
func (o Operator) SQLInfix() (string, error) {
	infix, ok := sqlInfix[o]
	if !ok {
		return "", fmt.Errorf("unknown operator %q", string(o))
	}
	return infix, nil
}

// IsListOperator reports whether o takes a list right-hand side (in,
// not_in) rather than a single scalar.
func (o Operator) IsListOperator() bool {
	return o == In || o == NotIn
}

// IsEquality reports whether o is eq or neq — the only two operators
// admissible against a null operand.
func (o Operator) IsEquality() bool {
	return o == Eq || o == Neq
}

// OrderedOperators returns every defined operator in the enum's fixed
// total order.
func OrderedOperators() []Operator {
	out := make([]Operator, len(orderedOperators))
	copy(out, orderedOperators)
	return out
}

// ComparisonOperators returns the six ordered-comparison operators (the
// set admissible for FilterComparison, ColumnComparison, TemporalDateMath,
// and Aggregation), excluding the list-only operators.
func ComparisonOperators() []Operator {
	return []Operator{Eq, Neq, Gt, Gte, Lt, Lte}
}

// ScalarAdmits reports whether operator o may be applied to a scalar of
// kind s's underlying type, independent of whether s is itself null —
// null admissibility is a separate, per-assertion construction-time rule
// enforced by the caller (see internal/spec).
func ScalarAdmits(s Scalar, o Operator) bool {
	if !o.Valid() {
		return false
	}
	if o.IsListOperator() {
		return true
	}
	switch s.(type) {
	case String, Int, Float, Bool, Date, Timestamp, Null:
		return true
	default:
		return false
	}
}
