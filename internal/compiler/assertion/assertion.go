// Package assertion implements the Assertion Compiler (§4.6): it turns
// each spec.Assertion into a boolean SQL expression, then wraps it as
// an exception predicate `(E) IS NOT TRUE` — using IS NOT TRUE rather
// than NOT(E) so that a NULL/UNKNOWN comparison result routes to the
// exception side instead of silently vanishing.
package assertion

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/sqlemit"
	"github.com/attestable/controlcore/internal/spec"
)

// Compiled is one assertion's compiled SQL fragment, alongside the
// assertion it came from (carried through so the verdict resolver can
// look up its materiality threshold).
type Compiled struct {
	Assertion          spec.Assertion
	Expression         string // the raw boolean expression E
	ExceptionPredicate string // (E) IS NOT TRUE
}

// CompileAll compiles every assertion in order. All assertions are
// either row-level (ValueMatch/ColumnComparison/TemporalDateMath/
// TemporalSequence) or the lone Aggregation — spec.New already forbids
// mixing the two kinds, so callers may assume homogeneity.
func CompileAll(assertions []spec.Assertion) ([]Compiled, error) {
	slog.Debug("assertion: compiling", "count", len(assertions))
	out := make([]Compiled, len(assertions))
	for i, a := range assertions {
		expr, err := compileOne(a)
		if err != nil {
			return nil, fmt.Errorf("assertion %q: %w", a.AssertionID(), err)
		}
		out[i] = Compiled{Assertion: a, Expression: expr, ExceptionPredicate: "(" + expr + ") IS NOT TRUE"}
	}
	return out, nil
}

// ExceptionPredicates extracts the exception_predicates list from a set
// of compiled row-level assertions — never called for the aggregation
// shape, which has exactly one assertion and uses its Expression
// directly as a HAVING predicate.
func ExceptionPredicates(compiled []Compiled) []string {
	out := make([]string, len(compiled))
	for i, c := range compiled {
		out[i] = c.ExceptionPredicate
	}
	return out
}

// CombineOR joins exception predicates with OR: a row is an exception
// when it violates at least one assertion. Joining with AND would
// under-report — a row would need to violate every assertion at once.
func CombineOR(predicates []string) string {
	return strings.Join(predicates, " OR ")
}

func compileOne(a spec.Assertion) (string, error) {
	switch v := a.(type) {
	case spec.ValueMatch:
		return compileValueMatch(v)
	case spec.ColumnComparison:
		return compileColumnComparison(v)
	case spec.TemporalDateMath:
		return compileTemporalDateMath(v)
	case spec.Aggregation:
		return compileAggregation(v)
	case spec.TemporalSequence:
		return compileTemporalSequence(v)
	default:
		return "", fmt.Errorf("unknown assertion variant %T", a)
	}
}

func compileValueMatch(v spec.ValueMatch) (string, error) {
	field, err := sqlemit.Identifier(v.Field)
	if err != nil {
		return "", err
	}

	if v.Operator.IsListOperator() {
		infix, err := v.Operator.SQLInfix()
		if err != nil {
			return "", err
		}
		if v.IgnoreCaseAndSpace && allStrings(v.ExpectedList) {
			list, err := foldedLiteralList(v.ExpectedList)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR))) %s %s", field, infix, list), nil
		}
		list, err := sqlemit.LiteralList(v.ExpectedList)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", field, infix, list), nil
	}

	if _, isNull := v.ExpectedValue.(ir.Null); isNull {
		if v.Operator == ir.Eq {
			return field + " IS NULL", nil
		}
		return field + " IS NOT NULL", nil
	}

	infix, err := v.Operator.SQLInfix()
	if err != nil {
		return "", err
	}

	_, isString := v.ExpectedValue.(ir.String)
	if v.IgnoreCaseAndSpace && isString {
		lit, err := sqlemit.Literal(v.ExpectedValue)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR))) %s TRIM(UPPER(CAST(%s AS VARCHAR)))", field, infix, lit), nil
	}

	lit, err := sqlemit.Literal(v.ExpectedValue)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", field, infix, lit), nil
}

func compileColumnComparison(v spec.ColumnComparison) (string, error) {
	left, err := sqlemit.Identifier(v.LeftField)
	if err != nil {
		return "", err
	}
	right, err := sqlemit.Identifier(v.RightField)
	if err != nil {
		return "", err
	}
	infix, err := v.Operator.SQLInfix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", left, infix, right), nil
}

func compileTemporalDateMath(v spec.TemporalDateMath) (string, error) {
	base, err := sqlemit.Identifier(v.BaseDateField)
	if err != nil {
		return "", err
	}
	target, err := sqlemit.Identifier(v.TargetDateField)
	if err != nil {
		return "", err
	}
	infix, err := v.Operator.SQLInfix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CAST(%s AS DATE) %s CAST(%s AS DATE) + %s", base, infix, target, sqlemit.Interval(v.OffsetDays)), nil
}

func compileAggregation(v spec.Aggregation) (string, error) {
	metric, err := sqlemit.Identifier(v.MetricField)
	if err != nil {
		return "", err
	}
	infix, err := v.Operator.SQLInfix()
	if err != nil {
		return "", err
	}
	threshold := fmtThreshold(v.Threshold)
	return fmt.Sprintf("%s(%s) %s %s", v.AggregationFunction, metric, infix, threshold), nil
}

// compileTemporalSequence compiles the supplemented TemporalSequence
// assertion into a strict chain of ordered comparisons joined by AND:
// field[0] < field[1] < field[2] < ...
func compileTemporalSequence(v spec.TemporalSequence) (string, error) {
	clauses := make([]string, 0, len(v.EventChain)-1)
	for i := 0; i < len(v.EventChain)-1; i++ {
		left, err := sqlemit.Identifier(v.EventChain[i])
		if err != nil {
			return "", err
		}
		right, err := sqlemit.Identifier(v.EventChain[i+1])
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s < %s", left, right))
	}
	return strings.Join(clauses, " AND "), nil
}

// allStrings reports whether every scalar in values is an ir.String —
// the folded IN/NOT IN rendering only applies to string comparisons,
// mirroring the single-value case/whitespace fold.
func allStrings(values []ir.Scalar) bool {
	for _, v := range values {
		if _, ok := v.(ir.String); !ok {
			return false
		}
	}
	return true
}

// foldedLiteralList renders an IN-list with each element wrapped the
// same TRIM(UPPER(CAST(... AS VARCHAR))) way the field side is, so
// whitespace and case differences in either the evidence column or the
// specification's own list values fold together.
func foldedLiteralList(values []ir.Scalar) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := sqlemit.Literal(v)
		if err != nil {
			return "", fmt.Errorf("sqlemit: list element %d: %w", i, err)
		}
		parts[i] = fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR)))", lit)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func fmtThreshold(threshold float64) string {
	lit, _ := sqlemit.Literal(ir.NewFloat(threshold))
	return lit
}
