package spec

import (
	"github.com/attestable/controlcore/internal/ir"
)

// AggregationFunction is the closed set of aggregate functions an
// Aggregation assertion may apply to its metric field.
type AggregationFunction string

const (
	AggSum   AggregationFunction = "SUM"
	AggCount AggregationFunction = "COUNT"
	AggAvg   AggregationFunction = "AVG"
	AggMin   AggregationFunction = "MIN"
	AggMax   AggregationFunction = "MAX"
)

func (f AggregationFunction) valid() bool {
	switch f {
	case AggSum, AggCount, AggAvg, AggMin, AggMax:
		return true
	default:
		return false
	}
}

// Assertion is a sealed interface over the five assertion variants:
// ValueMatch, ColumnComparison, TemporalDateMath, Aggregation, and
// TemporalSequence. Every assertion carries an id, a human description,
// and a materiality threshold.
type Assertion interface {
	assertionNode()
	AssertionID() string
	Description() string
	MaterialityThresholdPercent() float64
}

// AssertionBase holds the fields common to every assertion variant.
// Embedded by each concrete type so Assertion's accessor methods need
// writing only once.
type AssertionBase struct {
	ID          string
	Desc        string
	Materiality float64
}

func (b AssertionBase) AssertionID() string                  { return b.ID }
func (b AssertionBase) Description() string                  { return b.Desc }
func (b AssertionBase) MaterialityThresholdPercent() float64 { return b.Materiality }

func validateBase(path string, base AssertionBase) error {
	if base.ID == "" {
		return invalid(path+".assertion_id", "assertion_id is required")
	}
	if base.Materiality < 0 || base.Materiality > 100 {
		return invalid(path+".materiality_threshold_percent", "must be within [0, 100], got %v", base.Materiality)
	}
	return nil
}

// ValueMatch asserts that field compares against a single expected
// scalar (the first six operators) or a list (in/not_in).
type ValueMatch struct {
	AssertionBase
	Field              string
	Operator           ir.Operator
	ExpectedValue      ir.Scalar   // set when Operator is not a list operator
	ExpectedList       []ir.Scalar // set when Operator is in/not_in
	IgnoreCaseAndSpace bool
}

func (ValueMatch) assertionNode() {}

// NewValueMatch validates and constructs a ValueMatch assertion.
func NewValueMatch(path string, base AssertionBase, field string, op ir.Operator, expectedValue ir.Scalar, expectedList []ir.Scalar, ignoreCaseAndSpace bool) (ValueMatch, error) {
	if err := validateBase(path, base); err != nil {
		return ValueMatch{}, err
	}
	if field == "" {
		return ValueMatch{}, invalid(path+".field", "field is required")
	}
	if !op.Valid() {
		return ValueMatch{}, invalid(path+".operator", "unknown operator %q", op)
	}

	if op.IsListOperator() {
		if len(expectedList) == 0 {
			return ValueMatch{}, invalid(path+".expected_value", "operator %q requires a non-empty list value", op)
		}
		for _, v := range expectedList {
			if _, isNull := v.(ir.Null); isNull {
				return ValueMatch{}, invalid(path+".expected_value", "null is not permitted inside a list value")
			}
		}
		return ValueMatch{AssertionBase: base, Field: field, Operator: op, ExpectedList: expectedList, IgnoreCaseAndSpace: ignoreCaseAndSpace}, nil
	}

	if expectedList != nil {
		return ValueMatch{}, invalid(path+".expected_value", "an ordered comparison must not use a list value")
	}
	if _, isNull := expectedValue.(ir.Null); isNull && !op.IsEquality() {
		return ValueMatch{}, invalid(path+".expected_value", "null expected_value requires eq or neq operator, got %q", op)
	}
	return ValueMatch{AssertionBase: base, Field: field, Operator: op, ExpectedValue: expectedValue, IgnoreCaseAndSpace: ignoreCaseAndSpace}, nil
}

// ColumnComparison asserts an ordered comparison between two fields of
// the same row.
type ColumnComparison struct {
	AssertionBase
	LeftField  string
	Operator   ir.Operator
	RightField string
}

func (ColumnComparison) assertionNode() {}

// NewColumnComparison validates and constructs a ColumnComparison assertion.
func NewColumnComparison(path string, base AssertionBase, left string, op ir.Operator, right string) (ColumnComparison, error) {
	if err := validateBase(path, base); err != nil {
		return ColumnComparison{}, err
	}
	if left == "" {
		return ColumnComparison{}, invalid(path+".left_field", "left_field is required")
	}
	if right == "" {
		return ColumnComparison{}, invalid(path+".right_field", "right_field is required")
	}
	if !isComparisonOperator(op) {
		return ColumnComparison{}, invalid(path+".operator", "operator %q is not an ordered comparison", op)
	}
	return ColumnComparison{AssertionBase: base, LeftField: left, Operator: op, RightField: right}, nil
}

// TemporalDateMath asserts an ordered relationship between a base date
// field and a target date field shifted by a (possibly negative) number
// of days.
type TemporalDateMath struct {
	AssertionBase
	BaseDateField   string
	Operator        ir.Operator
	TargetDateField string
	OffsetDays      int
}

func (TemporalDateMath) assertionNode() {}

// NewTemporalDateMath validates and constructs a TemporalDateMath assertion.
func NewTemporalDateMath(path string, base AssertionBase, baseDateField string, op ir.Operator, targetDateField string, offsetDays int) (TemporalDateMath, error) {
	if err := validateBase(path, base); err != nil {
		return TemporalDateMath{}, err
	}
	if baseDateField == "" {
		return TemporalDateMath{}, invalid(path+".base_date_field", "base_date_field is required")
	}
	if targetDateField == "" {
		return TemporalDateMath{}, invalid(path+".target_date_field", "target_date_field is required")
	}
	if !isMonotoneComparisonOperator(op) {
		return TemporalDateMath{}, invalid(path+".operator", "operator %q must be one of eq, gt, gte, lt, lte", op)
	}
	return TemporalDateMath{AssertionBase: base, BaseDateField: baseDateField, Operator: op, TargetDateField: targetDateField, OffsetDays: offsetDays}, nil
}

// Aggregation asserts a group-level metric against a threshold. At most
// one Aggregation assertion may appear in a specification, and it cannot
// coexist with any row-level assertion — see spec.New.
type Aggregation struct {
	AssertionBase
	GroupByFields       []string
	MetricField         string
	AggregationFunction AggregationFunction
	Operator            ir.Operator
	Threshold           float64
}

func (Aggregation) assertionNode() {}

// NewAggregation validates and constructs an Aggregation assertion.
func NewAggregation(path string, base AssertionBase, groupBy []string, metricField string, fn AggregationFunction, op ir.Operator, threshold float64) (Aggregation, error) {
	if err := validateBase(path, base); err != nil {
		return Aggregation{}, err
	}
	if len(groupBy) == 0 {
		return Aggregation{}, invalid(path+".group_by_fields", "group_by_fields must be non-empty")
	}
	if metricField == "" {
		return Aggregation{}, invalid(path+".metric_field", "metric_field is required")
	}
	if !fn.valid() {
		return Aggregation{}, invalid(path+".aggregation_function", "unknown aggregation function %q", fn)
	}
	if !isMonotoneComparisonOperator(op) {
		return Aggregation{}, invalid(path+".operator", "operator %q must be one of eq, gt, gte, lt, lte", op)
	}
	return Aggregation{AssertionBase: base, GroupByFields: groupBy, MetricField: metricField, AggregationFunction: fn, Operator: op, Threshold: threshold}, nil
}

// TemporalSequence asserts a strict chained ordering across >= 2 fields:
// EventChain[0] < EventChain[1] < EventChain[2] < …
//
// Supplemented from original_source/src/models/dsl.py, which the
// distilled spec dropped; nothing in the Non-goals excludes it.
type TemporalSequence struct {
	AssertionBase
	EventChain []string
}

func (TemporalSequence) assertionNode() {}

// NewTemporalSequence validates and constructs a TemporalSequence assertion.
func NewTemporalSequence(path string, base AssertionBase, eventChain []string) (TemporalSequence, error) {
	if err := validateBase(path, base); err != nil {
		return TemporalSequence{}, err
	}
	if len(eventChain) < 2 {
		return TemporalSequence{}, invalid(path+".event_chain", "event_chain must name at least two fields, got %d", len(eventChain))
	}
	for i, f := range eventChain {
		if f == "" {
			return TemporalSequence{}, invalid(path+".event_chain", "event_chain[%d] is empty", i)
		}
	}
	return TemporalSequence{AssertionBase: base, EventChain: eventChain}, nil
}

// IsAggregation reports whether a is the Aggregation variant — used by
// spec.New to enforce the aggregation/row-level exclusivity invariant
// and by the query assembler to pick a query shape.
func IsAggregation(a Assertion) bool {
	_, ok := a.(Aggregation)
	return ok
}
