package spec

import (
	"github.com/attestable/controlcore/internal/ir"
)

// StepAction is a sealed interface over the four pipeline step variants.
// Only FilterComparison, FilterInList, FilterIsNull, and JoinLeft
// implement it.
type StepAction interface {
	stepAction()
}

// FilterComparison narrows the current rowset by comparing a field
// against a literal scalar. Operator is restricted to the six ordered
// comparisons (eq/neq/gt/gte/lt/lte) — it never sees in/not_in.
type FilterComparison struct {
	Field    string
	Operator ir.Operator
	Value    ir.Scalar
}

func (FilterComparison) stepAction() {}

// FilterInList narrows the current rowset to rows whose field matches
// one of Values (non-empty).
type FilterInList struct {
	Field  string
	Values []ir.Scalar
}

func (FilterInList) stepAction() {}

// FilterIsNull narrows the current rowset on the nullness of a field.
type FilterIsNull struct {
	Field  string
	IsNull bool
}

func (FilterIsNull) stepAction() {}

// JoinLeft left-joins another dataset into the current rowset on a
// composite key. len(LeftKeys) == len(RightKeys) >= 1.
type JoinLeft struct {
	LeftDataset  ir.DatasetAlias
	RightDataset ir.DatasetAlias
	LeftKeys     []string
	RightKeys    []string
}

func (JoinLeft) stepAction() {}

// Step pairs a unique step_id with its action. step_id also names the
// CTE the pipeline compiler emits for join steps.
type Step struct {
	StepID string
	Action StepAction
}

// Population is the pipeline fragment of a Control Specification: a
// base dataset, an ordered list of steps applied to it, and an optional
// sampling strategy.
type Population struct {
	BaseDataset ir.DatasetAlias
	Steps       []Step
	Sampling    *SamplingStrategy
}

// NewFilterComparison validates and constructs a FilterComparison step
// action. Operator must be one of the six ordered comparisons; a null
// Value is only admissible with eq/neq — any other operator against
// null is rejected (the compiler never sees an invalid combination, it
// rewrites eq/neq-against-null to IS NULL/IS NOT NULL itself).
func NewFilterComparison(path, field string, op ir.Operator, value ir.Scalar) (FilterComparison, error) {
	if field == "" {
		return FilterComparison{}, invalid(path+".field", "field is required")
	}
	if !isComparisonOperator(op) {
		return FilterComparison{}, invalid(path+".operator", "operator %q is not an ordered comparison", op)
	}
	if _, isNull := value.(ir.Null); isNull && !op.IsEquality() {
		return FilterComparison{}, invalid(path+".value", "null value requires eq or neq operator, got %q", op)
	}
	return FilterComparison{Field: field, Operator: op, Value: value}, nil
}

// NewFilterInList validates and constructs a FilterInList step action.
func NewFilterInList(path, field string, values []ir.Scalar) (FilterInList, error) {
	if field == "" {
		return FilterInList{}, invalid(path+".field", "field is required")
	}
	if len(values) == 0 {
		return FilterInList{}, invalid(path+".values", "values must be non-empty")
	}
	return FilterInList{Field: field, Values: values}, nil
}

// NewFilterIsNull constructs a FilterIsNull step action.
func NewFilterIsNull(path, field string, isNull bool) (FilterIsNull, error) {
	if field == "" {
		return FilterIsNull{}, invalid(path+".field", "field is required")
	}
	return FilterIsNull{Field: field, IsNull: isNull}, nil
}

// NewJoinLeft validates and constructs a JoinLeft step action.
func NewJoinLeft(path string, left, right ir.DatasetAlias, leftKeys, rightKeys []string) (JoinLeft, error) {
	if left == "" {
		return JoinLeft{}, invalid(path+".left_dataset", "left_dataset is required")
	}
	if right == "" {
		return JoinLeft{}, invalid(path+".right_dataset", "right_dataset is required")
	}
	if len(leftKeys) == 0 {
		return JoinLeft{}, invalid(path+".left_keys", "left_keys must be non-empty")
	}
	if len(leftKeys) != len(rightKeys) {
		return JoinLeft{}, invalid(path+".right_keys", "left_keys and right_keys must have equal length, got %d and %d", len(leftKeys), len(rightKeys))
	}
	return JoinLeft{LeftDataset: left, RightDataset: right, LeftKeys: leftKeys, RightKeys: rightKeys}, nil
}

func isComparisonOperator(op ir.Operator) bool {
	for _, c := range ir.ComparisonOperators() {
		if c == op {
			return true
		}
	}
	return false
}

// isMonotoneComparisonOperator reports whether op is one of
// {eq, gt, gte, lt, lte} — the narrower operator set TemporalDateMath
// and Aggregation admit. Both compare a single numeric/date axis, where
// "not equal" carries no materiality signal the way it does for
// ColumnComparison or FilterComparison.
func isMonotoneComparisonOperator(op ir.Operator) bool {
	switch op {
	case ir.Eq, ir.Gt, ir.Gte, ir.Lt, ir.Lte:
		return true
	default:
		return false
	}
}
