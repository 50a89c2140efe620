// Package schema implements the Schema Validator (§4.8): a compile-step
// check, distinct from the analytical engine's own parse/plan pass,
// that every field referenced by a compiled plan resolves against the
// manifest and is used in a type-compatible way. Both this validator
// and the engine's own EXPLAIN must pass before any data is read.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/spec"
)

// DriftError is reported when a field referenced by the pipeline or an
// assertion is not present in the resolved post-join column set. Nearest
// lists up to three actual column names, closest by edit distance.
type DriftError struct {
	Field   string
	Nearest []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("schema: field %q is not present in the evidence schema; nearest: %s", e.Field, strings.Join(e.Nearest, ", "))
}

// TypeMismatchError is reported when a field is used in a way its logical
// type cannot support — a numeric comparison against a string column,
// or date arithmetic against a string column.
type TypeMismatchError struct {
	Field     string
	Operation string
	Actual    manifest.LogicalType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("schema: field %q (type %s) cannot support %s", e.Field, e.Actual, e.Operation)
}

// columnSet is the resolved post-join column vocabulary a specification
// may reference: a flat map of unqualified names (as they appear in the
// final SELECT * output) plus a map of dataset-qualified names (as they
// appeared before being folded into a join).
type columnSet struct {
	flat      map[string]manifest.LogicalType
	qualified map[string]manifest.LogicalType
}

func buildColumnSet(pop spec.Population, man *manifest.Manifest) (*columnSet, error) {
	set := &columnSet{flat: map[string]manifest.LogicalType{}, qualified: map[string]manifest.LogicalType{}}

	if err := addDataset(set, pop.BaseDataset, nil, man); err != nil {
		return nil, err
	}

	for _, step := range pop.Steps {
		join, ok := step.Action.(spec.JoinLeft)
		if !ok {
			continue
		}
		excluded := make(map[string]struct{}, len(join.RightKeys))
		for _, k := range join.RightKeys {
			excluded[k] = struct{}{}
		}
		if err := addDataset(set, join.RightDataset, excluded, man); err != nil {
			return nil, err
		}
	}

	return set, nil
}

func addDataset(set *columnSet, alias ir.DatasetAlias, excluded map[string]struct{}, man *manifest.Manifest) error {
	cols, err := man.ColumnsOf(alias)
	if err != nil {
		return err
	}
	for _, col := range cols {
		set.qualified[string(alias)+"."+col.Name] = col.LogicalType
		if _, skip := excluded[col.Name]; skip {
			continue
		}
		set.flat[col.Name] = col.LogicalType
	}
	return nil
}

func (s *columnSet) resolve(field string) (manifest.LogicalType, bool) {
	ref := ir.ParseColumnRef(field)
	if ref.IsQualified() {
		t, ok := s.qualified[string(ref.Alias)+"."+ref.Column]
		return t, ok
	}
	t, ok := s.flat[field]
	return t, ok
}

func (s *columnSet) names() []string {
	names := make([]string, 0, len(s.flat))
	for name := range s.flat {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate resolves every field referenced by a specification's
// pipeline and assertions against man, and checks coarse type
// compatibility. It returns the first DriftError or TypeMismatchError
// encountered, or nil if the specification is fully resolvable.
func Validate(cs *spec.ControlSpec, man *manifest.Manifest) error {
	set, err := buildColumnSet(cs.Population, man)
	if err != nil {
		return err
	}

	for _, step := range cs.Population.Steps {
		switch action := step.Action.(type) {
		case spec.FilterComparison:
			if err := checkFilterComparison(set, action); err != nil {
				return err
			}
		case spec.FilterInList:
			if err := checkResolvable(set, action.Field); err != nil {
				return err
			}
		case spec.FilterIsNull:
			if err := checkResolvable(set, action.Field); err != nil {
				return err
			}
		case spec.JoinLeft:
			for _, k := range action.LeftKeys {
				if err := checkResolvable(set, k); err != nil {
					return err
				}
			}
		}
	}

	for _, a := range cs.Assertions {
		if err := checkAssertion(set, a); err != nil {
			return err
		}
	}

	return nil
}

func checkFilterComparison(set *columnSet, f spec.FilterComparison) error {
	t, ok := set.resolve(f.Field)
	if !ok {
		return driftFor(set, f.Field)
	}
	if _, isNull := f.Value.(ir.Null); isNull {
		return nil
	}
	if isNumericScalar(f.Value) && t == manifest.TypeString {
		return &TypeMismatchError{Field: f.Field, Operation: "numeric comparison", Actual: t}
	}
	return nil
}

func checkAssertion(set *columnSet, a spec.Assertion) error {
	switch v := a.(type) {
	case spec.ValueMatch:
		t, ok := set.resolve(v.Field)
		if !ok {
			return driftFor(set, v.Field)
		}
		if !v.Operator.IsListOperator() {
			if isNumericScalar(v.ExpectedValue) && t == manifest.TypeString {
				return &TypeMismatchError{Field: v.Field, Operation: "numeric comparison", Actual: t}
			}
		}
		return nil

	case spec.ColumnComparison:
		if err := checkResolvable(set, v.LeftField); err != nil {
			return err
		}
		return checkResolvable(set, v.RightField)

	case spec.TemporalDateMath:
		baseType, ok := set.resolve(v.BaseDateField)
		if !ok {
			return driftFor(set, v.BaseDateField)
		}
		if baseType == manifest.TypeString {
			return &TypeMismatchError{Field: v.BaseDateField, Operation: "date arithmetic", Actual: baseType}
		}
		targetType, ok := set.resolve(v.TargetDateField)
		if !ok {
			return driftFor(set, v.TargetDateField)
		}
		if targetType == manifest.TypeString {
			return &TypeMismatchError{Field: v.TargetDateField, Operation: "date arithmetic", Actual: targetType}
		}
		return nil

	case spec.Aggregation:
		for _, f := range v.GroupByFields {
			if err := checkResolvable(set, f); err != nil {
				return err
			}
		}
		t, ok := set.resolve(v.MetricField)
		if !ok {
			return driftFor(set, v.MetricField)
		}
		if t == manifest.TypeString && (v.AggregationFunction == spec.AggSum || v.AggregationFunction == spec.AggAvg) {
			return &TypeMismatchError{Field: v.MetricField, Operation: fmt.Sprintf("%s aggregation", v.AggregationFunction), Actual: t}
		}
		return nil

	case spec.TemporalSequence:
		for _, f := range v.EventChain {
			t, ok := set.resolve(f)
			if !ok {
				return driftFor(set, f)
			}
			if t == manifest.TypeString {
				return &TypeMismatchError{Field: f, Operation: "date arithmetic", Actual: t}
			}
		}
		return nil

	default:
		return fmt.Errorf("schema: unknown assertion variant %T", a)
	}
}

func checkResolvable(set *columnSet, field string) error {
	if _, ok := set.resolve(field); !ok {
		return driftFor(set, field)
	}
	return nil
}

func driftFor(set *columnSet, field string) error {
	return &DriftError{Field: field, Nearest: nearest(field, set.names(), 3)}
}

func isNumericScalar(s ir.Scalar) bool {
	switch s.(type) {
	case ir.Int, ir.Float:
		return true
	default:
		return false
	}
}

// nearest returns up to n candidate names ordered by ascending
// Levenshtein edit distance to field.
func nearest(field string, candidates []string, n int) []string {
	type scored struct {
		name string
		dist int
	}
	scoredNames := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredNames[i] = scored{name: c, dist: editDistance(field, c)}
	}
	sort.SliceStable(scoredNames, func(i, j int) bool { return scoredNames[i].dist < scoredNames[j].dist })
	if len(scoredNames) > n {
		scoredNames = scoredNames[:n]
	}
	out := make([]string, len(scoredNames))
	for i, s := range scoredNames {
		out[i] = s.name
	}
	return out
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
