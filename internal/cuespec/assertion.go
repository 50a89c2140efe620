package cuespec

import (
	"cuelang.org/go/cue"

	"github.com/attestable/controlcore/internal/spec"
)

func compileAssertions(v cue.Value) ([]spec.Assertion, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []spec.Assertion
	for i := 0; iter.Next(); i++ {
		a, err := compileAssertion(iter.Value(), indexPath("assertions", i))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func compileAssertionBase(v cue.Value) (spec.AssertionBase, error) {
	id, err := lookupString(v, "assertion_id")
	if err != nil {
		return spec.AssertionBase{}, err
	}
	desc, err := lookupString(v, "description")
	if err != nil {
		return spec.AssertionBase{}, err
	}
	materialityVal, err := requireField(v, "materiality_threshold_percent")
	if err != nil {
		return spec.AssertionBase{}, err
	}
	materiality, err := materialityVal.Float64()
	if err != nil {
		return spec.AssertionBase{}, formatCUEError(err)
	}
	return spec.AssertionBase{ID: id, Desc: desc, Materiality: materiality}, nil
}

func compileAssertion(v cue.Value, path string) (spec.Assertion, error) {
	kind, err := lookupString(v, "type")
	if err != nil {
		return nil, err
	}
	base, err := compileAssertionBase(v)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "value_match":
		field, err := lookupString(v, "field")
		if err != nil {
			return nil, err
		}
		opVal, err := requireField(v, "operator")
		if err != nil {
			return nil, err
		}
		op, err := compileOperator(opVal)
		if err != nil {
			return nil, err
		}

		var ignoreCaseAndSpace bool
		if icsVal := v.LookupPath(cue.ParsePath("ignore_case_and_space")); icsVal.Exists() {
			ignoreCaseAndSpace, err = icsVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}

		if op.IsListOperator() {
			listVal, err := requireField(v, "expected_list")
			if err != nil {
				return nil, err
			}
			list, err := compileScalarList(listVal)
			if err != nil {
				return nil, err
			}
			return spec.NewValueMatch(path, base, field, op, nil, list, ignoreCaseAndSpace)
		}

		expectedVal, err := requireField(v, "expected_value")
		if err != nil {
			return nil, err
		}
		expected, err := compileScalar(expectedVal)
		if err != nil {
			return nil, err
		}
		return spec.NewValueMatch(path, base, field, op, expected, nil, ignoreCaseAndSpace)

	case "column_comparison":
		left, err := lookupString(v, "left_field")
		if err != nil {
			return nil, err
		}
		opVal, err := requireField(v, "operator")
		if err != nil {
			return nil, err
		}
		op, err := compileOperator(opVal)
		if err != nil {
			return nil, err
		}
		right, err := lookupString(v, "right_field")
		if err != nil {
			return nil, err
		}
		return spec.NewColumnComparison(path, base, left, op, right)

	case "temporal_date_math":
		baseDateField, err := lookupString(v, "base_date_field")
		if err != nil {
			return nil, err
		}
		opVal, err := requireField(v, "operator")
		if err != nil {
			return nil, err
		}
		op, err := compileOperator(opVal)
		if err != nil {
			return nil, err
		}
		targetDateField, err := lookupString(v, "target_date_field")
		if err != nil {
			return nil, err
		}
		var offsetDays int
		if offsetVal := v.LookupPath(cue.ParsePath("offset_days")); offsetVal.Exists() {
			n, err := offsetVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			offsetDays = int(n)
		}
		return spec.NewTemporalDateMath(path, base, baseDateField, op, targetDateField, offsetDays)

	case "aggregation":
		groupByVal, err := requireField(v, "group_by_fields")
		if err != nil {
			return nil, err
		}
		groupBy, err := compileStringList(groupByVal)
		if err != nil {
			return nil, err
		}
		metricField, err := lookupString(v, "metric_field")
		if err != nil {
			return nil, err
		}
		fn, err := lookupString(v, "aggregation_function")
		if err != nil {
			return nil, err
		}
		opVal, err := requireField(v, "operator")
		if err != nil {
			return nil, err
		}
		op, err := compileOperator(opVal)
		if err != nil {
			return nil, err
		}
		thresholdVal, err := requireField(v, "threshold")
		if err != nil {
			return nil, err
		}
		threshold, err := thresholdVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return spec.NewAggregation(path, base, groupBy, metricField, spec.AggregationFunction(fn), op, threshold)

	case "temporal_sequence":
		chainVal, err := requireField(v, "event_chain")
		if err != nil {
			return nil, err
		}
		chain, err := compileStringList(chainVal)
		if err != nil {
			return nil, err
		}
		return spec.NewTemporalSequence(path, base, chain)

	default:
		return nil, &CompileError{Field: path + ".type", Message: "unknown assertion type " + kind, Pos: v.Pos()}
	}
}
