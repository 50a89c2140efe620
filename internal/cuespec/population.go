package cuespec

import (
	"cuelang.org/go/cue"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/spec"
)

func compilePopulation(v cue.Value) (spec.Population, error) {
	baseDataset, err := lookupString(v, "base_dataset")
	if err != nil {
		return spec.Population{}, err
	}

	var steps []spec.Step
	if stepsVal := v.LookupPath(cue.ParsePath("steps")); stepsVal.Exists() {
		steps, err = compileSteps(stepsVal)
		if err != nil {
			return spec.Population{}, err
		}
	}

	var sampling *spec.SamplingStrategy
	if samplingVal := v.LookupPath(cue.ParsePath("sampling")); samplingVal.Exists() {
		sampling, err = compileSampling(samplingVal)
		if err != nil {
			return spec.Population{}, err
		}
	}

	return spec.Population{
		BaseDataset: ir.DatasetAlias(baseDataset),
		Steps:       steps,
		Sampling:    sampling,
	}, nil
}

func compileSteps(v cue.Value) ([]spec.Step, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []spec.Step
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		stepID, err := lookupString(elem, "step_id")
		if err != nil {
			return nil, err
		}
		actionVal, err := requireField(elem, "action")
		if err != nil {
			return nil, err
		}
		action, err := compileStepAction(actionVal, indexPath("population.steps", i))
		if err != nil {
			return nil, err
		}
		out = append(out, spec.Step{StepID: stepID, Action: action})
	}
	return out, nil
}

func compileStepAction(v cue.Value, path string) (spec.StepAction, error) {
	kind, err := lookupString(v, "type")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "filter_comparison":
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
		valueVal, err := requireField(v, "value")
		if err != nil {
			return nil, err
		}
		value, err := compileScalar(valueVal)
		if err != nil {
			return nil, err
		}
		return spec.NewFilterComparison(path, field, op, value)

	case "filter_in_list":
		field, err := lookupString(v, "field")
		if err != nil {
			return nil, err
		}
		valuesVal, err := requireField(v, "values")
		if err != nil {
			return nil, err
		}
		values, err := compileScalarList(valuesVal)
		if err != nil {
			return nil, err
		}
		return spec.NewFilterInList(path, field, values)

	case "filter_is_null":
		field, err := lookupString(v, "field")
		if err != nil {
			return nil, err
		}
		isNullVal, err := requireField(v, "is_null")
		if err != nil {
			return nil, err
		}
		isNull, err := isNullVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return spec.NewFilterIsNull(path, field, isNull)

	case "join_left":
		leftDataset, err := lookupString(v, "left_dataset")
		if err != nil {
			return nil, err
		}
		rightDataset, err := lookupString(v, "right_dataset")
		if err != nil {
			return nil, err
		}
		leftKeysVal, err := requireField(v, "left_keys")
		if err != nil {
			return nil, err
		}
		leftKeys, err := compileStringList(leftKeysVal)
		if err != nil {
			return nil, err
		}
		rightKeysVal, err := requireField(v, "right_keys")
		if err != nil {
			return nil, err
		}
		rightKeys, err := compileStringList(rightKeysVal)
		if err != nil {
			return nil, err
		}
		return spec.NewJoinLeft(path, ir.DatasetAlias(leftDataset), ir.DatasetAlias(rightDataset), leftKeys, rightKeys)

	default:
		return nil, &CompileError{Field: path + ".type", Message: "unknown step action type " + kind, Pos: v.Pos()}
	}
}

func compileSampling(v cue.Value) (*spec.SamplingStrategy, error) {
	path := "population.sampling"

	var enabled bool
	if enabledVal := v.LookupPath(cue.ParsePath("enabled")); enabledVal.Exists() {
		b, err := enabledVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		enabled = b
	}

	method, err := lookupString(v, "method")
	if err != nil {
		return nil, err
	}

	var sampleSize int
	if sizeVal := v.LookupPath(cue.ParsePath("sample_size")); sizeVal.Exists() {
		n, err := sizeVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		sampleSize = int(n)
	}

	var samplePercentage float64
	if pctVal := v.LookupPath(cue.ParsePath("sample_percentage")); pctVal.Exists() {
		f, err := pctVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		samplePercentage = f
	}

	var stratificationField string
	if stratVal := v.LookupPath(cue.ParsePath("stratification_field")); stratVal.Exists() {
		s, err := stratVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		stratificationField = s
	}

	var randomSeed *int
	if seedVal := v.LookupPath(cue.ParsePath("random_seed")); seedVal.Exists() {
		n, err := seedVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		seed := int(n)
		randomSeed = &seed
	}

	justification, err := lookupString(v, "justification")
	if err != nil {
		return nil, err
	}

	return spec.NewSamplingStrategy(path, enabled, spec.SamplingMethod(method), sampleSize, samplePercentage, stratificationField, randomSeed, justification)
}
