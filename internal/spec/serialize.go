package spec

import (
	"github.com/attestable/controlcore/internal/ir"
)

// ToObject renders the full specification as an ir.Object tree —
// the "entire specification serialized verbatim" the audit ledger
// stores (§4.11) and the canonical form ir.SpecificationHash content-
// addresses.
func (s *ControlSpec) ToObject() ir.Object {
	return ir.Object{
		"governance":        s.Governance.toObject(),
		"ontology_bindings":  ontologyBindingsToArray(s.OntologyBindings),
		"population":         s.Population.toObject(),
		"assertions":         assertionsToArray(s.Assertions),
		"evidence":           s.Evidence.toObject(),
	}
}

func (g Governance) toObject() ir.Object {
	citations := make(ir.Array, len(g.RegulatoryCitations))
	for i, c := range g.RegulatoryCitations {
		citations[i] = ir.NewString(c)
	}
	return ir.Object{
		"control_id":           ir.NewString(g.ControlID),
		"version":              ir.NewString(g.Version),
		"owner_role":           ir.NewString(g.OwnerRole),
		"testing_frequency":    ir.NewString(string(g.TestingFrequency)),
		"regulatory_citations": citations,
		"risk_objective":       ir.NewString(g.RiskObjective),
	}
}

func ontologyBindingsToArray(bindings []OntologyBinding) ir.Array {
	arr := make(ir.Array, len(bindings))
	for i, b := range bindings {
		arr[i] = ir.Object{
			"business_term":   ir.NewString(b.BusinessTerm),
			"dataset_alias":   ir.NewString(string(b.DatasetAlias)),
			"technical_field": ir.NewString(b.TechnicalField),
			"logical_type":    ir.NewString(string(b.LogicalType)),
		}
	}
	return arr
}

func (p Population) toObject() ir.Object {
	steps := make(ir.Array, len(p.Steps))
	for i, step := range p.Steps {
		steps[i] = ir.Object{
			"step_id": ir.NewString(step.StepID),
			"action":  stepActionToObject(step.Action),
		}
	}
	obj := ir.Object{
		"base_dataset": ir.NewString(string(p.BaseDataset)),
		"steps":        steps,
	}
	if p.Sampling != nil {
		obj["sampling"] = p.Sampling.toObject()
	} else {
		obj["sampling"] = ir.NewNull()
	}
	return obj
}

func stepActionToObject(a StepAction) ir.Object {
	switch v := a.(type) {
	case FilterComparison:
		return ir.Object{
			"type":     ir.NewString("filter_comparison"),
			"field":    ir.NewString(v.Field),
			"operator": ir.NewString(string(v.Operator)),
			"value":    v.Value,
		}
	case FilterInList:
		values := make(ir.Array, len(v.Values))
		for i, val := range v.Values {
			values[i] = val
		}
		return ir.Object{
			"type":   ir.NewString("filter_in_list"),
			"field":  ir.NewString(v.Field),
			"values": values,
		}
	case FilterIsNull:
		return ir.Object{
			"type":    ir.NewString("filter_is_null"),
			"field":   ir.NewString(v.Field),
			"is_null": ir.NewBool(v.IsNull),
		}
	case JoinLeft:
		leftKeys := make(ir.Array, len(v.LeftKeys))
		for i, k := range v.LeftKeys {
			leftKeys[i] = ir.NewString(k)
		}
		rightKeys := make(ir.Array, len(v.RightKeys))
		for i, k := range v.RightKeys {
			rightKeys[i] = ir.NewString(k)
		}
		return ir.Object{
			"type":          ir.NewString("join_left"),
			"left_dataset":  ir.NewString(string(v.LeftDataset)),
			"right_dataset": ir.NewString(string(v.RightDataset)),
			"left_keys":     leftKeys,
			"right_keys":    rightKeys,
		}
	default:
		return ir.Object{"type": ir.NewString("unknown")}
	}
}

func (s SamplingStrategy) toObject() ir.Object {
	obj := ir.Object{
		"enabled":               ir.NewBool(s.Enabled),
		"method":                ir.NewString(string(s.Method)),
		"sample_size":           ir.NewInt(int64(s.SampleSize)),
		"sample_percentage":     ir.NewFloat(s.SamplePercentage),
		"stratification_field":  ir.NewString(s.StratificationField),
		"justification":         ir.NewString(s.Justification),
	}
	if s.RandomSeed != nil {
		obj["random_seed"] = ir.NewInt(int64(*s.RandomSeed))
	} else {
		obj["random_seed"] = ir.NewNull()
	}
	return obj
}

func assertionsToArray(assertions []Assertion) ir.Array {
	arr := make(ir.Array, len(assertions))
	for i, a := range assertions {
		arr[i] = assertionToObject(a)
	}
	return arr
}

func baseFields(obj ir.Object, b AssertionBase) {
	obj["assertion_id"] = ir.NewString(b.ID)
	obj["description"] = ir.NewString(b.Desc)
	obj["materiality_threshold_percent"] = ir.NewFloat(b.Materiality)
}

func assertionToObject(a Assertion) ir.Object {
	switch v := a.(type) {
	case ValueMatch:
		obj := ir.Object{"type": ir.NewString("value_match"), "field": ir.NewString(v.Field), "operator": ir.NewString(string(v.Operator)), "ignore_case_and_space": ir.NewBool(v.IgnoreCaseAndSpace)}
		baseFields(obj, v.AssertionBase)
		if v.Operator.IsListOperator() {
			list := make(ir.Array, len(v.ExpectedList))
			for i, val := range v.ExpectedList {
				list[i] = val
			}
			obj["expected_list"] = list
		} else {
			obj["expected_value"] = v.ExpectedValue
		}
		return obj

	case ColumnComparison:
		obj := ir.Object{
			"type":        ir.NewString("column_comparison"),
			"left_field":  ir.NewString(v.LeftField),
			"operator":    ir.NewString(string(v.Operator)),
			"right_field": ir.NewString(v.RightField),
		}
		baseFields(obj, v.AssertionBase)
		return obj

	case TemporalDateMath:
		obj := ir.Object{
			"type":              ir.NewString("temporal_date_math"),
			"base_date_field":   ir.NewString(v.BaseDateField),
			"operator":          ir.NewString(string(v.Operator)),
			"target_date_field": ir.NewString(v.TargetDateField),
			"offset_days":       ir.NewInt(int64(v.OffsetDays)),
		}
		baseFields(obj, v.AssertionBase)
		return obj

	case Aggregation:
		groupBy := make(ir.Array, len(v.GroupByFields))
		for i, f := range v.GroupByFields {
			groupBy[i] = ir.NewString(f)
		}
		obj := ir.Object{
			"type":                 ir.NewString("aggregation"),
			"group_by_fields":      groupBy,
			"metric_field":         ir.NewString(v.MetricField),
			"aggregation_function": ir.NewString(string(v.AggregationFunction)),
			"operator":             ir.NewString(string(v.Operator)),
			"threshold":            ir.NewFloat(v.Threshold),
		}
		baseFields(obj, v.AssertionBase)
		return obj

	case TemporalSequence:
		chain := make(ir.Array, len(v.EventChain))
		for i, f := range v.EventChain {
			chain[i] = ir.NewString(f)
		}
		obj := ir.Object{"type": ir.NewString("temporal_sequence"), "event_chain": chain}
		baseFields(obj, v.AssertionBase)
		return obj

	default:
		return ir.Object{"type": ir.NewString("unknown")}
	}
}

func (e EvidenceRequirements) toObject() ir.Object {
	return ir.Object{
		"retention_years":         ir.NewInt(int64(e.RetentionYears)),
		"reviewer_workflow":       ir.NewString(string(e.ReviewerWorkflow)),
		"exception_routing_queue": ir.NewString(e.ExceptionRoutingQueue),
	}
}
