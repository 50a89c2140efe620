package cuespec

import (
	"strconv"

	"cuelang.org/go/cue"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/spec"
)

func compileGovernance(v cue.Value) (spec.Governance, error) {
	controlID, err := lookupString(v, "control_id")
	if err != nil {
		return spec.Governance{}, err
	}
	version, err := lookupString(v, "version")
	if err != nil {
		return spec.Governance{}, err
	}
	ownerRole, err := lookupString(v, "owner_role")
	if err != nil {
		return spec.Governance{}, err
	}
	frequencyStr, err := lookupString(v, "testing_frequency")
	if err != nil {
		return spec.Governance{}, err
	}
	riskObjective, err := lookupString(v, "risk_objective")
	if err != nil {
		return spec.Governance{}, err
	}

	var citations []string
	if citationsVal := v.LookupPath(cue.ParsePath("regulatory_citations")); citationsVal.Exists() {
		citations, err = compileStringList(citationsVal)
		if err != nil {
			return spec.Governance{}, err
		}
	}

	return spec.NewGovernance(controlID, version, ownerRole, spec.TestingFrequency(frequencyStr), citations, riskObjective)
}

func compileOntologyBindings(v cue.Value) ([]spec.OntologyBinding, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []spec.OntologyBinding
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		businessTerm, err := lookupString(elem, "business_term")
		if err != nil {
			return nil, err
		}
		alias, err := lookupString(elem, "dataset_alias")
		if err != nil {
			return nil, err
		}
		technicalField, err := lookupString(elem, "technical_field")
		if err != nil {
			return nil, err
		}
		logicalType, err := lookupString(elem, "logical_type")
		if err != nil {
			return nil, err
		}
		path := indexPath("ontology_bindings", i)
		binding, err := spec.NewOntologyBinding(path, businessTerm, ir.DatasetAlias(alias), technicalField, spec.LogicalType(logicalType))
		if err != nil {
			return nil, err
		}
		out = append(out, binding)
	}
	return out, nil
}

func compileEvidence(v cue.Value) (spec.EvidenceRequirements, error) {
	retentionVal, err := requireField(v, "retention_years")
	if err != nil {
		return spec.EvidenceRequirements{}, err
	}
	retentionYears, err := retentionVal.Int64()
	if err != nil {
		return spec.EvidenceRequirements{}, formatCUEError(err)
	}
	workflow, err := lookupString(v, "reviewer_workflow")
	if err != nil {
		return spec.EvidenceRequirements{}, err
	}
	queue, err := lookupString(v, "exception_routing_queue")
	if err != nil {
		return spec.EvidenceRequirements{}, err
	}
	return spec.NewEvidenceRequirements(int(retentionYears), spec.ReviewerWorkflow(workflow), queue)
}

func lookupString(v cue.Value, field string) (string, error) {
	val, err := requireField(v, field)
	if err != nil {
		return "", err
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func indexPath(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
