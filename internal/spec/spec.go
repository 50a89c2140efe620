package spec

import (
	"strconv"

	"github.com/attestable/controlcore/internal/ir"
)

// ControlSpec is the root of the Control Specification Model: the sole
// input contract handed to the compiler. Every exported constructor in
// this package, culminating in New, enforces §4.2's structural
// invariants at construction time — a ControlSpec that exists is
// guaranteed well-formed independent of any manifest. The invariant that
// depends on a manifest (dataset aliases actually present) is checked
// separately by Validate, once a manifest is available — see the package
// doc for why the two are split. Column presence is not checked by this
// package.
type ControlSpec struct {
	Governance       Governance
	OntologyBindings []OntologyBinding
	Population       Population
	Assertions       []Assertion
	Evidence         EvidenceRequirements
}

// New validates and constructs a ControlSpec. It enforces every
// invariant that does not require knowledge of a manifest:
//
//   - assertions is non-empty
//   - step_id is unique across population.steps
//   - an Aggregation assertion cannot coexist with any row-level
//     assertion (ValueMatch, ColumnComparison, TemporalDateMath,
//     TemporalSequence) in the same specification
//   - at most one Aggregation assertion is present
func New(governance Governance, ontologyBindings []OntologyBinding, population Population, assertions []Assertion, evidence EvidenceRequirements) (*ControlSpec, error) {
	if len(assertions) == 0 {
		return nil, invalid("assertions", "assertions must be non-empty")
	}

	seenSteps := make(map[string]struct{}, len(population.Steps))
	for i, step := range population.Steps {
		if step.StepID == "" {
			return nil, invalid(indexPath("population.steps", i)+".step_id", "step_id is required")
		}
		if _, dup := seenSteps[step.StepID]; dup {
			return nil, invalid(indexPath("population.steps", i)+".step_id", "duplicate step_id %q", step.StepID)
		}
		seenSteps[step.StepID] = struct{}{}
	}

	aggregationCount := 0
	rowLevelCount := 0
	for _, a := range assertions {
		if IsAggregation(a) {
			aggregationCount++
		} else {
			rowLevelCount++
		}
	}
	if aggregationCount > 1 {
		return nil, invalid("assertions", "at most one aggregation assertion is permitted, got %d", aggregationCount)
	}
	if aggregationCount > 0 && rowLevelCount > 0 {
		return nil, invalid("assertions", "aggregation and row-level assertions cannot coexist in the same specification")
	}

	return &ControlSpec{
		Governance:       governance,
		OntologyBindings: ontologyBindings,
		Population:       population,
		Assertions:       assertions,
		Evidence:         evidence,
	}, nil
}

// ReferencedAliases returns every dataset alias names referenced
// anywhere in the specification: the base dataset plus every join's
// participants. Used by Validate to check manifest coverage.
func (s *ControlSpec) ReferencedAliases() []ir.DatasetAlias {
	seen := map[ir.DatasetAlias]struct{}{s.Population.BaseDataset: {}}
	order := []ir.DatasetAlias{s.Population.BaseDataset}
	add := func(alias ir.DatasetAlias) {
		if _, ok := seen[alias]; !ok {
			seen[alias] = struct{}{}
			order = append(order, alias)
		}
	}
	for _, step := range s.Population.Steps {
		if join, ok := step.Action.(JoinLeft); ok {
			add(join.LeftDataset)
			add(join.RightDataset)
		}
	}
	return order
}

// Validate checks the manifest-dependent invariants that New cannot:
// every dataset alias the specification references — the base dataset
// and every join participant — must be present in knownAliases. It
// returns a *SpecInvalid describing the first missing alias found, or
// nil if the specification is fully covered.
//
// Deliberately kept separate from New: internal/spec has no dependency
// on internal/manifest, so a ControlSpec can be constructed, unit
// tested, and round-tripped through JSON without ever loading a
// manifest. The compiler (or CLI) calls Validate once a manifest is at
// hand, immediately before compilation.
func (s *ControlSpec) Validate(knownAliases []ir.DatasetAlias) error {
	known := make(map[ir.DatasetAlias]struct{}, len(knownAliases))
	for _, a := range knownAliases {
		known[a] = struct{}{}
	}
	for _, alias := range s.ReferencedAliases() {
		if _, ok := known[alias]; !ok {
			return invalid("population", "dataset alias %q is not present in the evidence manifest", alias)
		}
	}
	for i, binding := range s.OntologyBindings {
		if _, ok := known[binding.DatasetAlias]; !ok {
			return invalid(indexPath("ontology_bindings", i)+".dataset_alias", "dataset alias %q is not present in the evidence manifest", binding.DatasetAlias)
		}
	}
	return nil
}

func indexPath(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
