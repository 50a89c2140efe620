package cuespec

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/attestable/controlcore/internal/spec"
)

//go:embed schema.cue
var schemaSource []byte

// Load parses a single CUE document (via the CUE Go API, never the cue
// CLI) and compiles it into a *spec.ControlSpec. The document is
// unified against #ControlSpec first, so an unknown field anywhere in
// it is rejected before Compile ever sees the value.
func Load(source []byte, filename string) (*spec.ControlSpec, error) {
	ctx := cuecontext.New()
	doc := ctx.CompileBytes(source, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAgainstSchema(ctx, doc)
}

// LoadDir loads every .cue file in dir as a single CUE package instance
// (cue/load, the same loader the cue CLI itself uses) and compiles the
// result into a *spec.ControlSpec. Use this when a specification is
// authored across multiple files in one package.
func LoadDir(dir string) (*spec.ControlSpec, error) {
	ctx := cuecontext.New()

	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("cuespec: no CUE instances found in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("cuespec: load %s: %w", dir, inst.Err)
	}

	doc := ctx.BuildInstance(inst)
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAgainstSchema(ctx, doc)
}

// compileAgainstSchema unifies doc against #ControlSpec and, once the
// result validates as fully concrete, hands it to Compile.
func compileAgainstSchema(ctx *cue.Context, doc cue.Value) (*spec.ControlSpec, error) {
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	controlSpecDef := schema.LookupPath(cue.ParsePath("#ControlSpec"))
	if err := controlSpecDef.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := doc.Unify(controlSpecDef)
	if err := unified.Validate(cue.Concrete(true), cue.All()); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(unified)
}

// Compile evaluates a CUE value shaped like a Control Specification
// document into a *spec.ControlSpec, field by field. Every value it
// produces is handed to internal/spec's own constructors, so the
// result is fully validated regardless of what the CUE schema already
// caught.
func Compile(v cue.Value) (*spec.ControlSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	governanceVal, err := requireField(v, "governance")
	if err != nil {
		return nil, err
	}
	governance, err := compileGovernance(governanceVal)
	if err != nil {
		return nil, err
	}

	var ontologyBindings []spec.OntologyBinding
	if bindingsVal := v.LookupPath(cue.ParsePath("ontology_bindings")); bindingsVal.Exists() {
		ontologyBindings, err = compileOntologyBindings(bindingsVal)
		if err != nil {
			return nil, err
		}
	}

	populationVal, err := requireField(v, "population")
	if err != nil {
		return nil, err
	}
	population, err := compilePopulation(populationVal)
	if err != nil {
		return nil, err
	}

	assertionsVal, err := requireField(v, "assertions")
	if err != nil {
		return nil, err
	}
	assertions, err := compileAssertions(assertionsVal)
	if err != nil {
		return nil, err
	}

	evidenceVal, err := requireField(v, "evidence")
	if err != nil {
		return nil, err
	}
	evidence, err := compileEvidence(evidenceVal)
	if err != nil {
		return nil, err
	}

	cs, err := spec.New(governance, ontologyBindings, population, assertions, evidence)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func requireField(v cue.Value, field string) (cue.Value, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return cue.Value{}, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	return val, nil
}

// CompileError is returned for any failure compiling a CUE value into a
// ControlSpec, carrying the source position CUE attached to the
// offending field.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts the first underlying error and its source
// position from a CUE evaluation/validation error, so callers see a
// file:line:column pointing at the offending document rather than CUE's
// often multi-line internal rendering.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
