// Package query implements the Query Assembler (§4.7): it selects one
// of the two mutually exclusive query shapes — row-level or aggregation
// — and stitches the pipeline compiler's CTEs and the assertion
// compiler's predicates into final, executable SQL text.
package query

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/attestable/controlcore/internal/compiler/assertion"
	"github.com/attestable/controlcore/internal/compiler/pipeline"
	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/sqlemit"
	"github.com/attestable/controlcore/internal/spec"
)

// Shape names which of the two mutually exclusive query shapes a plan
// uses — fixed per specification by whether its sole assertion is an
// Aggregation (spec.New already forbids mixing aggregation with
// row-level assertions, so the shape never varies mid-specification).
type Shape string

const (
	RowLevel         Shape = "row_level"
	AggregationShape Shape = "aggregation"
)

// Plan is the fully assembled query: its SQL text plus the metadata the
// schema validator needs to check every referenced path/column, plus a
// second, population-filters-only statement the execution engine runs
// to compute total_population (§4.9) independent of the exception
// predicates.
type Plan struct {
	SQL                string
	PopulationCountSQL string
	ReferencedPaths    map[ir.DatasetAlias]string
	Shape              Shape
}

// Assemble runs the pipeline compiler and assertion compiler over cs
// and man, then assembles the final SQL text per §4.7. cs must already
// have passed (*spec.ControlSpec).Validate against man's aliases.
func Assemble(cs *spec.ControlSpec, man *manifest.Manifest) (*Plan, error) {
	slog.Debug("query: assembling", "control_id", cs.Governance.ControlID, "assertions", len(cs.Assertions))
	pipelinePlan, err := pipeline.Compile(cs.Population, man)
	if err != nil {
		return nil, err
	}

	compiledAssertions, err := assertion.CompileAll(cs.Assertions)
	if err != nil {
		return nil, err
	}

	finalAlias, err := sqlemit.Identifier(string(pipelinePlan.FinalAlias))
	if err != nil {
		return nil, fmt.Errorf("query: final alias: %w", err)
	}

	ctes := make([]string, len(pipelinePlan.CTEs))
	for i, cte := range pipelinePlan.CTEs {
		ctes[i] = cte.SQL
	}
	withClause := "WITH " + strings.Join(ctes, ",\n")

	populationFilters := renderFilters(pipelinePlan.PopulationFilters)

	if len(cs.Assertions) == 1 {
		if agg, ok := cs.Assertions[0].(spec.Aggregation); ok {
			sql, err := assembleAggregation(withClause, finalAlias, populationFilters, agg, compiledAssertions[0])
			if err != nil {
				return nil, err
			}
			countSQL, err := assembleGroupCountSQL(withClause, finalAlias, populationFilters, agg.GroupByFields)
			if err != nil {
				return nil, err
			}
			slog.Debug("query: assembled", "shape", AggregationShape)
			return &Plan{SQL: sql, PopulationCountSQL: countSQL, ReferencedPaths: pipelinePlan.ReferencedPaths, Shape: AggregationShape}, nil
		}
	}

	sql := assembleRowLevel(withClause, finalAlias, populationFilters, cs.Population.Sampling, compiledAssertions)
	countSQL := assembleRowCountSQL(withClause, finalAlias, populationFilters)
	slog.Debug("query: assembled", "shape", RowLevel)
	return &Plan{SQL: sql, PopulationCountSQL: countSQL, ReferencedPaths: pipelinePlan.ReferencedPaths, Shape: RowLevel}, nil
}

// assembleRowCountSQL builds the population-filters-only statement used
// to compute total_population for the row-level shape: a plain row
// count of the final CTE with population filters applied, entirely
// independent of the exception predicates.
func assembleRowCountSQL(withClause, finalAlias, populationFilters string) string {
	return fmt.Sprintf(
		"%s\nSELECT COUNT(*) AS total_population\nFROM %s\nWHERE %s",
		withClause, finalAlias, populationFilters,
	)
}

// assembleGroupCountSQL builds the population-filters-only statement
// used to compute total_population for the aggregation shape: the
// count of distinct group keys, per §4.9.
func assembleGroupCountSQL(withClause, finalAlias, populationFilters string, groupBy []string) (string, error) {
	cols := make([]string, len(groupBy))
	for i, f := range groupBy {
		ident, err := sqlemit.Identifier(f)
		if err != nil {
			return "", err
		}
		cols[i] = ident
	}
	return fmt.Sprintf(
		"%s\nSELECT COUNT(*) AS total_population FROM (\n  SELECT DISTINCT %s\n  FROM %s\n  WHERE %s\n) AS distinct_groups",
		withClause, strings.Join(cols, ", "), finalAlias, populationFilters,
	), nil
}

func renderFilters(filters []string) string {
	if len(filters) == 0 {
		return "1=1"
	}
	return strings.Join(filters, " AND ")
}

func assembleRowLevel(withClause, finalAlias, populationFilters string, sampling *spec.SamplingStrategy, compiled []assertion.Compiled) string {
	exceptions := assertion.CombineOR(assertion.ExceptionPredicates(compiled))

	sampleClause := ""
	if sampling != nil {
		sampleClause = renderSamplingClause(sampling)
	}

	return fmt.Sprintf(
		"%s\nSELECT *\nFROM %s%s\nWHERE (%s) AND ((%s))",
		withClause, finalAlias, sampleClause, populationFilters, exceptions,
	)
}

func assembleAggregation(withClause, finalAlias, populationFilters string, agg spec.Aggregation, compiled assertion.Compiled) (string, error) {
	groupBy := make([]string, len(agg.GroupByFields))
	for i, f := range agg.GroupByFields {
		ident, err := sqlemit.Identifier(f)
		if err != nil {
			return "", err
		}
		groupBy[i] = ident
	}
	metric, err := sqlemit.Identifier(agg.MetricField)
	if err != nil {
		return "", err
	}

	havingPredicate := "(" + compiled.Expression + ") IS NOT TRUE"

	return fmt.Sprintf(
		"%s\nSELECT %s,\n       COUNT(*) AS exception_count,\n       %s(%s) AS %s_%s\nFROM %s\nWHERE %s\nGROUP BY %s\nHAVING %s",
		withClause,
		strings.Join(groupBy, ", "),
		agg.AggregationFunction, metric,
		strings.ToLower(string(agg.AggregationFunction)), metric,
		finalAlias,
		populationFilters,
		strings.Join(groupBy, ", "),
		havingPredicate,
	), nil
}

// renderSamplingClause renders the TABLESAMPLE fragment that follows
// the FROM clause's table reference.
func renderSamplingClause(s *spec.SamplingStrategy) string {
	var amount string
	if s.SampleSize > 0 {
		amount = strconv.Itoa(s.SampleSize) + " ROWS"
	} else {
		amount = trimTrailingZeros(s.SamplePercentage) + "%"
	}

	clause := fmt.Sprintf(" TABLESAMPLE RESERVOIR(%s)", amount)
	if s.RandomSeed != nil {
		clause += fmt.Sprintf(" REPEATABLE (%d)", *s.RandomSeed)
	}
	return clause
}

func trimTrailingZeros(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
