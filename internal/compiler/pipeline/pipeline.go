// Package pipeline implements the Pipeline Compiler (§4.5): it walks a
// Population's ordered steps and produces the population filter
// fragments, join CTE definitions, and final alias the query assembler
// needs. It never touches assertions.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/sqlemit"
	"github.com/attestable/controlcore/internal/spec"
)

// CTE is one emitted common table expression.
type CTE struct {
	Name string
	SQL  string
}

// Plan is the output of Compile: the ingredients the query assembler
// (§4.7) needs, plus enough path metadata for the schema validator
// (§4.8) to check every referenced column against the manifest.
type Plan struct {
	PopulationFilters []string
	CTEs              []CTE
	FinalAlias        ir.DatasetAlias
	ReferencedPaths   map[ir.DatasetAlias]string
}

// CollisionError is returned when a JoinLeft step would introduce a
// duplicate non-key column name into the joined rowset.
type CollisionError struct {
	StepID string
	Column string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("pipeline: step %q: column %q is produced by both sides of the join and is not a join key", e.StepID, e.Column)
}

// Compile runs the §4.5 algorithm over pop, resolving join partners and
// column lists against man.
func Compile(pop spec.Population, man *manifest.Manifest) (*Plan, error) {
	baseAlias := pop.BaseDataset
	slog.Debug("pipeline: compiling population", "base_dataset", baseAlias, "steps", len(pop.Steps))
	basePath, err := man.PathOf(baseAlias)
	if err != nil {
		return nil, err
	}

	base, err := sqlemit.Identifier(string(baseAlias))
	if err != nil {
		return nil, fmt.Errorf("pipeline: base_dataset: %w", err)
	}

	plan := &Plan{
		CTEs:            []CTE{{Name: base, SQL: fmt.Sprintf("%s AS (SELECT * FROM %s('%s'))", base, readFunction(basePath), basePath)}},
		FinalAlias:      baseAlias,
		ReferencedPaths: map[ir.DatasetAlias]string{baseAlias: basePath},
	}
	currentAlias := baseAlias

	for _, step := range pop.Steps {
		switch action := step.Action.(type) {
		case spec.FilterComparison:
			frag, err := compileFilterComparison(action)
			if err != nil {
				return nil, err
			}
			plan.PopulationFilters = append(plan.PopulationFilters, frag)

		case spec.FilterInList:
			frag, err := compileFilterInList(action)
			if err != nil {
				return nil, err
			}
			plan.PopulationFilters = append(plan.PopulationFilters, frag)

		case spec.FilterIsNull:
			field, err := sqlemit.Identifier(action.Field)
			if err != nil {
				return nil, fmt.Errorf("pipeline: step %q: %w", step.StepID, err)
			}
			if action.IsNull {
				plan.PopulationFilters = append(plan.PopulationFilters, field+" IS NULL")
			} else {
				plan.PopulationFilters = append(plan.PopulationFilters, field+" IS NOT NULL")
			}

		case spec.JoinLeft:
			cte, path, newAlias, err := compileJoin(step.StepID, action, currentAlias, man)
			if err != nil {
				return nil, err
			}
			plan.CTEs = append(plan.CTEs, cte)
			plan.ReferencedPaths[action.RightDataset] = path
			currentAlias = newAlias
			plan.FinalAlias = newAlias

		default:
			return nil, fmt.Errorf("pipeline: step %q: unknown step action %T", step.StepID, action)
		}
	}

	slog.Debug("pipeline: compiled", "ctes", len(plan.CTEs), "filters", len(plan.PopulationFilters), "final_alias", plan.FinalAlias)
	return plan, nil
}

func compileFilterComparison(f spec.FilterComparison) (string, error) {
	field, err := sqlemit.Identifier(f.Field)
	if err != nil {
		return "", err
	}
	if _, isNull := f.Value.(ir.Null); isNull {
		if f.Operator == ir.Eq {
			return field + " IS NULL", nil
		}
		return field + " IS NOT NULL", nil
	}
	infix, err := f.Operator.SQLInfix()
	if err != nil {
		return "", err
	}
	lit, err := sqlemit.Literal(f.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", field, infix, lit), nil
}

func compileFilterInList(f spec.FilterInList) (string, error) {
	field, err := sqlemit.Identifier(f.Field)
	if err != nil {
		return "", err
	}
	list, err := sqlemit.LiteralList(f.Values)
	if err != nil {
		return "", err
	}
	return field + " IN " + list, nil
}

func compileJoin(stepID string, join spec.JoinLeft, currentAlias ir.DatasetAlias, man *manifest.Manifest) (CTE, string, ir.DatasetAlias, error) {
	stepIdent, err := sqlemit.Identifier(stepID)
	if err != nil {
		return CTE{}, "", "", fmt.Errorf("pipeline: %w", err)
	}
	currentIdent, err := sqlemit.Identifier(string(currentAlias))
	if err != nil {
		return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
	}
	rightPath, err := man.PathOf(join.RightDataset)
	if err != nil {
		return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
	}

	leftCols, err := man.ColumnsOf(currentAlias)
	if err != nil {
		leftCols = nil // currentAlias may itself be a prior join's synthetic alias; collision check degrades gracefully
	}
	rightCols, err := man.ColumnsOf(join.RightDataset)
	if err != nil {
		return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
	}

	rightKeySet := make(map[string]struct{}, len(join.RightKeys))
	for _, k := range join.RightKeys {
		rightKeySet[k] = struct{}{}
	}
	if leftCols != nil {
		leftNames := make(map[string]struct{}, len(leftCols))
		for _, c := range leftCols {
			leftNames[c.Name] = struct{}{}
		}
		for _, c := range rightCols {
			if _, isKey := rightKeySet[c.Name]; isKey {
				continue
			}
			if _, collides := leftNames[c.Name]; collides {
				return CTE{}, "", "", &CollisionError{StepID: stepID, Column: c.Name}
			}
		}
	}

	onClauses := make([]string, len(join.LeftKeys))
	for i := range join.LeftKeys {
		leftKey, err := sqlemit.Identifier(join.LeftKeys[i])
		if err != nil {
			return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
		}
		rightKey, err := sqlemit.Identifier(join.RightKeys[i])
		if err != nil {
			return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
		}
		onClauses[i] = fmt.Sprintf("%s.%s = right.%s", currentIdent, leftKey, rightKey)
	}

	excludeCols := make([]string, len(join.RightKeys))
	for i, k := range join.RightKeys {
		ident, err := sqlemit.Identifier(k)
		if err != nil {
			return CTE{}, "", "", fmt.Errorf("pipeline: step %q: %w", stepID, err)
		}
		excludeCols[i] = ident
	}
	sort.Strings(excludeCols)

	sql := fmt.Sprintf(
		"%s AS (SELECT %s.*, right.* EXCLUDE (%s) FROM %s LEFT JOIN %s('%s') AS right ON %s)",
		stepIdent, currentIdent, strings.Join(excludeCols, ", "), currentIdent, readFunction(rightPath), rightPath, strings.Join(onClauses, " AND "),
	)

	return CTE{Name: stepIdent, SQL: sql}, rightPath, ir.DatasetAlias(stepIdent), nil
}

// readFunction picks the DuckDB table function matching a columnar
// file's extension. Evidence files are produced by an external
// ingestor that normalizes everything to one of these three formats.
func readFunction(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "read_csv_auto"
	case ".json", ".ndjson":
		return "read_json_auto"
	default:
		return "read_parquet"
	}
}
