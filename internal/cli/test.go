package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/attestable/controlcore/internal/compiler/query"
	"github.com/attestable/controlcore/internal/engine"
	"github.com/attestable/controlcore/internal/fixture"
	"github.com/attestable/controlcore/internal/schema"
	"github.com/attestable/controlcore/internal/spec"
	"github.com/attestable/controlcore/internal/verdict"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern, matched against the name of the directory holding the scenario file)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run the conformance scenario suite",
		Long: `Run every scenario fixture in scenarios-dir end to end: compile its
specification, load its manifest, execute the compiled query, and
compare the resolved outcome against the scenario's expect block.

Each scenario file is a YAML document naming a spec, a manifest, and
an expected verdict (and, where applicable, an exact population,
exception count, exception rate, or error kind). A scenario passes
only when every expected field the scenario sets matches exactly.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed (a scenario file that cannot be
      loaded counts as a failed scenario)
  2 - command error (scenarios directory not found)

Examples:
  controlcore test ./testdata
  controlcore test ./testdata --filter "ctrl-ops-*"
  controlcore test ./testdata --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern against the scenario's directory name")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenarioFile(scenarioFile, opts, cmd)
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles walks dir recursively and returns every file named
// scenario.yaml or scenario.yml; other YAML files (manifests and the
// like) are not returned. When filter is set, only scenarios whose
// containing directory name matches the glob are kept.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Base(path) != "scenario.yaml" && filepath.Base(path) != "scenario.yml" {
			return nil
		}
		if filter != "" {
			name := filepath.Base(filepath.Dir(path))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenarioFile executes one scenario end to end and reports whether
// its outcome matched every field the scenario's expect block set.
func runScenarioFile(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	label := filepath.Base(filepath.Dir(scenarioFile))

	fail := func(name string, errs ...string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := fixture.LoadScenario(scenarioFile)
	if err != nil {
		return fail(label, fmt.Sprintf("failed to load scenario: %v", err))
	}

	cs, err := loadControlSpec(scenario.Spec)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to compile spec: %v", err))
	}

	man, err := fixture.LoadManifest(scenario.Manifest)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to load manifest: %v", err))
	}

	if err := cs.Validate(man.Aliases()); err != nil {
		return fail(scenario.Name, fmt.Sprintf("spec/manifest mismatch: %v", err))
	}
	if err := schema.Validate(cs, man); err != nil {
		return fail(scenario.Name, fmt.Sprintf("schema drift: %v", err))
	}

	plan, err := query.Assemble(cs, man)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to assemble query: %v", err))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	outcome, errKind := resolveOutcome(ctx, plan, cs)

	errs := compareExpectation(scenario.Expect, outcome, errKind)
	if len(errs) > 0 {
		return fail(scenario.Name, errs...)
	}

	if opts.Format != "json" {
		fmt.Fprintf(w, "✓ %s\n", scenario.Name)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

// scenarioOutcome is the subset of an execution's result a scenario
// can assert against.
type scenarioOutcome struct {
	verdict              string
	totalPopulation      int
	exceptionCount       int
	exceptionRatePercent float64
}

// resolveOutcome runs plan through the engine and, on success, the
// verdict resolver, folding an engine error into an ERROR outcome the
// same way execute.go's buildExecutionRecord does.
func resolveOutcome(ctx context.Context, plan *query.Plan, cs *spec.ControlSpec) (scenarioOutcome, string) {
	result, err := engine.Execute(ctx, plan, engine.Config{})
	if err != nil {
		switch {
		case engine.IsCompileRejected(err):
			return scenarioOutcome{verdict: string(verdict.Error)}, string(engine.CompileRejected)
		case engine.IsCanceled(err):
			return scenarioOutcome{verdict: string(verdict.Error)}, string(engine.Canceled)
		default:
			return scenarioOutcome{verdict: string(verdict.Error)}, string(engine.ExecutionFailed)
		}
	}

	res := verdict.Resolve(result.TotalPopulation, result.ExceptionCount, cs.Assertions, string(cs.Population.BaseDataset))
	return scenarioOutcome{
		verdict:              string(res.Verdict),
		totalPopulation:      result.TotalPopulation,
		exceptionCount:       result.ExceptionCount,
		exceptionRatePercent: res.ExceptionRatePercent,
	}, string(res.ErrorKind)
}

func compareExpectation(want fixture.Expectation, got scenarioOutcome, errKind string) []string {
	var errs []string
	if !strings.EqualFold(want.Verdict, got.verdict) {
		errs = append(errs, fmt.Sprintf("verdict: want %s, got %s", want.Verdict, got.verdict))
	}
	if want.TotalPopulation != nil && int64(got.totalPopulation) != *want.TotalPopulation {
		errs = append(errs, fmt.Sprintf("total_population: want %d, got %d", *want.TotalPopulation, got.totalPopulation))
	}
	if want.ExceptionCount != nil && int64(got.exceptionCount) != *want.ExceptionCount {
		errs = append(errs, fmt.Sprintf("exception_count: want %d, got %d", *want.ExceptionCount, got.exceptionCount))
	}
	if want.ExceptionRatePercent != nil && *want.ExceptionRatePercent != got.exceptionRatePercent {
		errs = append(errs, fmt.Sprintf("exception_rate_percent: want %.2f, got %.2f", *want.ExceptionRatePercent, got.exceptionRatePercent))
	}
	if want.ErrorKind != "" && want.ErrorKind != errKind {
		errs = append(errs, fmt.Sprintf("error_kind: want %s, got %s", want.ErrorKind, errKind))
	}
	return errs
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{Status: status, Data: result}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
