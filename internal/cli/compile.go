package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attestable/controlcore/internal/cuespec"
	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/spec"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics about a compiled
// specification.
type CompilationStats struct {
	OntologyBindingCount int `json:"ontology_binding_count"`
	StepCount            int `json:"step_count"`
	AssertionCount       int `json:"assertion_count"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec-path>",
		Short: "Compile a CUE control specification to canonical JSON",
		Long: `Compile a CUE Control Specification to canonical JSON.

spec-path names either a single .cue file or a directory loaded as a
single CUE package. The compiler evaluates the document against its
closed schema and then runs internal/spec's own constructor
validation, producing the same ControlSpec a caller could have built
directly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cs, err := loadControlSpec(specPath)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	formatter.VerboseLog("compiled control %s version %s", cs.Governance.ControlID, cs.Governance.Version)

	stats := CompilationStats{
		OntologyBindingCount: len(cs.OntologyBindings),
		StepCount:            len(cs.Population.Steps),
		AssertionCount:       len(cs.Assertions),
	}

	if opts.Output != "" {
		if err := writeSpecToFile(cs, opts.Output); err != nil {
			return outputCompileError(formatter, fmt.Errorf("writing output file: %w", err))
		}
	}

	return outputCompileSuccess(formatter, cs, stats, opts.Output)
}

// loadControlSpec loads a CUE control specification from either a
// single file or a directory (loaded as one package).
func loadControlSpec(path string) (*spec.ControlSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("spec path: %w", err)
	}
	if info.IsDir() {
		return cuespec.LoadDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec path: %w", err)
	}
	return cuespec.Load(data, path)
}

func outputCompileSuccess(formatter *OutputFormatter, cs *spec.ControlSpec, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(cs.ToObject())
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled control %s (version %s)\n\n", cs.Governance.ControlID, cs.Governance.Version)
	fmt.Fprintf(formatter.Writer, "  %d ontology binding(s), %d population step(s), %d assertion(s)\n",
		stats.OntologyBindingCount, stats.StepCount, stats.AssertionCount)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical specification to %s\n", outputFile)
	}

	return nil
}

func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message, pos := describeSpecError(err)
	_ = formatter.Error(code, message, pos)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), err)
}

// describeSpecError extracts a stable error code, message, and
// (if available) a "file:line:column" position string from an error
// returned by loadControlSpec.
func describeSpecError(err error) (code, message, pos string) {
	var compileErr *cuespec.CompileError
	if errors.As(err, &compileErr) {
		code = MapFieldToErrorCode(compileErr.Field)
		message = compileErr.Message
		if compileErr.Pos.IsValid() {
			pos = fmt.Sprintf("%s:%d:%d", compileErr.Pos.Filename(), compileErr.Pos.Line(), compileErr.Pos.Column())
		}
		return code, message, pos
	}
	return ErrCodeGeneric, err.Error(), ""
}

// writeSpecToFile writes cs to filename as indented canonical JSON
// (indentation is for readability only — ir.SpecificationHash always
// hashes the unindented canonical form).
func writeSpecToFile(cs *spec.ControlSpec, filename string) error {
	canonical, err := ir.MarshalCanonical(cs.ToObject())
	if err != nil {
		return fmt.Errorf("marshaling specification: %w", err)
	}
	var pretty map[string]any
	if err := json.Unmarshal(canonical, &pretty); err != nil {
		return fmt.Errorf("re-parsing canonical specification: %w", err)
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling specification: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

// ErrCodeGeneric is used when an error cannot be attributed to a
// specific field.
const ErrCodeGeneric = "E000"

// MapFieldToErrorCode assigns a stable error code to a CompileError's
// field, for machine-readable JSON output.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "governance", "population", "assertions", "evidence":
		return "E001"
	case "cue":
		return "E002"
	default:
		return ErrCodeGeneric
	}
}
