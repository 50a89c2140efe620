package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attestable/controlcore/internal/fixture"
	"github.com/attestable/controlcore/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Manifest string // optional: if set, also check the spec against a manifest
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <spec-path>",
		Short: "Validate a control specification without recording an execution",
		Long: `Validate a CUE control specification.

Always checks the specification's own invariants (closed schema,
construction-time validation). With --manifest, additionally checks
every field the specification references against an Evidence
Manifest, surfacing schema drift before any query is run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to an Evidence Manifest YAML file to validate against")

	return cmd
}

func runValidate(opts *ValidateOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cs, err := loadControlSpec(specPath)
	if err != nil {
		return outputValidateResult(formatter, err)
	}
	formatter.VerboseLog("specification %s parses and satisfies its own invariants", cs.Governance.ControlID)

	if opts.Manifest == "" {
		return outputValidateResult(formatter, nil)
	}

	man, err := fixture.LoadManifest(opts.Manifest)
	if err != nil {
		return outputValidateResult(formatter, fmt.Errorf("loading manifest: %w", err))
	}

	if err := cs.Validate(man.Aliases()); err != nil {
		return outputValidateResult(formatter, err)
	}
	formatter.VerboseLog("every ontology binding and dataset alias resolves against %s", opts.Manifest)

	if err := schema.Validate(cs, man); err != nil {
		return outputValidateResult(formatter, err)
	}
	formatter.VerboseLog("every referenced field resolves against the evidence schema")

	return outputValidateResult(formatter, nil)
}

func outputValidateResult(formatter *OutputFormatter, err error) error {
	if err == nil {
		if formatter.Format == "json" {
			return formatter.Success(ValidationResult{Valid: true})
		}
		fmt.Fprintln(formatter.Writer, "✓ specification valid")
		return nil
	}

	code, message, _ := describeSpecError(err)
	if formatter.Format == "json" {
		if encErr := formatter.Success(ValidationResult{Valid: false, Code: code, Error: message}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ specification invalid [%s]: %s\n", code, message)
	}

	// Validation failures are distinct from a compilation-time load
	// error only in that a specification error is still a command
	// error here: nothing was executed and no ledger entry exists.
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
