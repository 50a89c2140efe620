package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attestable/controlcore/internal/ledger"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	LedgerPath string
}

// ReportData is the machine-readable shape of a report invocation: a
// past execution plus its current integrity view.
type ReportData struct {
	Execution ledger.Execution         `json:"execution"`
	Integrity []ledger.DatasetIntegrity `json:"integrity"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <execution-id>",
		Short: "Read back a recorded execution and its current dataset integrity",
		Long: `Report reads one Executions row back out of the ledger by ID, along
with the Integrity View for every dataset that execution referenced:
whether the content hash recorded at execution time still matches the
most recently ingested manifest row for that dataset alias.

A dataset reporting invalid means the evidence file backing that
alias has changed since the execution ran — the verdict this report
shows was computed against evidence that may no longer be current.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.LedgerPath, "db", "controlcore.db", "path to the ledger SQLite database")

	return cmd
}

func runReport(opts *ReportOptions, executionID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := ledger.Open(opts.LedgerPath)
	if err != nil {
		return outputReportError(formatter, fmt.Errorf("opening ledger: %w", err))
	}
	defer store.Close()

	ctx := cmd.Context()

	execution, err := store.ReadExecution(ctx, executionID)
	if err != nil {
		return outputReportError(formatter, fmt.Errorf("reading execution %s: %w", executionID, err))
	}

	integrity, err := store.ReadIntegrity(ctx, executionID)
	if err != nil {
		return outputReportError(formatter, fmt.Errorf("reading integrity for %s: %w", executionID, err))
	}

	return outputReportSuccess(formatter, ReportData{Execution: execution, Integrity: integrity})
}

func outputReportSuccess(formatter *OutputFormatter, data ReportData) error {
	if formatter.Format == "json" {
		if err := formatter.Success(data); err != nil {
			return err
		}
		for _, d := range data.Integrity {
			if !d.Valid {
				return NewExitError(ExitFailure, "one or more referenced datasets have changed since this execution ran")
			}
		}
		return nil
	}

	e := data.Execution
	fmt.Fprintf(formatter.Writer, "%s v%s  execution %s\n", e.ControlID, e.ControlVersion, e.ID)
	fmt.Fprintf(formatter.Writer, "  verdict=%s executed_at=%s\n", e.Verdict, e.ExecutedAt.Format("2006-01-02T15:04:05Z"))
	if e.ErrorKind != "" {
		fmt.Fprintf(formatter.Writer, "  error_kind=%s error_message=%s\n", e.ErrorKind, e.ErrorMessage)
	} else {
		fmt.Fprintf(formatter.Writer, "  population=%d exceptions=%d rate=%.2f%% threshold=%.2f%%\n",
			e.TotalPopulation, e.ExceptionCount, e.ExceptionRatePercent, e.EffectiveThresholdPercent)
	}

	fmt.Fprintln(formatter.Writer, "  integrity:")
	anyInvalid := false
	for _, d := range data.Integrity {
		status := "VALID"
		if !d.Valid {
			status = "INVALID"
			anyInvalid = true
		}
		fmt.Fprintf(formatter.Writer, "    %-20s %s\n", d.DatasetAlias, status)
	}

	if anyInvalid {
		return NewExitError(ExitFailure, "one or more referenced datasets have changed since this execution ran")
	}
	return nil
}

func outputReportError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeGeneric, err.Error(), "")
	return WrapExitError(ExitCommandError, err.Error(), err)
}
