package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/attestable/controlcore/internal/compiler/query"
	"github.com/attestable/controlcore/internal/engine"
	"github.com/attestable/controlcore/internal/fixture"
	"github.com/attestable/controlcore/internal/ledger"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/schema"
	"github.com/attestable/controlcore/internal/spec"
	"github.com/attestable/controlcore/internal/verdict"
)

// ExecuteOptions holds flags for the execute command.
type ExecuteOptions struct {
	*RootOptions
	ManifestPath  string
	LedgerPath    string
	MemoryCeiling int
	ApprovedBy    string
}

// ExecutionReport is the machine-readable shape of a single execute
// invocation, mirroring the Execution Report the ledger stores.
type ExecutionReport struct {
	LedgerID                  string  `json:"ledger_id"`
	ControlID                 string  `json:"control_id"`
	ControlVersion            string  `json:"control_version"`
	Verdict                   string  `json:"verdict"`
	ErrorKind                 string  `json:"error_kind,omitempty"`
	ErrorMessage              string  `json:"error_message,omitempty"`
	TotalPopulation           int     `json:"total_population"`
	ExceptionCount            int     `json:"exception_count"`
	ExceptionRatePercent      float64 `json:"exception_rate_percent"`
	EffectiveThresholdPercent float64 `json:"effective_threshold_percent"`
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "execute <spec-path>",
		Short: "Compile, validate, and execute a control specification, recording the verdict in the ledger",
		Long: `Execute runs the full one-shot pipeline for a single control:

  1. compile the CUE specification
  2. load the Evidence Manifest and check schema drift
  3. compile population + assertions to analytical SQL
  4. run the SQL against the manifest's evidence files
  5. resolve a PASS/FAIL/ERROR verdict
  6. record the execution (and the dataset hashes it read) in the ledger

A --manifest flag is required: the evidence inputs are never inferred.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ManifestPath, "manifest", "", "path to an Evidence Manifest YAML file (required)")
	cmd.Flags().StringVar(&opts.LedgerPath, "db", "controlcore.db", "path to the ledger SQLite database")
	cmd.Flags().IntVar(&opts.MemoryCeiling, "memory-ceiling-mb", 512, "DuckDB memory ceiling in megabytes")
	cmd.Flags().StringVar(&opts.ApprovedBy, "approved-by", "", "approver identity to record if this control's specification is new to the ledger")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runExecute(opts *ExecuteOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cs, err := loadControlSpec(specPath)
	if err != nil {
		return outputExecuteError(formatter, err)
	}
	formatter.VerboseLog("compiled control %s version %s", cs.Governance.ControlID, cs.Governance.Version)

	man, err := fixture.LoadManifest(opts.ManifestPath)
	if err != nil {
		return outputExecuteError(formatter, fmt.Errorf("loading manifest: %w", err))
	}

	if err := cs.Validate(man.Aliases()); err != nil {
		return outputExecuteError(formatter, err)
	}
	if err := schema.Validate(cs, man); err != nil {
		return outputExecuteError(formatter, err)
	}
	formatter.VerboseLog("specification resolves cleanly against %s", opts.ManifestPath)

	plan, err := query.Assemble(cs, man)
	if err != nil {
		return outputExecuteError(formatter, fmt.Errorf("assembling query: %w", err))
	}
	formatter.VerboseLog("assembled %s query referencing %d dataset(s)", plan.Shape, len(plan.ReferencedPaths))

	store, err := ledger.Open(opts.LedgerPath)
	if err != nil {
		return outputExecuteError(formatter, fmt.Errorf("opening ledger: %w", err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	if err := store.WriteSpecification(ctx, cs, ledger.ApprovalMetadata{
		ApprovedBy: opts.ApprovedBy,
		ApprovedAt: time.Now().UTC(),
	}); err != nil {
		return outputExecuteError(formatter, fmt.Errorf("recording specification: %w", err))
	}

	rec := buildExecutionRecord(cs, plan, opts.MemoryCeiling, ctx)

	entries, err := entriesReferenced(man, plan)
	if err != nil {
		return outputExecuteError(formatter, fmt.Errorf("resolving referenced datasets: %w", err))
	}

	id, err := store.WriteExecution(ctx, rec, entries)
	if err != nil {
		return outputExecuteError(formatter, fmt.Errorf("recording execution: %w", err))
	}

	return outputExecuteSuccess(formatter, id, rec)
}

// buildExecutionRecord runs plan against the engine and resolves its
// outcome to a verdict, folding an *engine.ExecutionError into the
// record's ErrorKind/ErrorMessage fields rather than returning an
// error: a failed execution is itself a ledger-worthy outcome, never
// a command failure.
func buildExecutionRecord(cs *spec.ControlSpec, plan *query.Plan, memCeilingMB int, ctx context.Context) ledger.ExecutionRecord {
	rec := ledger.ExecutionRecord{
		ControlID:      cs.Governance.ControlID,
		ControlVersion: cs.Governance.Version,
		QueryText:      plan.SQL,
		ExecutedAt:     time.Now().UTC(),
	}

	result, err := engine.Execute(ctx, plan, engine.Config{MemoryCeilingMB: memCeilingMB})
	if err != nil {
		rec.Verdict = verdict.Error
		switch {
		case engine.IsCompileRejected(err):
			rec.ErrorKind = string(engine.CompileRejected)
		case engine.IsCanceled(err):
			rec.ErrorKind = string(engine.Canceled)
		default:
			rec.ErrorKind = string(engine.ExecutionFailed)
		}
		rec.ErrorMessage = err.Error()
		return rec
	}

	res := verdict.Resolve(result.TotalPopulation, result.ExceptionCount, cs.Assertions, string(cs.Population.BaseDataset))

	rec.Verdict = res.Verdict
	rec.ErrorKind = string(res.ErrorKind)
	rec.ErrorMessage = res.ErrorMessage
	rec.TotalPopulation = result.TotalPopulation
	rec.ExceptionCount = result.ExceptionCount
	rec.ExceptionRatePercent = res.ExceptionRatePercent
	rec.EffectiveThresholdPercent = res.EffectiveThreshold
	rec.ExceptionSample = result.ExceptionSample
	return rec
}

// entriesReferenced resolves the manifest entries for every dataset
// alias plan.SQL actually read, so the ledger only ever records the
// evidence a given execution depended on.
func entriesReferenced(man *manifest.Manifest, plan *query.Plan) ([]manifest.Entry, error) {
	entries := make([]manifest.Entry, 0, len(plan.ReferencedPaths))
	for alias := range plan.ReferencedPaths {
		entry, err := man.EntryOf(alias)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func outputExecuteSuccess(formatter *OutputFormatter, id string, rec ledger.ExecutionRecord) error {
	report := ExecutionReport{
		LedgerID:                  id,
		ControlID:                 rec.ControlID,
		ControlVersion:            rec.ControlVersion,
		Verdict:                   string(rec.Verdict),
		ErrorKind:                 rec.ErrorKind,
		ErrorMessage:              rec.ErrorMessage,
		TotalPopulation:           rec.TotalPopulation,
		ExceptionCount:            rec.ExceptionCount,
		ExceptionRatePercent:      rec.ExceptionRatePercent,
		EffectiveThresholdPercent: rec.EffectiveThresholdPercent,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		switch rec.Verdict {
		case verdict.Pass:
			fmt.Fprintf(formatter.Writer, "✓ PASS  %s v%s  (ledger id %s)\n", rec.ControlID, rec.ControlVersion, id)
			fmt.Fprintf(formatter.Writer, "  population=%d exceptions=%d rate=%.2f%% threshold=%.2f%%\n",
				rec.TotalPopulation, rec.ExceptionCount, rec.ExceptionRatePercent, rec.EffectiveThresholdPercent)
		case verdict.Fail:
			fmt.Fprintf(formatter.Writer, "✗ FAIL  %s v%s  (ledger id %s)\n", rec.ControlID, rec.ControlVersion, id)
			fmt.Fprintf(formatter.Writer, "  population=%d exceptions=%d rate=%.2f%% threshold=%.2f%%\n",
				rec.TotalPopulation, rec.ExceptionCount, rec.ExceptionRatePercent, rec.EffectiveThresholdPercent)
		default:
			fmt.Fprintf(formatter.Writer, "! ERROR %s v%s  [%s] %s  (ledger id %s)\n",
				rec.ControlID, rec.ControlVersion, rec.ErrorKind, rec.ErrorMessage, id)
		}
	}

	if rec.Verdict != verdict.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("verdict %s", rec.Verdict))
	}
	return nil
}

func outputExecuteError(formatter *OutputFormatter, err error) error {
	code, message, pos := describeSpecError(err)
	_ = formatter.Error(code, message, pos)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), err)
}
