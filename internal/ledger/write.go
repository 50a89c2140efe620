package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attestable/controlcore/internal/engine"
	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/spec"
	"github.com/attestable/controlcore/internal/verdict"
)

// ApprovalMetadata carries the out-of-band sign-off a specification
// must have before it is recorded in the ledger.
type ApprovalMetadata struct {
	ApprovedBy string
	ApprovedAt time.Time
}

// WriteSpecification records a ControlSpec under its (control_id,
// version) primary key. Idempotent: writing the same (control_id,
// version) twice is a no-op after the first write.
func (s *Store) WriteSpecification(ctx context.Context, cs *spec.ControlSpec, approval ApprovalMetadata) error {
	canonical, err := ir.MarshalCanonical(cs.ToObject())
	if err != nil {
		return fmt.Errorf("ledger: write specification: marshal: %w", err)
	}
	hash, err := ir.SpecificationHash(cs.ToObject())
	if err != nil {
		return fmt.Errorf("ledger: write specification: hash: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO specifications (control_id, version, spec_json, spec_hash, approved_by, approved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(control_id, version) DO NOTHING
	`,
		cs.Governance.ControlID,
		cs.Governance.Version,
		string(canonical),
		hash,
		approval.ApprovedBy,
		approval.ApprovedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger: write specification: %w", err)
	}
	slog.Info("ledger: specification written", "control_id", cs.Governance.ControlID, "version", cs.Governance.Version)
	return nil
}

// ExecutionRecord is one Execution Report ready for the ledger: the
// compiled query text, the resolved verdict, and the sanitized
// exception sample, keyed by the specification it ran against.
type ExecutionRecord struct {
	ID                        string // generated if empty
	ControlID                 string
	ControlVersion            string
	QueryText                 string
	Verdict                   verdict.Verdict
	ErrorKind                 string
	ErrorMessage              string
	TotalPopulation           int
	ExceptionCount            int
	ExceptionRatePercent      float64
	EffectiveThresholdPercent float64
	ExceptionSample           []engine.Row
	ExecutedAt                time.Time
}

// WriteExecution writes an execution and the manifest entries it
// referenced in a single transaction, per §5's "each execution is
// written in a single transaction covering the Executions row and any
// new Manifests row". Returns the execution's ID (generated if
// rec.ID was empty). Mutating an existing execution row is never
// attempted — the insert is ON CONFLICT(id) DO NOTHING, so replaying
// the same ID is a silent no-op rather than an overwrite.
func (s *Store) WriteExecution(ctx context.Context, rec ExecutionRecord, entries []manifest.Entry) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	sampleArr := sanitizeSample(rec.ExceptionSample)
	sampleJSON, err := ir.MarshalCanonical(sampleArr)
	if err != nil {
		return "", fmt.Errorf("ledger: write execution: marshal exception sample: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ledger: write execution: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Manifests (no dependency on the execution row) go first, the
	// execution row second, and the execution_manifests links last —
	// both of its foreign keys (executions.id, manifests' composite
	// key) must already exist or foreign_keys=ON rejects the insert.
	for _, entry := range entries {
		schemaObj := entry.ToObject()
		schemaJSON, err := ir.MarshalCanonical(schemaObj)
		if err != nil {
			return "", fmt.Errorf("ledger: write execution: marshal manifest %q: %w", entry.Alias, err)
		}
		schemaHash, err := ir.ManifestHash(schemaObj)
		if err != nil {
			return "", fmt.Errorf("ledger: write execution: hash manifest %q: %w", entry.Alias, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO manifests
			(dataset_alias, content_hash, path, row_count, schema_json, schema_hash, origin_system, extraction_instant, schema_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(dataset_alias, content_hash) DO NOTHING
		`,
			string(entry.Alias),
			entry.ContentHash,
			entry.Path,
			entry.RowCount,
			string(schemaJSON),
			schemaHash,
			entry.SourceMetadata.OriginSystem,
			entry.SourceMetadata.ExtractionInstant.String(),
			entry.SourceMetadata.SchemaVersion,
		)
		if err != nil {
			return "", fmt.Errorf("ledger: write execution: insert manifest %q: %w", entry.Alias, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions
		(id, control_id, control_version, query_text, verdict, error_kind, error_message,
		 total_population, exception_count, exception_rate_percent, effective_threshold_percent,
		 exception_sample_json, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		rec.ControlID,
		rec.ControlVersion,
		rec.QueryText,
		string(rec.Verdict),
		nullableString(rec.ErrorKind),
		nullableString(rec.ErrorMessage),
		rec.TotalPopulation,
		rec.ExceptionCount,
		rec.ExceptionRatePercent,
		rec.EffectiveThresholdPercent,
		string(sampleJSON),
		rec.ExecutedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("ledger: write execution: insert execution: %w", err)
	}

	for _, entry := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO execution_manifests (execution_id, dataset_alias, content_hash)
			VALUES (?, ?, ?)
			ON CONFLICT(execution_id, dataset_alias) DO NOTHING
		`, id, string(entry.Alias), entry.ContentHash)
		if err != nil {
			return "", fmt.Errorf("ledger: write execution: link manifest %q: %w", entry.Alias, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ledger: write execution: commit: %w", err)
	}

	slog.Info("ledger: execution written", "id", id, "control_id", rec.ControlID, "verdict", rec.Verdict, "manifests", len(entries))
	return id, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
