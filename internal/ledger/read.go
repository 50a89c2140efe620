package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Execution is one row read back from the Executions relation.
type Execution struct {
	ID                        string
	ControlID                 string
	ControlVersion            string
	QueryText                 string
	Verdict                   string
	ErrorKind                 string
	ErrorMessage              string
	TotalPopulation           int
	ExceptionCount            int
	ExceptionRatePercent      float64
	EffectiveThresholdPercent float64
	ExceptionSampleJSON       string
	ExecutedAt                time.Time
}

// ReadExecution retrieves a single execution by ID. Returns
// sql.ErrNoRows if not found.
func (s *Store) ReadExecution(ctx context.Context, id string) (Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, control_id, control_version, query_text, verdict,
		       COALESCE(error_kind, ''), COALESCE(error_message, ''),
		       total_population, exception_count,
		       COALESCE(exception_rate_percent, 0), COALESCE(effective_threshold_percent, 0),
		       exception_sample_json, executed_at
		FROM executions
		WHERE id = ?
	`, id)
	return scanExecution(row)
}

func scanExecution(row *sql.Row) (Execution, error) {
	var e Execution
	var executedAt string
	if err := row.Scan(
		&e.ID, &e.ControlID, &e.ControlVersion, &e.QueryText, &e.Verdict,
		&e.ErrorKind, &e.ErrorMessage,
		&e.TotalPopulation, &e.ExceptionCount,
		&e.ExceptionRatePercent, &e.EffectiveThresholdPercent,
		&e.ExceptionSampleJSON, &executedAt,
	); err != nil {
		return Execution{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, executedAt)
	if err != nil {
		return Execution{}, fmt.Errorf("ledger: parse executed_at: %w", err)
	}
	e.ExecutedAt = t
	return e, nil
}

// DatasetIntegrity is one row of the Integrity View: whether the
// manifest hash an execution recorded for a dataset still matches the
// hash currently on file for that alias.
type DatasetIntegrity struct {
	DatasetAlias string
	StoredHash   string
	CurrentHash  string
	Valid        bool
}

// ReadIntegrity implements the read-only Integrity View (§4.11) for a
// single execution: for every dataset the execution referenced, it
// reports VALID iff the hash recorded inline at execution time still
// matches the most recently ingested manifest row for that alias.
//
// "Most recently ingested" is the manifest row with the greatest
// rowid for the alias — manifests is append-only, so rowid order is
// ingestion order.
func (s *Store) ReadIntegrity(ctx context.Context, executionID string) ([]DatasetIntegrity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT em.dataset_alias, em.content_hash, current.content_hash
		FROM execution_manifests em
		LEFT JOIN (
			SELECT dataset_alias, content_hash
			FROM manifests
			WHERE rowid IN (SELECT MAX(rowid) FROM manifests GROUP BY dataset_alias)
		) AS current ON current.dataset_alias = em.dataset_alias
		WHERE em.execution_id = ?
		ORDER BY em.dataset_alias ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: read integrity: %w", err)
	}
	defer rows.Close()

	var out []DatasetIntegrity
	for rows.Next() {
		var d DatasetIntegrity
		var current sql.NullString
		if err := rows.Scan(&d.DatasetAlias, &d.StoredHash, &current); err != nil {
			return nil, fmt.Errorf("ledger: read integrity: scan: %w", err)
		}
		d.CurrentHash = current.String
		d.Valid = current.Valid && current.String == d.StoredHash
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read integrity: iterate: %w", err)
	}
	if out == nil {
		out = []DatasetIntegrity{}
	}
	return out, nil
}
