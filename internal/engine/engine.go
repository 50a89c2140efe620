// Package engine implements the Execution Engine (§4.9): it runs a
// compiled query.Plan against DuckDB, dry-running it first, then
// computing total_population and collecting exception rows. It opens a
// fresh, stateless analytical session per control, per §5's
// single-writer-per-session concurrency model.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/attestable/controlcore/internal/compiler/query"
)

// maxExceptionSample is the cap on exception rows persisted into a
// Result — §4.9 requires "all exception rows" be counted but only the
// first 100 be retained.
const maxExceptionSample = 100

// Config carries the optional resource ceiling for a session.
type Config struct {
	// MemoryCeilingMB is the DuckDB session's memory_limit, in
	// megabytes. Zero leaves the engine's default in place.
	MemoryCeilingMB int
}

// Result is the raw outcome of a successful Execute call: the verdict
// resolver (internal/verdict) turns this into a PASS/FAIL/ERROR
// verdict, and the ledger persists it.
type Result struct {
	TotalPopulation int
	ExceptionCount  int
	ExceptionSample []Row
}

// Execute opens a fresh DuckDB session, dry-runs plan.SQL via EXPLAIN,
// computes total_population from plan.PopulationCountSQL, then runs the
// full query and collects exception rows. ctx's cancellation is
// honored at each of the three stages; a cancellation observed at any
// stage surfaces as an *ExecutionError with Kind == Canceled in
// preference to any other error the session reports.
func Execute(ctx context.Context, plan *query.Plan, cfg Config) (*Result, error) {
	slog.Info("engine: opening session", "memory_ceiling_mb", cfg.MemoryCeilingMB)
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, newError(ExecutionFailed, "open session: %v", err)
	}
	defer db.Close()

	if cfg.MemoryCeilingMB > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA memory_limit='%dMB'", cfg.MemoryCeilingMB)); err != nil {
			return nil, classify(ctx, err, ExecutionFailed)
		}
	}

	slog.Debug("engine: dry-running plan", "sql", plan.SQL)
	if _, err := db.ExecContext(ctx, "EXPLAIN "+plan.SQL); err != nil {
		return nil, classify(ctx, err, CompileRejected)
	}

	totalPopulation, err := queryTotalPopulation(ctx, db, plan.PopulationCountSQL)
	if err != nil {
		return nil, classify(ctx, err, ExecutionFailed)
	}
	slog.Debug("engine: population counted", "total_population", totalPopulation)

	sample, exceptionCount, err := queryExceptions(ctx, db, plan.SQL)
	if err != nil {
		return nil, classify(ctx, err, ExecutionFailed)
	}
	slog.Info("engine: execution complete", "total_population", totalPopulation, "exception_count", exceptionCount)

	return &Result{
		TotalPopulation: totalPopulation,
		ExceptionCount:  exceptionCount,
		ExceptionSample: sample,
	}, nil
}

func queryTotalPopulation(ctx context.Context, db *sql.DB, sqlText string) (int, error) {
	var total int
	if err := db.QueryRowContext(ctx, sqlText).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func queryExceptions(ctx context.Context, db *sql.DB, sqlText string) ([]Row, int, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}

	var sample []Row
	count := 0
	values := make([]any, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, 0, err
		}
		count++
		if len(sample) < maxExceptionSample {
			row := make(Row, len(cols))
			for i, col := range cols {
				row[i].Key = col
				row[i].Value = toScalar(values[i])
			}
			sample = append(sample, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return sample, count, nil
}

// classify wraps err as an *ExecutionError. A ctx cancellation observed
// at the point of failure always takes precedence over kind, per §4.9's
// cancellation-surfaces-as-Canceled contract.
func classify(ctx context.Context, err error, kind ErrorKind) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(Canceled, "%v", ctxErr)
	}
	return newError(kind, "%v", err)
}
