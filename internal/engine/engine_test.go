package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/compiler/query"
	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/spec"
)

func writeInvoicesCSV(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "invoices.csv")
	content := "invoice_id,amount,status\n" +
		"1,100,closed\n" +
		"2,200,open\n" +
		"3,300,open\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testManifestWithPath(t *testing.T, path string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New([]manifest.Entry{
		{
			Alias: "invoices", Path: path, ContentHash: "h1", RowCount: 3,
			Columns: []manifest.Column{
				{Name: "invoice_id", LogicalType: manifest.TypeNumeric},
				{Name: "amount", LogicalType: manifest.TypeNumeric},
				{Name: "status", LogicalType: manifest.TypeString},
			},
		},
	})
	require.NoError(t, err)
	return m
}

func TestExecuteRowLevelAgainstCSVFixture(t *testing.T) {
	path := writeInvoicesCSV(t)

	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "status must be closed", Materiality: 0}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := query.Assemble(cs, testManifestWithPath(t, path))
	require.NoError(t, err)

	result, err := Execute(context.Background(), plan, Config{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalPopulation)
	assert.Equal(t, 2, result.ExceptionCount)
	require.Len(t, result.ExceptionSample, 2)
}

func TestExecuteAggregationAgainstCSVFixture(t *testing.T) {
	path := writeInvoicesCSV(t)

	agg, err := spec.NewAggregation("a", spec.AssertionBase{ID: "a1", Desc: "total per invoice", Materiality: 0}, []string{"invoice_id"}, "amount", spec.AggSum, ir.Lte, 250)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{agg}, testEvidence(t))
	require.NoError(t, err)

	plan, err := query.Assemble(cs, testManifestWithPath(t, path))
	require.NoError(t, err)

	result, err := Execute(context.Background(), plan, Config{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalPopulation)
	assert.Equal(t, 1, result.ExceptionCount)
}

func TestExecuteReturnsCompileRejectedForMalformedSQL(t *testing.T) {
	plan := &query.Plan{SQL: "SELECT * FROM nonexistent_table_xyz", PopulationCountSQL: "SELECT 0 AS total_population"}

	_, err := Execute(context.Background(), plan, Config{})
	require.Error(t, err)
	assert.True(t, IsCompileRejected(err))
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeInvoicesCSV(t)
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 0}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)
	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)
	plan, err := query.Assemble(cs, testManifestWithPath(t, path))
	require.NoError(t, err)

	_, err = Execute(ctx, plan, Config{})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
}

func TestToScalarConversions(t *testing.T) {
	assert.Equal(t, ir.NewNull(), toScalar(nil))
	assert.Equal(t, ir.NewInt(5), toScalar(int64(5)))
	assert.Equal(t, ir.NewFloat(1.5), toScalar(float64(1.5)))
	assert.Equal(t, ir.NewBool(true), toScalar(true))
	assert.Equal(t, ir.NewString("x"), toScalar("x"))
	assert.Equal(t, ir.NewString("x"), toScalar([]byte("x")))

	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ir.NewTimestamp(now), toScalar(now))
}

func TestClassifyPrefersCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classify(ctx, assert.AnError, ExecutionFailed)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Canceled, ee.Kind)
}

func TestClassifyUsesGivenKindWithoutCancellation(t *testing.T) {
	err := classify(context.Background(), assert.AnError, ExecutionFailed)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ExecutionFailed, ee.Kind)
}

func testGovernance(t *testing.T) spec.Governance {
	t.Helper()
	g, err := spec.NewGovernance("CTRL-AR-014", "1.0.0", "Controller", spec.Quarterly, []string{"SOX 404"}, "objective")
	require.NoError(t, err)
	return g
}

func testEvidence(t *testing.T) spec.EvidenceRequirements {
	t.Helper()
	e, err := spec.NewEvidenceRequirements(7, spec.RequiresHumanSignoff, "ar-exceptions")
	require.NoError(t, err)
	return e
}
