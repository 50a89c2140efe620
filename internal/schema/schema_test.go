package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
	"github.com/attestable/controlcore/internal/spec"
)

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

func invoicesManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New([]manifest.Entry{
		{
			Alias: "invoices", Path: "/evidence/invoices.parquet", ContentHash: "h1", RowCount: 100,
			Columns: []manifest.Column{
				{Name: "invoice_id", LogicalType: manifest.TypeString},
				{Name: "amount", LogicalType: manifest.TypeNumeric},
				{Name: "status", LogicalType: manifest.TypeString},
				{Name: "invoice_date", LogicalType: manifest.TypeDate},
			},
		},
		{
			Alias: "accounts", Path: "/evidence/accounts.parquet", ContentHash: "h2", RowCount: 50,
			Columns: []manifest.Column{
				{Name: "account_id", LogicalType: manifest.TypeString},
				{Name: "owner", LogicalType: manifest.TypeString},
			},
		},
	})
	require.NoError(t, err)
	return m
}

func TestValidateResolvesKnownField(t *testing.T) {
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	assert.NoError(t, Validate(cs, invoicesManifest(t)))
}

func TestValidateReportsSchemaDriftWithNearest(t *testing.T) {
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "statuss", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, "statuss", drift.Field)
	assert.Contains(t, drift.Nearest, "status")
}

func TestValidateResolvesQualifiedField(t *testing.T) {
	cc, err := spec.NewColumnComparison("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "invoices.status", ir.Eq, "accounts.owner")
	require.NoError(t, err)

	join, err := spec.NewJoinLeft("population.steps[0]", "invoices", "accounts", []string{"invoice_id"}, []string{"account_id"})
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{
		BaseDataset: "invoices",
		Steps:       []spec.Step{{StepID: "joined", Action: join}},
	}, []spec.Assertion{cc}, testEvidence(t))
	require.NoError(t, err)

	assert.NoError(t, Validate(cs, invoicesManifest(t)))
}

func TestValidateRejectsNumericComparisonOnStringColumn(t *testing.T) {
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Gt, ir.NewInt(5), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "status", mismatch.Field)
}

func TestValidateRejectsDateArithmeticOnStringColumn(t *testing.T) {
	tdm, err := spec.NewTemporalDateMath("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Lte, "invoice_date", 5)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{tdm}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "status", mismatch.Field)
	assert.Equal(t, "date arithmetic", mismatch.Operation)
}

func TestValidateRejectsSumAggregationOnStringColumn(t *testing.T) {
	agg, err := spec.NewAggregation("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, []string{"invoice_id"}, "status", spec.AggSum, ir.Gt, 10)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{agg}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestValidateAllowsMinMaxAggregationOnStringColumn(t *testing.T) {
	agg, err := spec.NewAggregation("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, []string{"invoice_id"}, "status", spec.AggMax, ir.Gt, 0)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{agg}, testEvidence(t))
	require.NoError(t, err)

	assert.NoError(t, Validate(cs, invoicesManifest(t)))
}

func TestValidateChecksTemporalSequenceFields(t *testing.T) {
	ts, err := spec.NewTemporalSequence("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, []string{"status", "invoice_date"})
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{ts}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestValidateExcludesJoinRightKeyFromFlatSet(t *testing.T) {
	join, err := spec.NewJoinLeft("population.steps[0]", "invoices", "accounts", []string{"invoice_id"}, []string{"account_id"})
	require.NoError(t, err)

	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "account_id", ir.Eq, ir.NewString("x"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{
		BaseDataset: "invoices",
		Steps:       []spec.Step{{StepID: "joined", Action: join}},
	}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, "account_id", drift.Field)
}

func TestValidateReportsUnknownBaseDataset(t *testing.T) {
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "unknown"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	err = Validate(cs, invoicesManifest(t))
	require.Error(t, err)
	var missing *manifest.ErrMissing
	assert.ErrorAs(t, err, &missing)
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("status", "status"))
	assert.Equal(t, 1, editDistance("status", "statuss"))
	assert.Equal(t, 1, editDistance("status", "statu"))
}
