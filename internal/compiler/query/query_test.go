package query

import (
	"testing"

	"github.com/sebdah/goldie/v2"
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

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New([]manifest.Entry{
		{
			Alias: "invoices", Path: "/evidence/invoices.parquet", ContentHash: "h1", RowCount: 100,
			Columns: []manifest.Column{
				{Name: "invoice_id", LogicalType: manifest.TypeString},
				{Name: "amount", LogicalType: manifest.TypeNumeric},
				{Name: "status", LogicalType: manifest.TypeString},
			},
		},
	})
	require.NoError(t, err)
	return m
}

func TestAssembleRowLevelShape(t *testing.T) {
	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Equal(t, RowLevel, plan.Shape)
	assert.Contains(t, plan.SQL, "WITH invoices AS (SELECT * FROM read_parquet('/evidence/invoices.parquet'))")
	assert.Contains(t, plan.SQL, "WHERE (1=1) AND (((status = 'closed') IS NOT TRUE))")
}

func TestAssemblePopulationCountSQLRowLevel(t *testing.T) {
	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, plan.PopulationCountSQL, "SELECT COUNT(*) AS total_population")
	assert.Contains(t, plan.PopulationCountSQL, "WHERE 1=1")
	assert.NotContains(t, plan.PopulationCountSQL, "IS NOT TRUE")
}

func TestAssemblePopulationCountSQLAggregation(t *testing.T) {
	agg, err := spec.NewAggregation("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, []string{"invoice_id"}, "amount", spec.AggSum, ir.Gt, 10000)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{agg}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, plan.PopulationCountSQL, "SELECT DISTINCT invoice_id")
	assert.Contains(t, plan.PopulationCountSQL, "COUNT(*) AS total_population")
}

func TestAssembleRowLevelGolden(t *testing.T) {
	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "row_level_value_match", []byte(plan.SQL))
}

func TestAssembleAggregationShape(t *testing.T) {
	agg, err := spec.NewAggregation("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, []string{"invoice_id"}, "amount", spec.AggSum, ir.Gt, 10000)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{agg}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Equal(t, AggregationShape, plan.Shape)
	assert.Contains(t, plan.SQL, "GROUP BY invoice_id")
	assert.Contains(t, plan.SQL, "HAVING (SUM(amount) > 10000) IS NOT TRUE")
}

func TestAssembleSamplingClauseBySize(t *testing.T) {
	seed := 7
	sampling, err := spec.NewSamplingStrategy("population.sampling", true, spec.SamplingRandom, 200, 0, "", &seed, "annual sample")
	require.NoError(t, err)

	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices", Sampling: sampling}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "TABLESAMPLE RESERVOIR(200 ROWS) REPEATABLE (7)")
}

func TestAssembleSamplingClauseByPercentage(t *testing.T) {
	sampling, err := spec.NewSamplingStrategy("population.sampling", true, spec.SamplingRandom, 0, 10.5, "", nil, "annual sample")
	require.NoError(t, err)

	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices", Sampling: sampling}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "TABLESAMPLE RESERVOIR(10.5%)")
	assert.NotContains(t, plan.SQL, "REPEATABLE")
}

func TestAssembleIdempotent(t *testing.T) {
	vm, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm}, testEvidence(t))
	require.NoError(t, err)
	man := testManifest(t)

	plan1, err := Assemble(cs, man)
	require.NoError(t, err)
	plan2, err := Assemble(cs, man)
	require.NoError(t, err)
	assert.Equal(t, plan1.SQL, plan2.SQL)
}

func TestAssembleMultipleAssertionsCombineWithOR(t *testing.T) {
	vm1, err := spec.NewValueMatch("assertions[0]", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: 2}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)
	vm2, err := spec.NewValueMatch("assertions[1]", spec.AssertionBase{ID: "a2", Desc: "x", Materiality: 2}, "amount", ir.Gt, ir.NewInt(0), nil, false)
	require.NoError(t, err)

	cs, err := spec.New(testGovernance(t), nil, spec.Population{BaseDataset: "invoices"}, []spec.Assertion{vm1, vm2}, testEvidence(t))
	require.NoError(t, err)

	plan, err := Assemble(cs, testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "(status = 'closed') IS NOT TRUE OR (amount > 0) IS NOT TRUE")
}
