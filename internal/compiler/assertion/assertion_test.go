package assertion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/spec"
)

func base(id string) spec.AssertionBase {
	return spec.AssertionBase{ID: id, Desc: "test", Materiality: 2}
}

func TestCompileValueMatchScalar(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t, "status = 'closed'", compiled[0].Expression)
	assert.Equal(t, "(status = 'closed') IS NOT TRUE", compiled[0].ExceptionPredicate)
}

func TestCompileValueMatchIgnoreCaseAndSpace(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "status", ir.Eq, ir.NewString("Closed"), nil, true)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t, "TRIM(UPPER(CAST(status AS VARCHAR))) = TRIM(UPPER(CAST('Closed' AS VARCHAR)))", compiled[0].Expression)
}

func TestCompileValueMatchIgnoreCaseIgnoredForNonString(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "amount", ir.Gt, ir.NewInt(100), nil, true)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t, "amount > 100", compiled[0].Expression)
}

func TestCompileValueMatchNullRewrite(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "closed_at", ir.Neq, ir.NewNull(), nil, false)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t, "closed_at IS NOT NULL", compiled[0].Expression)
	assert.NotContains(t, compiled[0].Expression, "= NULL")
	assert.NotContains(t, compiled[0].Expression, "!= NULL")
}

func TestCompileValueMatchList(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "status", ir.In, nil,
		[]ir.Scalar{ir.NewString("open"), ir.NewString("pending")}, false)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t, "status IN ('open', 'pending')", compiled[0].Expression)
}

func TestCompileValueMatchListIgnoreCaseAndSpace(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "approver_title", ir.In, nil,
		[]ir.Scalar{ir.NewString("SVP"), ir.NewString("EVP"), ir.NewString("CEO"), ir.NewString("CFO")}, true)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{vm})
	require.NoError(t, err)
	assert.Equal(t,
		"TRIM(UPPER(CAST(approver_title AS VARCHAR))) IN (TRIM(UPPER(CAST('SVP' AS VARCHAR))), TRIM(UPPER(CAST('EVP' AS VARCHAR))), TRIM(UPPER(CAST('CEO' AS VARCHAR))), TRIM(UPPER(CAST('CFO' AS VARCHAR))))",
		compiled[0].Expression)
}

func TestCompileColumnComparison(t *testing.T) {
	cc, err := spec.NewColumnComparison("a", base("a1"), "shipped_date", ir.Lte, "invoice_date")
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{cc})
	require.NoError(t, err)
	assert.Equal(t, "shipped_date <= invoice_date", compiled[0].Expression)
}

func TestCompileTemporalDateMath(t *testing.T) {
	tdm, err := spec.NewTemporalDateMath("a", base("a1"), "order_date", ir.Lte, "ship_date", 5)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{tdm})
	require.NoError(t, err)
	assert.Equal(t, "CAST(order_date AS DATE) <= CAST(ship_date AS DATE) + INTERVAL 5 DAY", compiled[0].Expression)
}

func TestCompileTemporalDateMathNegativeOffset(t *testing.T) {
	tdm, err := spec.NewTemporalDateMath("a", base("a1"), "order_date", ir.Gte, "ship_date", -3)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{tdm})
	require.NoError(t, err)
	assert.Contains(t, compiled[0].Expression, "INTERVAL -3 DAY")
}

func TestCompileAggregation(t *testing.T) {
	agg, err := spec.NewAggregation("a", base("a1"), []string{"region"}, "amount", spec.AggSum, ir.Gt, 10000)
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{agg})
	require.NoError(t, err)
	assert.Equal(t, "SUM(amount) > 10000", compiled[0].Expression)
}

func TestCompileTemporalSequence(t *testing.T) {
	ts, err := spec.NewTemporalSequence("a", base("a1"), []string{"ordered_at", "shipped_at", "delivered_at"})
	require.NoError(t, err)

	compiled, err := CompileAll([]spec.Assertion{ts})
	require.NoError(t, err)
	assert.Equal(t, "ordered_at < shipped_at AND shipped_at < delivered_at", compiled[0].Expression)
}

func TestCombineORJoinsWithOr(t *testing.T) {
	vm1, _ := spec.NewValueMatch("a", base("a1"), "status", ir.Eq, ir.NewString("closed"), nil, false)
	vm2, _ := spec.NewValueMatch("a", base("a2"), "amount", ir.Gt, ir.NewInt(0), nil, false)

	compiled, err := CompileAll([]spec.Assertion{vm1, vm2})
	require.NoError(t, err)

	combined := CombineOR(ExceptionPredicates(compiled))
	assert.Equal(t, "(status = 'closed') IS NOT TRUE OR (amount > 0) IS NOT TRUE", combined)
}

func TestCompileRejectsInvalidFieldIdentifier(t *testing.T) {
	vm, err := spec.NewValueMatch("a", base("a1"), "status; DROP TABLE x", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err) // spec construction does not validate SQL identifier shape

	_, err = CompileAll([]spec.Assertion{vm})
	require.Error(t, err)
}
