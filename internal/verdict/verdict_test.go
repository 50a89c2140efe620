package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/spec"
)

func assertion(t *testing.T, materiality float64) spec.Assertion {
	t.Helper()
	vm, err := spec.NewValueMatch("a", spec.AssertionBase{ID: "a1", Desc: "x", Materiality: materiality}, "status", ir.Eq, ir.NewString("closed"), nil, false)
	require.NoError(t, err)
	return vm
}

func TestResolveZeroPopulationIsError(t *testing.T) {
	r := Resolve(0, 0, []spec.Assertion{assertion(t, 5)}, "invoices")
	assert.Equal(t, Error, r.Verdict)
	assert.Equal(t, ZeroPopulation, r.ErrorKind)
	assert.Contains(t, r.ErrorMessage, "invoices")
}

func TestResolvePassesWithinThreshold(t *testing.T) {
	r := Resolve(100, 5, []spec.Assertion{assertion(t, 5)}, "invoices")
	assert.Equal(t, Pass, r.Verdict)
	assert.Equal(t, 5.0, r.ExceptionRatePercent)
	assert.Equal(t, 5.0, r.EffectiveThreshold)
}

func TestResolveFailsAboveThreshold(t *testing.T) {
	r := Resolve(100, 6, []spec.Assertion{assertion(t, 5)}, "invoices")
	assert.Equal(t, Fail, r.Verdict)
}

func TestResolveUsesMaxThresholdAcrossAssertions(t *testing.T) {
	r := Resolve(100, 7, []spec.Assertion{assertion(t, 2), assertion(t, 8)}, "invoices")
	assert.Equal(t, 8.0, r.EffectiveThreshold)
	assert.Equal(t, Pass, r.Verdict)
}

func TestResolveRoundsBankersToTwoDigits(t *testing.T) {
	r := Resolve(8, 1, []spec.Assertion{assertion(t, 100)}, "invoices")
	assert.Equal(t, 12.5, r.ExceptionRatePercent)
}

func TestRoundBankersTiesToEven(t *testing.T) {
	assert.Equal(t, 0.12, roundBankers(0.125, 2))
	assert.Equal(t, 0.14, roundBankers(0.135, 2))
	assert.Equal(t, 2.0, roundBankers(2.5, 0))
	assert.Equal(t, 4.0, roundBankers(3.5, 0))
}

func TestResolveExactlyAtThresholdPasses(t *testing.T) {
	r := Resolve(100, 5, []spec.Assertion{assertion(t, 5)}, "invoices")
	assert.Equal(t, Pass, r.Verdict)
}
