package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/ir"
)

func TestNewFilterComparisonRejectsListOperator(t *testing.T) {
	_, err := NewFilterComparison("population.steps[0]", "amount", ir.In, ir.NewInt(10))
	require.Error(t, err)
	var si *SpecInvalid
	require.ErrorAs(t, err, &si)
	assert.Equal(t, "population.steps[0].operator", si.Path)
}

func TestNewFilterComparisonRequiresField(t *testing.T) {
	_, err := NewFilterComparison("population.steps[0]", "", ir.Eq, ir.NewInt(10))
	require.Error(t, err)
}

func TestNewFilterComparisonNullRequiresEquality(t *testing.T) {
	_, err := NewFilterComparison("population.steps[0]", "amount", ir.Gt, ir.NewNull())
	require.Error(t, err)

	step, err := NewFilterComparison("population.steps[0]", "amount", ir.Eq, ir.NewNull())
	require.NoError(t, err)
	assert.Equal(t, ir.Eq, step.Operator)
}

func TestNewFilterInListRequiresNonEmptyValues(t *testing.T) {
	_, err := NewFilterInList("population.steps[0]", "status", nil)
	require.Error(t, err)

	step, err := NewFilterInList("population.steps[0]", "status", []ir.Scalar{ir.NewString("open")})
	require.NoError(t, err)
	assert.Equal(t, "status", step.Field)
}

func TestNewFilterIsNull(t *testing.T) {
	step, err := NewFilterIsNull("population.steps[0]", "closed_at", true)
	require.NoError(t, err)
	assert.True(t, step.IsNull)

	_, err = NewFilterIsNull("population.steps[0]", "", true)
	require.Error(t, err)
}

func TestNewJoinLeftRequiresEqualKeyLength(t *testing.T) {
	_, err := NewJoinLeft("population.steps[0]", "trades", "accounts", []string{"account_id"}, []string{"id", "extra"})
	require.Error(t, err)

	join, err := NewJoinLeft("population.steps[0]", "trades", "accounts", []string{"account_id"}, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, ir.DatasetAlias("trades"), join.LeftDataset)
	assert.Equal(t, ir.DatasetAlias("accounts"), join.RightDataset)
}

func TestNewJoinLeftRequiresNonEmptyKeys(t *testing.T) {
	_, err := NewJoinLeft("population.steps[0]", "trades", "accounts", nil, nil)
	require.Error(t, err)
}

func TestNewJoinLeftRequiresDatasetNames(t *testing.T) {
	_, err := NewJoinLeft("population.steps[0]", "", "accounts", []string{"id"}, []string{"id"})
	require.Error(t, err)

	_, err = NewJoinLeft("population.steps[0]", "trades", "", []string{"id"}, []string{"id"})
	require.Error(t, err)
}

func TestStepActionSealed(t *testing.T) {
	var actions []StepAction
	fc, _ := NewFilterComparison("p", "amount", ir.Gt, ir.NewInt(0))
	fl, _ := NewFilterInList("p", "status", []ir.Scalar{ir.NewString("open")})
	fn, _ := NewFilterIsNull("p", "closed_at", true)
	jl, _ := NewJoinLeft("p", "trades", "accounts", []string{"id"}, []string{"id"})
	actions = append(actions, fc, fl, fn, jl)
	assert.Len(t, actions, 4)
}
