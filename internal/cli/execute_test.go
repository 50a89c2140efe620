package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteZeroPopulationGuard(t *testing.T) {
	_, specPath, manifestPath, _ := zeroPopulationScenarioDir(t)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	buf := &bytes.Buffer{}
	cmd := NewExecuteCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--manifest", manifestPath, "--db", dbPath, specPath})

	err := cmd.Execute()
	require.Error(t, err, "a zero-population base dataset resolves to an ERROR verdict, which exits non-zero")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "ERROR")
	assert.Contains(t, buf.String(), "ZERO_POPULATION")
}

func TestExecuteZeroPopulationGuardJSON(t *testing.T) {
	_, specPath, manifestPath, _ := zeroPopulationScenarioDir(t)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	buf := &bytes.Buffer{}
	cmd := NewExecuteCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--manifest", manifestPath, "--db", dbPath, specPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), `"verdict":"ERROR"`)
	assert.Contains(t, buf.String(), `"error_kind":"ZERO_POPULATION"`)
}

func TestExecuteRequiresManifestFlag(t *testing.T) {
	_, specPath, _, _ := zeroPopulationScenarioDir(t)

	cmd := NewExecuteCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{specPath})

	err := cmd.Execute()
	require.Error(t, err)
}
