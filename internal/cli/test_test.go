package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestable/controlcore/internal/fixture"
)

func TestTestCommandRunsCheckedInScenarios(t *testing.T) {
	dir, _, _, _ := zeroPopulationScenarioDir(t)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ zero-population-guard")
	assert.Contains(t, output, "All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	dir, _, _, _ := zeroPopulationScenarioDir(t)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--filter", "no-such-scenario", dir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found.")
}

// TestTestCommandRunsNamedScenarioCatalog runs every fixture checked in
// under internal/fixture/testdata — the on-disk home of each of
// fixture.Catalog's named end-to-end scenarios — end to end through
// the test command, and confirms all of them pass.
func TestTestCommandRunsNamedScenarioCatalog(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("..", "fixture", "testdata")})

	err := cmd.Execute()
	require.NoError(t, err, buf.String())

	output := buf.String()
	assert.Contains(t, output, "All scenarios passed")
	for _, scenario := range fixture.Catalog {
		assert.Contains(t, output, "✓ "+scenario.ControlID, "scenario %s should have run and passed", scenario.ControlID)
	}
}

func TestTestCommandMissingDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join("testdata", "does-not-exist")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
