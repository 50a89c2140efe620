package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile writes data to path — used only to materialize small
// fixture files under a test's t.TempDir().
func writeFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}

// zeroPopulationScenarioDir builds a self-contained copy of the
// checked-in zero-population-guard fixture under the test's own temp
// directory, so each test gets its own isolated ledger database path
// alongside the spec/manifest/evidence files without depending on the
// working directory a test binary happens to run from.
func zeroPopulationScenarioDir(t *testing.T) (dir, specPath, manifestPath, scenarioPath string) {
	t.Helper()

	dir = t.TempDir()
	evidencePath := filepath.Join(dir, "invoices.csv")
	require.NoError(t, writeFile(evidencePath, "status\n"))

	specPath = filepath.Join(dir, "spec.cue")
	require.NoError(t, writeFile(specPath, `governance: {
	control_id:           "CTRL-ZERO-001"
	version:              "1.0.0"
	owner_role:           "Controller"
	testing_frequency:    "Quarterly"
	regulatory_citations: ["SOX 404"]
	risk_objective:       "Confirm the zero-population guard surfaces as an error, not a silent pass"
}
population: {
	base_dataset: "invoices"
}
assertions: [{
	type:                          "value_match"
	assertion_id:                  "a1"
	description:                   "status must be closed"
	materiality_threshold_percent: 0.0
	field:                         "status"
	operator:                      "eq"
	expected_value: {kind: "string", value: "closed"}
}]
evidence: {
	retention_years:         7
	reviewer_workflow:       "Requires_Human_Signoff"
	exception_routing_queue: "ar-exceptions"
}
`))

	manifestPath = filepath.Join(dir, "manifest.yaml")
	require.NoError(t, writeFile(manifestPath, fmt.Sprintf(`entries:
  - alias: invoices
    path: %s
    content_hash: "deadbeefcafe"
    row_count: 0
    columns:
      - name: status
        logical_type: string
    source:
      origin_system: sap
      extraction_instant: "2026-01-01T00:00:00Z"
      schema_version: "1"
`, evidencePath)))

	scenarioPath = filepath.Join(dir, "scenario.yaml")
	require.NoError(t, writeFile(scenarioPath, `name: zero-population-guard
description: a base dataset that resolves to zero rows must raise a zero-population error, never a silent pass
spec: spec.cue
manifest: manifest.yaml
expect:
  verdict: ERROR
  error_kind: ZERO_POPULATION
  exception_count: 0
`))

	return dir, specPath, manifestPath, scenarioPath
}
