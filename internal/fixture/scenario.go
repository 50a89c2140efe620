package fixture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Verdict strings a Scenario's Expect.Verdict may take. SpecInvalid is
// distinct from the other three: it is raised synchronously while
// compiling the specification and never reaches the engine, so a
// scenario expecting it carries no population/exception fields.
const (
	VerdictPass        = "PASS"
	VerdictFail        = "FAIL"
	VerdictError       = "ERROR"
	VerdictSpecInvalid = "SPEC_INVALID"
)

// Error kinds a Scenario's Expect.ErrorKind may take when Expect.Verdict
// is ERROR.
const (
	ErrorKindCompileRejected = "COMPILE_REJECTED"
	ErrorKindExecutionFailed = "EXECUTION_FAILED"
	ErrorKindCanceled        = "CANCELED"
	ErrorKindZeroPopulation  = "ZERO_POPULATION"
)

// Scenario is one named end-to-end test case: a control specification
// run against an evidence manifest, with the outcome it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the path to a CUE control specification document, either
	// a single file or a directory loaded as a package. Resolved
	// relative to the scenario file's location.
	Spec string `yaml:"spec"`

	// Manifest is the path to an Evidence Manifest YAML document,
	// resolved relative to the scenario file's location.
	Manifest string `yaml:"manifest"`

	// Expect describes the outcome running Spec against Manifest must
	// produce.
	Expect Expectation `yaml:"expect"`
}

// Expectation is the outcome a Scenario's run must match.
type Expectation struct {
	// Verdict is one of VerdictPass, VerdictFail, VerdictError, or
	// VerdictSpecInvalid.
	Verdict string `yaml:"verdict"`

	// TotalPopulation, ExceptionCount, and ExceptionRatePercent are only
	// meaningful for VerdictPass, VerdictFail, and VerdictError (other
	// than a SpecInvalid compile-time rejection). Pointers distinguish
	// "not asserted" from an asserted zero.
	TotalPopulation      *int64   `yaml:"total_population,omitempty"`
	ExceptionCount       *int64   `yaml:"exception_count,omitempty"`
	ExceptionRatePercent *float64 `yaml:"exception_rate_percent,omitempty"`

	// ErrorKind is required when Verdict is VerdictError, naming which
	// of the Execution Report's error kinds the run must surface.
	ErrorKind string `yaml:"error_kind,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file, resolving Spec
// and Manifest paths relative to the scenario file's own directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving Spec and Manifest paths relative to basePath instead of the
// scenario file's own directory.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read scenario %s: %w", path, err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("fixture: parse scenario %s: %w", path, err)
	}

	if !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}
	if !filepath.IsAbs(scenario.Manifest) && basePath != "" {
		scenario.Manifest = filepath.Join(basePath, scenario.Manifest)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("fixture: invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if s.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}
	if _, err := os.Stat(s.Manifest); os.IsNotExist(err) {
		return fmt.Errorf("manifest file not found: %s", s.Manifest)
	}
	return validateExpectation(&s.Expect)
}

func validateExpectation(e *Expectation) error {
	switch e.Verdict {
	case VerdictPass, VerdictFail:
		// population/exception fields are optional assertions.
	case VerdictError:
		switch e.ErrorKind {
		case ErrorKindCompileRejected, ErrorKindExecutionFailed, ErrorKindCanceled, ErrorKindZeroPopulation:
		case "":
			return fmt.Errorf("expect.error_kind is required when expect.verdict is ERROR")
		default:
			return fmt.Errorf("expect.error_kind: unknown error kind %q", e.ErrorKind)
		}
	case VerdictSpecInvalid:
		if e.TotalPopulation != nil || e.ExceptionCount != nil || e.ExceptionRatePercent != nil {
			return fmt.Errorf("expect: population/exception fields do not apply to SPEC_INVALID, which never reaches the engine")
		}
	case "":
		return fmt.Errorf("expect.verdict is required")
	default:
		return fmt.Errorf("expect.verdict: unknown verdict %q", e.Verdict)
	}
	return nil
}
