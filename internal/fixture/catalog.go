package fixture

// NamedScenario documents one of the end-to-end scenarios with literal
// inputs and expected outputs, alongside Dir, the testdata directory
// that actually carries its spec.cue/manifest.yaml/scenario.yaml and
// evidence files. TestCatalogMatchesTestdataDirectories checks every
// entry against its directory's on-disk scenario.yaml.
type NamedScenario struct {
	ControlID   string
	Dir         string
	Description string
	Expect      Expectation
}

func ptr64(n int64) *int64 { return &n }

// Catalog lists the six named end-to-end scenarios, each with the
// verdict and population/exception counts the scenario's fixed inputs
// must produce.
var Catalog = []NamedScenario{
	{
		ControlID:   "CTRL-OPS-T2-003",
		Dir:         "ctrl-ops-t2-003",
		Description: "Row-level filter + single assertion: equity_settlements (20000 rows), one settlement 3 days after trade against a 2-day TemporalDateMath threshold.",
		Expect: Expectation{
			Verdict:         VerdictFail,
			TotalPopulation: ptr64(20000),
			ExceptionCount:  ptr64(1),
		},
	},
	{
		ControlID:   "CTRL-MNPI-707",
		Dir:         "ctrl-mnpi-707",
		Description: "Composite-key left join + column comparison: trades joined to the wall-cross register on (employee_id, ticker_symbol); a row with status CLEARED but trade_date == clearance_date is an exception.",
		Expect: Expectation{
			Verdict:         VerdictFail,
			TotalPopulation: ptr64(2),
			ExceptionCount:  ptr64(1),
		},
	},
	{
		ControlID:   "CTRL-CASS-006",
		Dir:         "ctrl-cass-006",
		Description: "Aggregation + HAVING: SUM(current_balance) grouped by calculation_date must be >= $50,000,000; one date sums to $49,000,000 and is the sole exception group.",
		Expect: Expectation{
			Verdict:         VerdictFail,
			TotalPopulation: ptr64(3),
			ExceptionCount:  ptr64(1),
		},
	},
	{
		ControlID:   "CTRL-SOX-AP-004",
		Dir:         "ctrl-sox-ap-004",
		Description: "IN-list assertion with case/whitespace folding: approver_title in [SVP, EVP, CEO, CFO]; \"vp\" is an exception, \" CEO \" is not.",
		Expect: Expectation{
			Verdict:         VerdictFail,
			TotalPopulation: ptr64(3),
			ExceptionCount:  ptr64(1),
		},
	},
	{
		ControlID:   "CTRL-IAM-007",
		Dir:         "ctrl-iam-007",
		Description: "Null-defines-compliance: terminations joined through service tickets to system accounts; a terminated employee whose account was not deleted appears exactly once via IS NOT TRUE OR-combination.",
		Expect: Expectation{
			Verdict:         VerdictFail,
			TotalPopulation: ptr64(3),
			ExceptionCount:  ptr64(1),
		},
	},
	{
		ControlID:   "zero-population-guard",
		Dir:         "zero_population",
		Description: "Any specification run against a manifest whose base dataset has row_count = 0.",
		Expect: Expectation{
			Verdict:        VerdictError,
			ErrorKind:      ErrorKindZeroPopulation,
			ExceptionCount: ptr64(0),
		},
	},
}
