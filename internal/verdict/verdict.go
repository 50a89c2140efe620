// Package verdict implements the Verdict Resolver (§4.10): given a
// total population, an exception count, and the materiality thresholds
// an engine.Result's assertions carried, it decides PASS, FAIL, or
// ERROR.
package verdict

import (
	"math"

	"github.com/attestable/controlcore/internal/spec"
)

// Verdict is the closed set of outcomes a control's execution can reach.
type Verdict string

const (
	Pass  Verdict = "PASS"
	Fail  Verdict = "FAIL"
	Error Verdict = "ERROR"
)

// ErrorKind names why a verdict is ERROR. ZeroPopulation is the only
// kind the resolver itself produces; internal/engine's own
// CompileRejected/ExecutionFailed/Canceled kinds are surfaced upstream
// of this package, never routed through Resolve.
type ErrorKind string

const ZeroPopulation ErrorKind = "ZERO_POPULATION"

// Resolution is the Verdict Resolver's output.
type Resolution struct {
	Verdict              Verdict
	ExceptionRatePercent float64
	EffectiveThreshold   float64
	ErrorKind            ErrorKind
	ErrorMessage         string
}

// Resolve implements §4.10. baseDataset names the population's base
// dataset, used only to compose ErrorMessage for ZeroPopulation.
func Resolve(totalPopulation, exceptionCount int, assertions []spec.Assertion, baseDataset string) Resolution {
	if totalPopulation == 0 {
		return Resolution{
			Verdict:      Error,
			ErrorKind:    ZeroPopulation,
			ErrorMessage: "base dataset \"" + baseDataset + "\" resolved to zero rows",
		}
	}

	effectiveThreshold := effectiveThresholdOf(assertions)
	rate := roundBankers((float64(exceptionCount)/float64(totalPopulation))*100, 2)

	v := Fail
	if rate <= effectiveThreshold {
		v = Pass
	}

	return Resolution{
		Verdict:              v,
		ExceptionRatePercent: rate,
		EffectiveThreshold:   effectiveThreshold,
	}
}

func effectiveThresholdOf(assertions []spec.Assertion) float64 {
	max := 0.0
	for i, a := range assertions {
		t := a.MaterialityThresholdPercent()
		if i == 0 || t > max {
			max = t
		}
	}
	return max
}

// roundBankers rounds f to the given number of fractional digits using
// round-half-to-even, per §4.10's "banker's rounding" requirement.
func roundBankers(f float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.RoundToEven(f*scale) / scale
}
