package spec

// SamplingMethod is the closed set of sampling techniques a population
// may declare. Judgmental is supplemented from original_source and has
// no bearing on SQL emission — it is a documentation-only declaration
// that the sample was hand-picked rather than drawn by the engine.
type SamplingMethod string

const (
	SamplingRandom     SamplingMethod = "random"
	SamplingStratified SamplingMethod = "stratified"
	SamplingSystematic SamplingMethod = "systematic"
	SamplingJudgmental SamplingMethod = "judgmental"
)

func (m SamplingMethod) valid() bool {
	switch m {
	case SamplingRandom, SamplingStratified, SamplingSystematic, SamplingJudgmental:
		return true
	default:
		return false
	}
}

// SamplingStrategy narrows the base population to a sample before
// assertions run. Exactly one of SampleSize or SamplePercentage is set.
//
// Enabled, StratificationField default to the zero value and are
// supplemented from original_source/src/models/dsl.py — the distilled
// spec is silent on them but nothing in its Non-goals excludes them.
type SamplingStrategy struct {
	Enabled             bool
	Method              SamplingMethod
	SampleSize          int
	SamplePercentage    float64
	StratificationField string
	RandomSeed          *int
	Justification       string
}

// NewSamplingStrategy validates and constructs a SamplingStrategy.
func NewSamplingStrategy(path string, enabled bool, method SamplingMethod, sampleSize int, samplePercentage float64, stratificationField string, randomSeed *int, justification string) (*SamplingStrategy, error) {
	if !method.valid() {
		return nil, invalid(path+".method", "unknown sampling method %q", method)
	}
	haveSize := sampleSize > 0
	havePercentage := samplePercentage > 0
	if haveSize == havePercentage {
		return nil, invalid(path, "exactly one of sample_size or sample_percentage must be set")
	}
	if haveSize && sampleSize <= 0 {
		return nil, invalid(path+".sample_size", "sample_size must be > 0, got %d", sampleSize)
	}
	if havePercentage && (samplePercentage <= 0 || samplePercentage > 100) {
		return nil, invalid(path+".sample_percentage", "sample_percentage must be within (0, 100], got %v", samplePercentage)
	}
	if method == SamplingStratified && stratificationField == "" {
		return nil, invalid(path+".stratification_field", "stratified sampling requires stratification_field")
	}
	if justification == "" {
		return nil, invalid(path+".justification", "justification is required")
	}
	return &SamplingStrategy{
		Enabled:             enabled,
		Method:              method,
		SampleSize:          sampleSize,
		SamplePercentage:    samplePercentage,
		StratificationField: stratificationField,
		RandomSeed:          randomSeed,
		Justification:       justification,
	}, nil
}
