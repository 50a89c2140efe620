package ir

// Version constants for the specification schema and the compiler/engine
// that consume it.
const (
	// SchemaVersion is the Control Specification schema version. It is
	// recorded verbatim in the audit ledger alongside every specification.
	SchemaVersion = "1"

	// EngineVersion is the compiler/execution engine version.
	EngineVersion = "0.1.0"
)
