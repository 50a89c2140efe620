// Package spec implements the Control Specification Model: a closed
// algebra of pipeline steps and assertions whose validity is enforced at
// construction time, and which is the sole input contract to the
// compiler.
//
// Every exported type in this package follows the same shape: a struct
// plus a validating constructor that returns *SpecInvalid on the first
// violated invariant. A value that was successfully constructed never
// needs re-validating by its consumers. The one invariant that cannot
// be checked here — that every dataset alias the specification names
// actually exists in an evidence manifest — is deferred to
// (*ControlSpec).Validate, called once a manifest is available.
package spec
