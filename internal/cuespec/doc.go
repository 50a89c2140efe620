// Package cuespec is a convenience authoring surface over internal/spec:
// it evaluates a CUE document shaped like a Control Specification and
// compiles it into a *spec.ControlSpec, the same type a caller could
// have built directly with internal/spec's constructors.
//
// CUE's closed-struct semantics (see schema.cue) reject unknown fields
// at evaluation time — but that rejection is a courtesy, not the
// contract. Compile always finishes by calling spec.New and the other
// internal/spec constructors, so a document that somehow reaches this
// package without having passed through the CUE schema (a hand-built
// cue.Value, say) is still fully validated before it becomes a
// ControlSpec.
package cuespec
