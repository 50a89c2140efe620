// Package ir provides the foundational value model shared by every layer
// of the control verification core: typed scalar values, column/dataset
// references, and comparison operators.
//
// This package contains type definitions and pure value operations only.
// Every other internal package imports ir; ir imports nothing internal,
// so it stays at the bottom of the dependency graph.
//
// Key design constraints:
//   - Scalar is a closed (sealed) union — only the types in value.go
//     implement it. A type switch over Scalar without a default case is
//     exhaustive by construction.
//   - Null is a first-class Scalar (Null), never a nil interface. Code
//     that needs to special-case null type-asserts Null rather than
//     checking for a nil interface value.
//   - Floating-point and temporal kinds are first-class: materiality
//     percentages, aggregation thresholds, and date-math assertions all
//     depend on them, so canonical serialization defines a deterministic
//     encoding for both rather than rejecting them.
//   - No wall-clock timestamps are embedded in content hashes; callers
//     that need a stable identity pass their own inputs explicitly.
package ir
