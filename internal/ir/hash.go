package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without collisions against
// previously computed hashes.
const (
	DomainSpecification = "controlcore/specification/v1"
	DomainManifest       = "controlcore/manifest/v1"
	DomainExecution      = "controlcore/execution/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte prevents ambiguity at the
// domain/data boundary (e.g. "foo"+"bar" vs "foob"+"ar").
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecificationHash computes the content-addressed hash of a canonically
// serializable Control Specification. Recorded in the audit ledger
// alongside the specification's verbatim canonical JSON.
func SpecificationHash(spec any) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("SpecificationHash: %w", err)
	}
	return hashWithDomain(DomainSpecification, canonical), nil
}

// ManifestHash computes the content-addressed hash of a canonically
// serializable Evidence Manifest.
func ManifestHash(manifest any) (string, error) {
	canonical, err := MarshalCanonical(manifest)
	if err != nil {
		return "", fmt.Errorf("ManifestHash: %w", err)
	}
	return hashWithDomain(DomainManifest, canonical), nil
}

// ExecutionHash computes the content-addressed hash of a canonically
// serializable Execution Report, used as its ledger primary key.
func ExecutionHash(report any) (string, error) {
	canonical, err := MarshalCanonical(report)
	if err != nil {
		return "", fmt.Errorf("ExecutionHash: %w", err)
	}
	return hashWithDomain(DomainExecution, canonical), nil
}

// FileContentHash hashes raw columnar file bytes for the Evidence
// Manifest's content hash field. Unlike SpecificationHash/ManifestHash,
// this hashes the bytes directly rather than a canonical JSON encoding —
// the Manifest records a hash of the physical file, not of a structured
// value.
func FileContentHash(data []byte) string {
	return hashWithDomain(DomainManifest, data)
}

// MustSpecificationHash is like SpecificationHash but panics on error.
// Use only in tests or when the input is known to be canonically
// serializable.
func MustSpecificationHash(spec any) string {
	h, err := SpecificationHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}

// MustManifestHash is like ManifestHash but panics on error.
func MustManifestHash(manifest any) string {
	h, err := ManifestHash(manifest)
	if err != nil {
		panic(err)
	}
	return h
}

// MustExecutionHash is like ExecutionHash but panics on error.
func MustExecutionHash(report any) string {
	h, err := ExecutionHash(report)
	if err != nil {
		panic(err)
	}
	return h
}
