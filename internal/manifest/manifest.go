// Package manifest implements the Evidence Manifest Model: an
// immutable, read-only index from dataset alias to the physical
// columnar file, content hash, row count, and column schema the
// compiler and engine need to address it. Entries are created once by
// an external ingestor and never mutated afterward.
package manifest

import (
	"fmt"

	"github.com/attestable/controlcore/internal/ir"
)

// ErrMissing is returned by every lookup method when the requested
// alias is absent from the manifest.
type ErrMissing struct {
	Alias ir.DatasetAlias
}

func (e *ErrMissing) Error() string {
	return fmt.Sprintf("manifest: no entry for dataset alias %q", e.Alias)
}

// LogicalType is the closed set of physical column types a manifest
// entry may declare, drawn from the same vocabulary as
// spec.LogicalType — kept as its own type so this package has no
// import on internal/spec.
type LogicalType string

const (
	TypeString    LogicalType = "string"
	TypeNumeric   LogicalType = "numeric"
	TypeBoolean   LogicalType = "boolean"
	TypeDate      LogicalType = "date"
	TypeTimestamp LogicalType = "timestamp"
)

// Column is one (name, logical_type) pair in a manifest entry's schema.
type Column struct {
	Name        string
	LogicalType LogicalType
}

// SourceMetadata records where a dataset's evidence file came from and
// when it was extracted, carried through to the ledger for audit
// purposes but never consulted by the compiler.
type SourceMetadata struct {
	OriginSystem      string
	ExtractionInstant ir.Timestamp
	SchemaVersion     string
}

// Entry is one immutable Evidence Manifest Entry: a dataset alias bound
// to a columnar file, its content hash, row count, and column schema.
type Entry struct {
	Alias          ir.DatasetAlias
	Path           string
	ContentHash    string
	RowCount       int64
	Columns        []Column
	SourceMetadata SourceMetadata
}

// Manifest is an immutable collection of Entry values, indexed by
// alias. A Manifest is only ever constructed via New; once built, no
// method on it can add, remove, or alter an entry.
type Manifest struct {
	entries map[ir.DatasetAlias]Entry
	order   []ir.DatasetAlias
}

// New validates and constructs a Manifest from a set of entries. It
// rejects duplicate aliases and any entry whose Columns list contains a
// duplicate column name or an unknown logical type — the same
// fail-fast discipline internal/spec uses for the specification tree.
func New(entries []Entry) (*Manifest, error) {
	m := &Manifest{entries: make(map[ir.DatasetAlias]Entry, len(entries))}
	for i, entry := range entries {
		if entry.Alias == "" {
			return nil, fmt.Errorf("manifest: entries[%d].alias is required", i)
		}
		if entry.Path == "" {
			return nil, fmt.Errorf("manifest: entries[%d] (%s): path is required", i, entry.Alias)
		}
		if entry.ContentHash == "" {
			return nil, fmt.Errorf("manifest: entries[%d] (%s): content_hash is required", i, entry.Alias)
		}
		if _, dup := m.entries[entry.Alias]; dup {
			return nil, fmt.Errorf("manifest: duplicate dataset alias %q", entry.Alias)
		}
		seenColumns := make(map[string]struct{}, len(entry.Columns))
		for _, col := range entry.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("manifest: entries[%d] (%s): column name is required", i, entry.Alias)
			}
			if !col.LogicalType.valid() {
				return nil, fmt.Errorf("manifest: entries[%d] (%s): unknown logical_type %q for column %q", i, entry.Alias, col.LogicalType, col.Name)
			}
			if _, dup := seenColumns[col.Name]; dup {
				return nil, fmt.Errorf("manifest: entries[%d] (%s): duplicate column %q", i, entry.Alias, col.Name)
			}
			seenColumns[col.Name] = struct{}{}
		}
		m.entries[entry.Alias] = entry
		m.order = append(m.order, entry.Alias)
	}
	return m, nil
}

func (t LogicalType) valid() bool {
	switch t {
	case TypeString, TypeNumeric, TypeBoolean, TypeDate, TypeTimestamp:
		return true
	default:
		return false
	}
}

// Aliases returns every dataset alias the manifest knows about, in the
// order entries were supplied to New.
func (m *Manifest) Aliases() []ir.DatasetAlias {
	out := make([]ir.DatasetAlias, len(m.order))
	copy(out, m.order)
	return out
}

// PathOf returns the columnar file path bound to alias.
func (m *Manifest) PathOf(alias ir.DatasetAlias) (string, error) {
	entry, ok := m.entries[alias]
	if !ok {
		return "", &ErrMissing{Alias: alias}
	}
	return entry.Path, nil
}

// HashOf returns the content hash bound to alias.
func (m *Manifest) HashOf(alias ir.DatasetAlias) (string, error) {
	entry, ok := m.entries[alias]
	if !ok {
		return "", &ErrMissing{Alias: alias}
	}
	return entry.ContentHash, nil
}

// RowCountOf returns the row count recorded for alias at ingestion time.
func (m *Manifest) RowCountOf(alias ir.DatasetAlias) (int64, error) {
	entry, ok := m.entries[alias]
	if !ok {
		return 0, &ErrMissing{Alias: alias}
	}
	return entry.RowCount, nil
}

// ColumnsOf returns the ordered (name, logical_type) schema for alias.
func (m *Manifest) ColumnsOf(alias ir.DatasetAlias) ([]Column, error) {
	entry, ok := m.entries[alias]
	if !ok {
		return nil, &ErrMissing{Alias: alias}
	}
	out := make([]Column, len(entry.Columns))
	copy(out, entry.Columns)
	return out, nil
}

// EntryOf returns the full Entry bound to alias, e.g. for the ledger's
// Manifests relation which stores the whole record.
func (m *Manifest) EntryOf(alias ir.DatasetAlias) (Entry, error) {
	entry, ok := m.entries[alias]
	if !ok {
		return Entry{}, &ErrMissing{Alias: alias}
	}
	return entry, nil
}

// Hashes returns the alias → content hash map the Execution Report's
// manifest_hashes field requires.
func (m *Manifest) Hashes() map[ir.DatasetAlias]string {
	out := make(map[ir.DatasetAlias]string, len(m.entries))
	for alias, entry := range m.entries {
		out[alias] = entry.ContentHash
	}
	return out
}
