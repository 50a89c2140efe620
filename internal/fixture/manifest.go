// Package fixture loads the YAML documents used to drive end-to-end
// tests: an Evidence Manifest document (alias, path, content hash, row
// count, column schema, and source metadata for each dataset) and a
// Scenario document (which control specification and manifest to run,
// and what verdict the run must produce). Both loaders use strict,
// unknown-field-rejecting YAML decoding, the same discipline CUE's
// closed structs apply on the specification side.
package fixture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/attestable/controlcore/internal/ir"
	"github.com/attestable/controlcore/internal/manifest"
)

// manifestDocument is the on-disk shape of an Evidence Manifest file.
type manifestDocument struct {
	Entries []manifestEntryDocument `yaml:"entries"`
}

type manifestEntryDocument struct {
	Alias       string           `yaml:"alias"`
	Path        string           `yaml:"path"`
	ContentHash string           `yaml:"content_hash"`
	RowCount    int64            `yaml:"row_count"`
	Columns     []columnDocument `yaml:"columns"`
	Source      sourceDocument   `yaml:"source"`
}

type columnDocument struct {
	Name        string `yaml:"name"`
	LogicalType string `yaml:"logical_type"`
}

type sourceDocument struct {
	OriginSystem      string `yaml:"origin_system"`
	ExtractionInstant string `yaml:"extraction_instant"`
	SchemaVersion     string `yaml:"schema_version"`
}

// LoadManifest reads an Evidence Manifest YAML file and builds a
// manifest.Manifest from it. Unknown fields are rejected at decode
// time; duplicate aliases, missing paths, and unknown logical types are
// rejected by manifest.New itself. An entry's path is resolved relative
// to the manifest file's own directory when it is not already absolute,
// so a checked-in fixture can name its evidence file portably instead
// of baking in a machine-specific absolute path.
func LoadManifest(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read manifest %s: %w", path, err)
	}

	var doc manifestDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("fixture: parse manifest %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	entries := make([]manifest.Entry, len(doc.Entries))
	for i, ed := range doc.Entries {
		entry, err := compileManifestEntry(ed)
		if err != nil {
			return nil, fmt.Errorf("fixture: manifest %s: entries[%d]: %w", path, i, err)
		}
		if !filepath.IsAbs(entry.Path) {
			entry.Path = filepath.Join(baseDir, entry.Path)
		}
		entries[i] = entry
	}

	m, err := manifest.New(entries)
	if err != nil {
		return nil, fmt.Errorf("fixture: manifest %s: %w", path, err)
	}
	return m, nil
}

func compileManifestEntry(ed manifestEntryDocument) (manifest.Entry, error) {
	columns := make([]manifest.Column, len(ed.Columns))
	for i, cd := range ed.Columns {
		columns[i] = manifest.Column{
			Name:        cd.Name,
			LogicalType: manifest.LogicalType(cd.LogicalType),
		}
	}

	var extractionInstant ir.Timestamp
	if ed.Source.ExtractionInstant != "" {
		ts, err := ir.ParseTimestamp(ed.Source.ExtractionInstant)
		if err != nil {
			return manifest.Entry{}, fmt.Errorf("source.extraction_instant: %w", err)
		}
		extractionInstant = ts
	}

	return manifest.Entry{
		Alias:       ir.DatasetAlias(ed.Alias),
		Path:        ed.Path,
		ContentHash: ed.ContentHash,
		RowCount:    ed.RowCount,
		Columns:     columns,
		SourceMetadata: manifest.SourceMetadata{
			OriginSystem:      ed.Source.OriginSystem,
			ExtractionInstant: extractionInstant,
			SchemaVersion:     ed.Source.SchemaVersion,
		},
	}, nil
}
