package manifest

import (
	"github.com/attestable/controlcore/internal/ir"
)

// ToObject renders an Entry as an ir.Object tree — the canonical form
// the audit ledger's Manifests relation content-addresses via
// ir.ManifestHash and stores as the entry's schema fingerprint.
func (e Entry) ToObject() ir.Object {
	columns := make(ir.Array, len(e.Columns))
	for i, c := range e.Columns {
		columns[i] = ir.Object{
			"name":         ir.NewString(c.Name),
			"logical_type": ir.NewString(string(c.LogicalType)),
		}
	}
	return ir.Object{
		"alias":        ir.NewString(string(e.Alias)),
		"path":         ir.NewString(e.Path),
		"content_hash": ir.NewString(e.ContentHash),
		"row_count":    ir.NewInt(e.RowCount),
		"columns":      columns,
		"source_metadata": ir.Object{
			"origin_system":      ir.NewString(e.SourceMetadata.OriginSystem),
			"extraction_instant": e.SourceMetadata.ExtractionInstant,
			"schema_version":     ir.NewString(e.SourceMetadata.SchemaVersion),
		},
	}
}
