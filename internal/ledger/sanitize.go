package ledger

import (
	"fmt"
	"math"

	"github.com/attestable/controlcore/internal/engine"
	"github.com/attestable/controlcore/internal/ir"
)

// sanitizeSample renders an engine exception sample as an ir.Array of
// ir.Object rows, per §4.11's sanitization rule: temporal values become
// ISO-8601 strings, NaN and missing dates become explicit null, and any
// value the ledger's document format cannot represent is coerced to its
// canonical string form.
func sanitizeSample(rows []engine.Row) ir.Array {
	arr := make(ir.Array, len(rows))
	for i, row := range rows {
		obj := make(ir.Object, len(row))
		for _, pair := range row {
			obj[pair.Key] = sanitizeScalar(pair.Value.(ir.Scalar))
		}
		arr[i] = obj
	}
	return arr
}

func sanitizeScalar(v ir.Scalar) ir.Value {
	switch val := v.(type) {
	case ir.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ir.NewNull()
		}
		return val
	case ir.Date:
		return ir.NewString(val.String())
	case ir.Timestamp:
		return ir.NewString(val.String())
	case ir.Null, ir.String, ir.Int, ir.Bool:
		return val
	default:
		return ir.NewString(fmt.Sprint(val))
	}
}
