package engine

import (
	"fmt"
	"time"

	"github.com/attestable/controlcore/internal/ir"
)

// Row is one exception row, column-ordered exactly as the analytical
// engine returned it (the pipeline compiler's final SELECT * order),
// with SQL NULL already normalized to ir.Null.
type Row []ir.Pair

// toScalar normalizes a driver value from database/sql's generic scan
// path into an ir.Scalar. A nil value (SQL NULL) always becomes
// ir.Null — this is the "null normalization" §4.9 requires of every
// persisted exception row.
func toScalar(v any) ir.Scalar {
	switch val := v.(type) {
	case nil:
		return ir.NewNull()
	case int64:
		return ir.NewInt(val)
	case int32:
		return ir.NewInt(int64(val))
	case int:
		return ir.NewInt(int64(val))
	case float64:
		return ir.NewFloat(val)
	case float32:
		return ir.NewFloat(float64(val))
	case bool:
		return ir.NewBool(val)
	case string:
		return ir.NewString(val)
	case []byte:
		return ir.NewString(string(val))
	case time.Time:
		return ir.NewTimestamp(val)
	default:
		return ir.NewString(fmt.Sprintf("%v", val))
	}
}
