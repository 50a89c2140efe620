// Package sqlemit provides the three strict SQL-rendering primitives
// every compiler stage must route through (§4.4): literal rendering,
// identifier rendering, and interval rendering. No other package in
// this module composes SQL strings by hand — every fragment the
// compiler emits is assembled from these functions plus plain string
// concatenation of the fragments they return.
package sqlemit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/attestable/controlcore/internal/ir"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier renders a bare SQL identifier, rejecting anything that
// does not match [A-Za-z_][A-Za-z0-9_]*. This is the sole defense
// against injection via dataset alias or column name — every identifier
// the compiler emits, whether a CTE name, an alias, or a column, passes
// through here first.
func Identifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("sqlemit: %q is not a valid identifier", name)
	}
	return name, nil
}

// MustIdentifier is Identifier for call sites that have already
// validated name (e.g. against a manifest's column list) and treat a
// failure here as a programming error rather than a runtime condition.
func MustIdentifier(name string) string {
	id, err := Identifier(name)
	if err != nil {
		panic(err)
	}
	return id
}

// Literal renders a Scalar as a SQL literal. Null must never reach this
// function — the compiler rewrites every null comparison to
// IS NULL/IS NOT NULL before emission — so Literal returns an error if
// handed one, rather than silently emitting SQL NULL into a value
// position.
func Literal(s ir.Scalar) (string, error) {
	switch v := s.(type) {
	case ir.String:
		return quoteString(string(v)), nil
	case ir.Int:
		return strconv.FormatInt(int64(v), 10), nil
	case ir.Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case ir.Bool:
		if bool(v) {
			return "TRUE", nil
		}
		return "FALSE", nil
	case ir.Date:
		return "DATE " + quoteString(v.String()), nil
	case ir.Timestamp:
		return "TIMESTAMP " + quoteString(v.String()), nil
	case ir.Null:
		return "", fmt.Errorf("sqlemit: null must be rewritten to IS NULL/IS NOT NULL before reaching Literal")
	default:
		return "", fmt.Errorf("sqlemit: unsupported scalar type %T", s)
	}
}

// MustLiteral is Literal for call sites that have already excluded
// ir.Null by construction (e.g. inside a list value, where
// spec.NewValueMatch already forbids null members).
func MustLiteral(s ir.Scalar) string {
	lit, err := Literal(s)
	if err != nil {
		panic(err)
	}
	return lit
}

// LiteralList renders a comma-separated, parenthesized list of literals
// for use after IN/NOT IN.
func LiteralList(values []ir.Scalar) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := Literal(v)
		if err != nil {
			return "", fmt.Errorf("sqlemit: list element %d: %w", i, err)
		}
		parts[i] = lit
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// Interval renders a signed-day interval literal: INTERVAL <n> DAY.
// DuckDB accepts a negative interval directly, so no special-casing is
// needed for offset_days < 0.
func Interval(days int) string {
	return fmt.Sprintf("INTERVAL %d DAY", days)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
