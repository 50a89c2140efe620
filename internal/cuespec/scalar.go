package cuespec

import (
	"cuelang.org/go/cue"

	"github.com/attestable/controlcore/internal/ir"
)

// compileScalar reads a #Scalar value — a {kind, value} pair — into an
// ir.Scalar. The tag is required because CUE (like JSON) cannot tell a
// date string from a plain string on its own; kind makes that
// distinction explicit in the authored document instead of guessing.
func compileScalar(v cue.Value) (ir.Scalar, error) {
	kindVal, err := requireField(v, "kind")
	if err != nil {
		return nil, err
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	if kind == "null" {
		return ir.NewNull(), nil
	}

	valueVal, err := requireField(v, "value")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "string":
		s, err := valueVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewString(s), nil
	case "int":
		n, err := valueVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewInt(n), nil
	case "float":
		f, err := valueVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewFloat(f), nil
	case "bool":
		b, err := valueVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewBool(b), nil
	case "date":
		s, err := valueVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		d, err := ir.ParseDate(s)
		if err != nil {
			return nil, &CompileError{Field: "value", Message: err.Error(), Pos: valueVal.Pos()}
		}
		return d, nil
	case "timestamp":
		s, err := valueVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ts, err := ir.ParseTimestamp(s)
		if err != nil {
			return nil, &CompileError{Field: "value", Message: err.Error(), Pos: valueVal.Pos()}
		}
		return ts, nil
	default:
		return nil, &CompileError{Field: "kind", Message: "unknown scalar kind " + kind, Pos: kindVal.Pos()}
	}
}

// compileScalarList reads a list of #Scalar values.
func compileScalarList(v cue.Value) ([]ir.Scalar, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.Scalar
	for iter.Next() {
		s, err := compileScalar(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// compileStringList reads a list of plain strings.
func compileStringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func compileOperator(v cue.Value) (ir.Operator, error) {
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	op := ir.Operator(s)
	if !op.Valid() {
		return "", &CompileError{Field: "operator", Message: "unknown operator " + s, Pos: v.Pos()}
	}
	return op, nil
}
