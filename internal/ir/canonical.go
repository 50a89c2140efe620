package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785-style canonical JSON for hashing and
// ledger storage. This is the only serialization that should be used for
// content-addressed identity computation.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes).
//  2. No HTML escaping (< > & are not escaped).
//  3. Strings are NFC normalized.
//  4. Floats are rendered via the shortest round-tripping decimal form.
//  5. Null is permitted and rendered as the JSON literal `null`.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Null:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case Float:
		return marshalCanonicalFloat(float64(val))
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Date:
		return marshalCanonicalString(val.String())
	case Timestamp:
		return marshalCanonicalString(val.String())
	case Array:
		return marshalCanonicalArray(val)
	case Object:
		return marshalCanonicalObject(val)
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case float64:
		return marshalCanonicalFloat(val)
	case float32:
		return marshalCanonicalFloat(float64(val))
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			irElem, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return marshalCanonicalArray(arr)
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			irElem, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return marshalCanonicalObject(obj)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// toValue converts a Go value to a Value.
func toValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int64:
		return Int(val), nil
	case int:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			irElem, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			irElem, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// marshalCanonicalFloat renders a float in the shortest decimal form that
// round-trips, matching the wider JSON ecosystem's number formatting so
// the same value always serializes identically regardless of how it
// arrived (parsed literal, computed threshold, etc).
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) {
		return nil, fmt.Errorf("NaN is forbidden in canonical JSON")
	}
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("infinite values are forbidden in canonical JSON")
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// marshalCanonicalString produces canonical JSON string with NFC
// normalization.
//
// RFC 8785 compliance:
//   - No HTML escaping (<, >, & are not escaped).
//   - U+2028 (LINE SEPARATOR) and U+2029 (PARAGRAPH SEPARATOR) are not
//     escaped.
//   - Only control characters (U+0000-U+001F), backslash, and quote are
//     escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	result = unescapeU2028U2029(result)

	return result, nil
}

// unescapeU2028U2029 converts   and   escape sequences to
// literal characters per RFC 8785, preserving \\u2028/\\u2029 (an
// escaped backslash followed by literal "u2028"/"u2029" text).
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' {
			if data[i+5] == '8' || data[i+5] == '9' {
				actualBackslashes := 0
				if result == nil {
					for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
						actualBackslashes++
					}
				} else {
					for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
						actualBackslashes++
					}
				}

				if actualBackslashes%2 == 0 {
					if result == nil {
						result = make([]byte, 0, len(data))
						result = append(result, data[:i]...)
					}
					if data[i+5] == '8' {
						result = append(result, " "...)
					} else {
						result = append(result, " "...)
					}
					i += 6
					continue
				}
			}
		}

		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
