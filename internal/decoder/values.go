package decoder

import (
	"fmt"
	"math"
	"strconv"
)

// AsFloat converts a decoded Avro scalar to float64.
// NaN is reported as not ok: the surveys use it for missing measurements.
func AsFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// AsInt64 converts a decoded Avro integer (or integral string) to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// AsString renders an identifier or label. Integers are written in base 10.
func AsString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case []byte:
		return string(n), true
	case int, int32, int64:
		return fmt.Sprintf("%d", n), true
	default:
		return "", false
	}
}
