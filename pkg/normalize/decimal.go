package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// ErrInvalidData signals a NaN/infinity observed on a numeric field —
// §4.2/§4.4, forces rejection irrespective of field importance (I4).
var ErrInvalidData = fmt.Errorf("NaN or infinity in numeric field")

// decimalString canonicalizes a decimal literal: trims trailing zeros
// after the decimal point while preserving value, strips a redundant
// leading zero, and keeps the sign only when the magnitude is non-zero.
//
// "3.140" -> "3.14", "1.0" -> "1", per §4.2/I5. No binary floating point
// value is ever computed in this path.
func decimalString(trimmed string) (string, error) {
	lower := strings.ToLower(trimmed)
	if lower == "nan" || strings.Contains(lower, "inf") {
		return "", ErrInvalidData
	}
	if !decimalPattern.MatchString(trimmed) {
		return "", fmt.Errorf("normalize: %q is not a decimal number", trimmed)
	}

	neg := false
	body := trimmed
	switch {
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	case strings.HasPrefix(body, "-"):
		neg = true
		body = body[1:]
	}

	intPart, fracPart := body, ""
	if idx := strings.IndexByte(body, '.'); idx >= 0 {
		intPart, fracPart = body[:idx], body[idx+1:]
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")

	result := intPart
	if fracPart != "" {
		result += "." + fracPart
	}
	if neg && result != "0" {
		result = "-" + result
	}
	return result, nil
}

// Number normalizes a raw numeric value. The second return value reports
// whether the raw value arrived as a Go float64 (i.e. binary floating
// point) — the caller logs this internally per §4.2 but does not reject on
// it alone.
func Number(raw interface{}) (string, bool, error) {
	switch v := raw.(type) {
	case string:
		s, err := decimalString(strings.TrimSpace(v))
		return s, false, err
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", true, ErrInvalidData
		}
		s, err := decimalString(strconv.FormatFloat(v, 'f', -1, 64))
		return s, true, err
	case float32:
		return Number(float64(v))
	case int:
		return strconv.Itoa(v), false, nil
	case int64:
		return strconv.FormatInt(v, 10), false, nil
	default:
		return "", false, fmt.Errorf("normalize: unsupported numeric raw value type %T", raw)
	}
}
