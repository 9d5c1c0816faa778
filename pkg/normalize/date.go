package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the short set of declared formats §4.2 allows in addition
// to ISO-8601 and the spreadsheet date-serial.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// excelEpoch is the day spreadsheet date serials count from (with the
// traditional off-by-one leap-year bug baked in, matching Excel/Sheets).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Date normalizes a raw date value (an ISO-8601 string, a declared-format
// string, or a spreadsheet date serial as a float64/int/string) into an
// ISO-8601 date string.
func Date(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return dateFromString(strings.TrimSpace(v))
	case float64:
		return dateFromSerial(v)
	case float32:
		return dateFromSerial(float64(v))
	case int:
		return dateFromSerial(float64(v))
	case int64:
		return dateFromSerial(float64(v))
	default:
		return "", fmt.Errorf("normalize: unsupported date raw value type %T", raw)
	}
}

func dateFromString(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return dateFromSerial(serial)
	}
	return "", fmt.Errorf("normalize: %q is not a recognized date", s)
}

func dateFromSerial(serial float64) (string, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return "", ErrInvalidData
	}
	days := int(serial)
	return excelEpoch.AddDate(0, 0, days).Format("2006-01-02"), nil
}
