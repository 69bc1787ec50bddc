// pkg/converter/values.go
package converter

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// missingTokens are cell contents treated as a missing value
var missingTokens = map[string]bool{
	"":       true,
	"nan":    true,
	"null":   true,
	"nil":    true,
	"none":   true,
	"n/a":    true,
	"#n/a":   true,
	"na":     true,
	"-":      true,
	"#value": true,
}

// IsMissing determines if a raw cell should be treated as missing
func IsMissing(cell string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(cell))]
}

// ParseNumber coerces a raw cell to a number. ok is false for missing or
// non-numeric cells; isInt reports whether the cell was an integer literal.
func (c *TypeConverter) ParseNumber(cell string) (value float64, isInt bool, ok bool) {
	cleaned := strings.TrimSpace(cell)
	if IsMissing(cleaned) {
		return math.NaN(), false, false
	}

	if v, isInt, ok := parseNumeric(cleaned); ok {
		return v, isInt, true
	}

	if c.config.AllowThousandsSeparator && strings.Contains(cleaned, ",") {
		if v, isInt, ok := parseNumeric(strings.ReplaceAll(cleaned, ",", "")); ok {
			return v, isInt, true
		}
	}

	return math.NaN(), false, false
}

func parseNumeric(s string) (float64, bool, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), true, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN(), false, false
	}
	return f, false, true
}

// ToNullFloat converts a value to a nullable float for SQL parameters
func ToNullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// FromSQLValue converts a scanned SQL value to a float, NaN for NULL
func FromSQLValue(value interface{}) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return math.NaN(), false, nil
	case int64:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case float64:
		return v, false, nil
	case float32:
		return float64(v), false, nil
	case []byte:
		return parseSQLText(string(v))
	case string:
		return parseSQLText(v)
	case bool:
		if v {
			return 1, true, nil
		}
		return 0, true, nil
	default:
		return math.NaN(), false, fmt.Errorf("cannot convert %T to a number", value)
	}
}

func parseSQLText(s string) (float64, bool, error) {
	if IsMissing(s) {
		return math.NaN(), false, nil
	}
	v, isInt, ok := parseNumeric(strings.TrimSpace(s))
	if !ok {
		return math.NaN(), false, fmt.Errorf("cannot parse %q as a number", s)
	}
	return v, isInt, nil
}

// FromSQLTime converts a scanned SQL timestamp value to a time.Time
func (c *TypeConverter) FromSQLTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		t, _, err := c.ParseTimestamp(string(v))
		return t, err
	case string:
		t, _, err := c.ParseTimestamp(v)
		return t, err
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a timestamp", value)
	}
}
