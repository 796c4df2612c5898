package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// Coerce converts a value to the field's declared type. It returns the
// converted value or an error when the value cannot represent the type.
// A nil value is returned unchanged; nullability is a rule concern, not
// a coercion concern.
func Coerce(field Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Type {
	case FieldTypeString:
		return coerceString(value)
	case FieldTypeInteger:
		return coerceInteger(value)
	case FieldTypeFloat:
		return coerceFloat(value)
	case FieldTypeBoolean:
		return coerceBoolean(value)
	case FieldTypeDate:
		return coerceDate(value)
	case FieldTypeEnum:
		return coerceEnum(field, value)
	default:
		return nil, fmt.Errorf("unknown field type %q", field.Type)
	}
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("unable to coerce %T to string", value)
	}
}

func coerceInteger(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows integer", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return floatToInt(f)
		}
		return 0, fmt.Errorf("unable to coerce %q to integer", v)
	default:
		return 0, fmt.Errorf("unable to coerce %T to integer", value)
	}
}

func floatToInt(f float64) (int64, error) {
	if math.Mod(f, 1) != 0 {
		return 0, fmt.Errorf("value %v has a fractional part", f)
	}
	return int64(f), nil
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("unable to coerce %q to float", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unable to coerce %T to float", value)
	}
}

func coerceBoolean(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("unable to coerce %q to boolean", v)
		}
		return b, nil
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
		return false, fmt.Errorf("unable to coerce %d to boolean", v)
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
		return false, fmt.Errorf("unable to coerce %d to boolean", v)
	default:
		return false, fmt.Errorf("unable to coerce %T to boolean", value)
	}
}

func coerceDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return ParseDate(v)
	default:
		return time.Time{}, fmt.Errorf("unable to coerce %T to date", value)
	}
}

// ParseDate parses a date string against the supported layouts.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

func coerceEnum(field Field, value any) (string, error) {
	s, err := coerceString(value)
	if err != nil {
		return "", err
	}
	for _, allowed := range field.EnumValues {
		if s == allowed {
			return s, nil
		}
	}
	return "", fmt.Errorf("value %q is not a member of enum %s", s, field.Name)
}
