package orm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// FieldType is the semantic type tag of a declared field.
// Adapters use it to coerce raw stored values into engine-side values.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInteger
	TypeNumber
	TypeBoolean
	TypeDateTime
	TypeJSON
	TypeBlob
)

var fieldTypeNames = map[FieldType]string{
	TypeString:   "String",
	TypeInteger:  "Integer",
	TypeNumber:   "Number",
	TypeBoolean:  "Boolean",
	TypeDateTime: "DateTime",
	TypeJSON:     "JSON",
	TypeBlob:     "Blob",
}

var fieldTypeAliases = map[string]FieldType{
	"string":   TypeString,
	"text":     TypeString,
	"integer":  TypeInteger,
	"int":      TypeInteger,
	"number":   TypeNumber,
	"float":    TypeNumber,
	"boolean":  TypeBoolean,
	"bool":     TypeBoolean,
	"datetime": TypeDateTime,
	"date":     TypeDateTime,
	"json":     TypeJSON,
	"blob":     TypeBlob,
}

// String provides the tag name as used in model declarations.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}

	return "unknown"
}

// ParseFieldType resolves a type tag like "String" or "Boolean" (case-insensitive).
func ParseFieldType(tag string) (FieldType, error) {
	if t, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return t, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownFieldType, tag)
}

// Field declares one persisted property of a model.
type Field struct {
	Name    string
	Type    FieldType
	Default any
}

// F is a shorthand for declaring a Field without a default.
func F(name string, fieldType FieldType) Field {
	return Field{Name: name, Type: fieldType}
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts a raw stored value into the engine-side representation of fieldType.
// nil stays nil.
func Coerce(fieldType FieldType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	var value any
	var err error

	switch fieldType {
	case TypeString:
		value, err = coerceString(raw)
	case TypeInteger:
		value, err = coerceInteger(raw)
	case TypeNumber:
		value, err = coerceNumber(raw)
	case TypeBoolean:
		value, err = coerceBoolean(raw)
	case TypeDateTime:
		value, err = coerceDateTime(raw)
	case TypeJSON:
		value, err = coerceJSON(raw)
	case TypeBlob:
		value, err = coerceBlob(raw)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFieldType, fieldType)
	}

	if err != nil {
		return nil, errors.Join(ErrCoercionFailed, fmt.Errorf("%s from %T: %w", fieldType, raw, err))
	}

	return value, nil
}

func coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func coerceInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, errors.New("overflow")
		}
		return int64(v), nil
	case float64:
		return integralFloat(v)
	case float32:
		return integralFloat(float64(v))
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return nil, errors.New("unsupported source type")
	}
}

func integralFloat(f float64) (any, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, errors.New("not an integer")
	}

	return int64(f), nil
}

func coerceNumber(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	default:
		return nil, errors.New("unsupported source type")
	}
}

func coerceBoolean(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	default:
		return nil, errors.New("unsupported source type")
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func coerceDateTime(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case string:
		return parseDateTime(v)
	case []byte:
		return parseDateTime(string(v))
	default:
		return nil, errors.New("unsupported source type")
	}
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

func coerceJSON(raw any) (any, error) {
	var data []byte

	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return v, nil
	}

	var decoded any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}

	return decoded, nil
}

func coerceBlob(raw any) (any, error) {
	switch v := raw.(type) {
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported source type")
	}
}
