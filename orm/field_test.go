package orm_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

func Test_ParseFieldType(t *testing.T) {
	tests := []struct {
		tag      string
		expected orm.FieldType
	}{
		{"String", orm.TypeString},
		{"text", orm.TypeString},
		{"Integer", orm.TypeInteger},
		{"Number", orm.TypeNumber},
		{"Boolean", orm.TypeBoolean},
		{" datetime ", orm.TypeDateTime},
		{"JSON", orm.TypeJSON},
		{"Blob", orm.TypeBlob},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			fieldType, err := orm.ParseFieldType(tt.tag)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, fieldType)
		})
	}
}

func Test_ParseFieldType_When_TagIsUnknown(t *testing.T) {
	_, err := orm.ParseFieldType("Money")

	assert.ErrorIs(t, err, orm.ErrUnknownFieldType)
}

func Test_Coerce(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		fieldType orm.FieldType
		raw       any
		expected  any
	}{
		{"nil_stays_nil", orm.TypeInteger, nil, nil},
		{"string_from_bytes", orm.TypeString, []byte("milk"), "milk"},
		{"integer_from_int", orm.TypeInteger, 7, int64(7)},
		{"integer_from_string", orm.TypeInteger, " 42 ", int64(42)},
		{"integer_from_integral_float", orm.TypeInteger, 3.0, int64(3)},
		{"number_from_int64", orm.TypeNumber, int64(3), float64(3)},
		{"number_from_bytes", orm.TypeNumber, []byte("1.5"), 1.5},
		{"boolean_from_int64", orm.TypeBoolean, int64(1), true},
		{"boolean_from_string", orm.TypeBoolean, "false", false},
		{"datetime_from_time", orm.TypeDateTime, created.In(time.FixedZone("x", 3600)), created},
		{"datetime_from_sqlite_string", orm.TypeDateTime, "2024-05-01 12:00:00", created},
		{"datetime_from_rfc3339", orm.TypeDateTime, "2024-05-01T12:00:00Z", created},
		{"json_from_string", orm.TypeJSON, `{"a":[1,2]}`, map[string]any{"a": []any{float64(1), float64(2)}}},
		{"json_keeps_decoded_values", orm.TypeJSON, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"blob_from_string", orm.TypeBlob, "raw", []byte("raw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			value, err := orm.Coerce(tt.fieldType, tt.raw)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func Test_Coerce_When_ValueDoesNotFit(t *testing.T) {
	tests := []struct {
		name      string
		fieldType orm.FieldType
		raw       any
	}{
		{"integer_from_text", orm.TypeInteger, "twelve"},
		{"integer_from_fractional_float", orm.TypeInteger, 1.9},
		{"integer_from_nan", orm.TypeInteger, math.NaN()},
		{"boolean_from_text", orm.TypeBoolean, "maybe"},
		{"datetime_from_text", orm.TypeDateTime, "yesterday"},
		{"json_from_broken_text", orm.TypeJSON, "{"},
		{"blob_from_int", orm.TypeBlob, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orm.Coerce(tt.fieldType, tt.raw)

			assert.ErrorIs(t, err, orm.ErrCoercionFailed)
		})
	}
}
