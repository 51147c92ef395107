package service

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"gridbase-engine/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_CoercionIdempotence 归一化是幂等的：
// 对已归一的值再次归一，结果（按规范化文本比较）不变。
// 归一化的存储往返（AsAny后再进一次管线）也不改变值。
func TestProperty_CoercionIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	columnTypes := gen.OneConstOf(
		domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeEmail, domain.ColumnTypeURL,
		domain.ColumnTypeNumber, domain.ColumnTypeInteger, domain.ColumnTypeDecimal,
		domain.ColumnTypeBoolean, domain.ColumnTypeDate, domain.ColumnTypeDatetime,
		domain.ColumnTypeReference, domain.ColumnTypeCustomArray,
	)

	properties.Property("coercing a coerced string value is a no-op", prop.ForAll(
		func(raw string, columnType domain.ColumnType) bool {
			first := CoerceValue(raw, columnType)
			second := CoerceValue(first.AsAny(), columnType)
			return first.Canonical() == second.Canonical() && first.Kind == second.Kind
		},
		gen.AnyString(),
		columnTypes,
	))

	properties.Property("coercing a coerced numeric value is a no-op", prop.ForAll(
		func(raw float64, columnType domain.ColumnType) bool {
			first := CoerceValue(raw, columnType)
			second := CoerceValue(first.AsAny(), columnType)
			return first.Canonical() == second.Canonical()
		},
		gen.Float64Range(-1e12, 1e12),
		columnTypes,
	))

	properties.TestingRun(t)
}

// TestProperty_NumberCanonicalRoundTrip 数字的规范化文本可无损解析回原值
// （唯一约束按规范化文本比较，依赖这一往返精确性）
func TestProperty_NumberCanonicalRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical text parses back to the exact float", prop.ForAll(
		func(f float64) bool {
			canonical := domain.NumberValue(f).Canonical()
			parsed, err := strconv.ParseFloat(canonical, 64)
			if err != nil {
				return false
			}
			return parsed == f
		},
		gen.Float64Range(-1e15, 1e15),
	))

	properties.Property("coercing the canonical text yields the same value", prop.ForAll(
		func(f float64) bool {
			canonical := domain.NumberValue(f).Canonical()
			coerced := CoerceValue(canonical, domain.ColumnTypeNumber)
			return coerced.Kind == domain.KindNumber && coerced.Num == f
		},
		gen.Float64Range(-1e15, 1e15),
	))

	properties.TestingRun(t)
}

// TestProperty_DateCoercionMidnight date列归一总是落在UTC零点
func TestProperty_DateCoercionMidnight(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("date coercion truncates any timestamp to midnight UTC", prop.ForAll(
		func(unixSec int64) bool {
			raw := time.Unix(unixSec, 0).UTC().Format(time.RFC3339)
			v := CoerceValue(raw, domain.ColumnTypeDate)
			if v.Kind != domain.KindTime {
				return false
			}
			hour, minute, sec := v.Time.Clock()
			return hour == 0 && minute == 0 && sec == 0 && v.Time.Location() == time.UTC
		},
		gen.Int64Range(0, 4102444800), // 1970 .. 2100
	))

	properties.TestingRun(t)
}

// TestProperty_ReferenceNormalization 引用归一的结果总是非空白数组项
func TestProperty_ReferenceNormalization(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalized reference items are trimmed and non-empty", prop.ForAll(
		func(raw string) bool {
			v := NormalizeReference(domain.StringValue(raw))
			if v.Kind != domain.KindArray {
				return false
			}
			for _, item := range v.Arr {
				if item == "" || item != strings.TrimSpace(item) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
