package service

import (
	"strconv"
	"strings"
	"time"

	"gridbase-engine/internal/domain"
)

// 日期解析按顺序尝试的布局
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// boolAlphabet 布尔列接受的固定字面量表
var boolAlphabet = map[string]bool{
	"true":  true,
	"false": false,
	"1":     true,
	"0":     false,
	"✓":     true,
	"✗":     false,
}

// ValidateValue 按列类型校验原始值
// 空值（nil、""、空数组）一律有效：缺数据不是类型错误
func ValidateValue(raw any, columnType domain.ColumnType, customOptions []string) bool {
	v := domain.ValueFromAny(raw)
	if v.IsEmpty() {
		return true
	}

	switch columnType {
	case domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeEmail, domain.ColumnTypeURL:
		return isStringLike(v)
	case domain.ColumnTypeNumber, domain.ColumnTypeInteger, domain.ColumnTypeDecimal:
		_, ok := parseNumber(v)
		return ok
	case domain.ColumnTypeBoolean:
		if v.Kind == domain.KindBool {
			return true
		}
		if v.Kind == domain.KindString {
			_, ok := boolAlphabet[strings.TrimSpace(v.Str)]
			return ok
		}
		return false
	case domain.ColumnTypeDate, domain.ColumnTypeDatetime:
		_, ok := parseDate(v)
		return ok
	case domain.ColumnTypeReference:
		// 结构校验：非空标量、逗号分隔串或数组都算合法，存在性另查
		return true
	case domain.ColumnTypeCustomArray:
		return validateCustomArray(v, customOptions)
	default:
		return false
	}
}

// CoerceValue 按列类型把原始值归一成带类型的Value
// 解析不了的按Null落地；对已归一的值再次归一结果不变
func CoerceValue(raw any, columnType domain.ColumnType) domain.Value {
	v := domain.ValueFromAny(raw)
	if v.IsEmpty() {
		return domain.NullValue()
	}

	switch columnType {
	case domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeEmail, domain.ColumnTypeURL:
		if v.Kind == domain.KindString {
			return v
		}
		return domain.StringValue(v.Canonical())
	case domain.ColumnTypeNumber, domain.ColumnTypeInteger, domain.ColumnTypeDecimal:
		f, ok := parseNumber(v)
		if !ok {
			return domain.NullValue()
		}
		return domain.NumberValue(f)
	case domain.ColumnTypeBoolean:
		if v.Kind == domain.KindBool {
			return v
		}
		if v.Kind == domain.KindString {
			if b, ok := boolAlphabet[strings.TrimSpace(v.Str)]; ok {
				return domain.BoolValue(b)
			}
		}
		return domain.BoolValue(truthiness(v))
	case domain.ColumnTypeDate:
		t, ok := parseDate(v)
		if !ok {
			return domain.NullValue()
		}
		t = t.UTC()
		return domain.TimeValue(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	case domain.ColumnTypeDatetime:
		t, ok := parseDate(v)
		if !ok {
			return domain.NullValue()
		}
		return domain.TimeValue(t.UTC())
	case domain.ColumnTypeReference:
		return NormalizeReference(v)
	case domain.ColumnTypeCustomArray:
		if v.Kind == domain.KindArray {
			trimmed := make([]string, 0, len(v.Arr))
			for _, item := range v.Arr {
				trimmed = append(trimmed, strings.TrimSpace(item))
			}
			return domain.ArrayValue(trimmed)
		}
		return domain.StringValue(v.Canonical())
	default:
		return v
	}
}

// NormalizeReference 把引用值归一成数组形式
// 标量包成单元素数组，逗号分隔串拆开并去空白
func NormalizeReference(v domain.Value) domain.Value {
	if v.IsEmpty() {
		return domain.ArrayValue([]string{})
	}

	if v.Kind == domain.KindArray {
		items := make([]string, 0, len(v.Arr))
		for _, item := range v.Arr {
			item = strings.TrimSpace(item)
			if item != "" {
				items = append(items, item)
			}
		}
		return domain.ArrayValue(items)
	}

	text := strings.TrimSpace(v.Canonical())
	if text == "" {
		return domain.ArrayValue([]string{})
	}
	if strings.Contains(text, ",") {
		parts := strings.Split(text, ",")
		items := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
		return domain.ArrayValue(items)
	}

	return domain.ArrayValue([]string{text})
}

func isStringLike(v domain.Value) bool {
	switch v.Kind {
	case domain.KindString, domain.KindNumber, domain.KindBool, domain.KindTime:
		return true
	default:
		return false
	}
}

func parseNumber(v domain.Value) (float64, bool) {
	switch v.Kind {
	case domain.KindNumber:
		return v.Num, true
	case domain.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func parseDate(v domain.Value) (time.Time, bool) {
	switch v.Kind {
	case domain.KindTime:
		return v.Time, true
	case domain.KindString:
		text := strings.TrimSpace(v.Str)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// truthiness 布尔兜底：字母表之外的值按真值语义映射
func truthiness(v domain.Value) bool {
	switch v.Kind {
	case domain.KindBool:
		return v.Bool
	case domain.KindNumber:
		return v.Num != 0
	case domain.KindString:
		return v.Str != ""
	case domain.KindArray:
		return true
	case domain.KindTime:
		return true
	default:
		return false
	}
}

func validateCustomArray(v domain.Value, customOptions []string) bool {
	// 没配选项表时任意字符串值都接受
	if len(customOptions) == 0 {
		return isStringLike(v) || v.Kind == domain.KindArray
	}

	allowed := make(map[string]bool, len(customOptions))
	for _, option := range customOptions {
		allowed[option] = true
	}

	if v.Kind == domain.KindArray {
		for _, item := range v.Arr {
			if !allowed[strings.TrimSpace(item)] {
				return false
			}
		}
		return true
	}
	return allowed[v.Canonical()]
}
