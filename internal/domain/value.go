package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind 单元格值的类型标记
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindArray
)

// Value 单元格值（tagged variant）
// 内部逻辑用强类型表示，存储边界编解码为JSONB：
// null / string / number / bool / RFC3339字符串（时间）/ 字符串数组。
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
	Arr  []string
}

func NullValue() Value               { return Value{Kind: KindNull} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func NumberValue(f float64) Value    { return Value{Kind: KindNumber, Num: f} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func TimeValue(t time.Time) Value    { return Value{Kind: KindTime, Time: t.UTC()} }
func ArrayValue(items []string) Value { return Value{Kind: KindArray, Arr: items} }

// IsEmpty 判断是否为"无数据"（null、空字符串、空数组）
// 空值对任何列类型都合法（缺数据不是类型错误）。
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == ""
	case KindArray:
		return len(v.Arr) == 0
	default:
		return false
	}
}

// Canonical 规范化字符串形式，用于唯一约束比较和引用匹配
// 各分支与JSONB的文本投影（value #>> '{}'）逐字一致：
// 数字最短精确表示，时间UTC RFC3339，数组按jsonb渲染（逗号后带空格）。
func (v Value) Canonical() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	case KindArray:
		parts := make([]string, 0, len(v.Arr))
		for _, item := range v.Arr {
			b, _ := json.Marshal(item)
			parts = append(parts, string(b))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// AsAny 转换为JSON可编码的泛型值（存储边界用）
func (v Value) AsAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindTime:
		// JSONB没有时间类型，存RFC3339字符串
		return v.Time.UTC().Format(time.RFC3339)
	case KindArray:
		return v.Arr
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.AsAny())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueFromAny(raw)
	return nil
}

// ValueFromAny 将任意（JSON解码后的）原始值包装为Value
// 时间以字符串形式进出存储，读取端拿到的是KindString；
// 规范化比较走Canonical，两种表示等价。
func ValueFromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(t.String())
	case time.Time:
		return TimeValue(t)
	case []string:
		return ArrayValue(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, e := range t {
			items = append(items, Stringify(e))
		}
		return ArrayValue(items)
	default:
		return StringValue(Stringify(raw))
	}
}

// Stringify 任意原始值的字符串形式（解析失败时的兜底）
func Stringify(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		if b, err := json.Marshal(raw); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", raw)
	}
}
