package service

import (
	"fmt"
	"math"
	"strings"

	"gridbase-engine/internal/domain"
)

// AggregateFunc 聚合函数
type AggregateFunc string

const (
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggCount AggregateFunc = "COUNT"
)

// ParseAggregateFunc 解析聚合函数名（大小写不敏感）
func ParseAggregateFunc(s string) (AggregateFunc, bool) {
	switch AggregateFunc(strings.ToUpper(strings.TrimSpace(s))) {
	case AggSum:
		return AggSum, true
	case AggAvg:
		return AggAvg, true
	case AggMin:
		return AggMin, true
	case AggMax:
		return AggMax, true
	case AggCount:
		return AggCount, true
	}
	return "", false
}

// ValidateAggregation 校验聚合函数和列类型的兼容性
// SUM/AVG只对数字列合法；MIN/MAX对数字和文本列合法（日期列不合法）；COUNT任意。
// 必须在扫数据之前失败，不允许算到一半才发现不兼容。
func ValidateAggregation(fn AggregateFunc, columnType domain.ColumnType) error {
	switch fn {
	case AggCount:
		return nil
	case AggSum, AggAvg:
		if !columnType.IsNumeric() {
			return domain.NewValidationError("aggregation",
				fmt.Sprintf("%s requires a numeric column, got %s", fn, columnType))
		}
		return nil
	case AggMin, AggMax:
		if !columnType.IsNumeric() && !columnType.IsTextual() {
			return domain.NewValidationError("aggregation",
				fmt.Sprintf("%s requires a numeric or text column, got %s", fn, columnType))
		}
		return nil
	default:
		return domain.NewValidationError("aggregation", fmt.Sprintf("unknown aggregation function: %s", fn))
	}
}

// AggregateResult 聚合结果
// isValid=false时value无意义，error给出原因；空输入不静默归零。
type AggregateResult struct {
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
	IsValid bool    `json:"isValid"`
	Error   string  `json:"error,omitempty"`
}

// Aggregate 对一组值应用聚合函数
// SUM/AVG/MIN/MAX先滤掉null/非数字/NaN；全被滤掉时isValid=false。
func Aggregate(values []domain.Value, fn AggregateFunc) AggregateResult {
	if fn == AggCount {
		count := 0
		for _, v := range values {
			if !v.IsEmpty() {
				count++
			}
		}
		return AggregateResult{Value: float64(count), Count: count, IsValid: true}
	}

	numbers := make([]float64, 0, len(values))
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		f, ok := parseNumber(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		numbers = append(numbers, f)
	}

	if len(numbers) == 0 {
		return AggregateResult{
			IsValid: false,
			Error:   fmt.Sprintf("no numeric values to apply %s", fn),
		}
	}

	switch fn {
	case AggSum, AggAvg:
		sum := 0.0
		for _, f := range numbers {
			sum += f
		}
		if fn == AggAvg {
			sum /= float64(len(numbers))
		}
		return AggregateResult{Value: sum, Count: len(numbers), IsValid: true}
	case AggMin, AggMax:
		result := numbers[0]
		for _, f := range numbers[1:] {
			if (fn == AggMin && f < result) || (fn == AggMax && f > result) {
				result = f
			}
		}
		return AggregateResult{Value: result, Count: len(numbers), IsValid: true}
	default:
		return AggregateResult{
			IsValid: false,
			Error:   fmt.Sprintf("unknown aggregation function: %s", fn),
		}
	}
}

// AggregationSpec 分组聚合的单项要求（对哪个列键应用哪个函数）
type AggregationSpec struct {
	Key  string
	Func AggregateFunc
}

// GroupAndAggregate 按分组键的原始值分组后逐组聚合
// rows是以列键索引的稀疏记录（缺格就是缺键）；分组键取原始值的规范化文本，
// 分组列缺格的行归入""组。
func GroupAndAggregate(rows []map[string]domain.Value, groupBy string, specs []AggregationSpec) map[string]map[string]AggregateResult {
	groups := map[string][]map[string]domain.Value{}
	for _, row := range rows {
		key := ""
		if v, ok := row[groupBy]; ok {
			key = v.Canonical()
		}
		groups[key] = append(groups[key], row)
	}

	results := make(map[string]map[string]AggregateResult, len(groups))
	for key, members := range groups {
		perKey := make(map[string]AggregateResult, len(specs))
		for _, spec := range specs {
			values := make([]domain.Value, 0, len(members))
			for _, row := range members {
				if v, ok := row[spec.Key]; ok {
					values = append(values, v)
				}
			}
			perKey[spec.Key] = Aggregate(values, spec.Func)
		}
		results[key] = perKey
	}
	return results
}
