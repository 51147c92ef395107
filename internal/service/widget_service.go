package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// 单次widget查询最多扫描的行数
const widgetRowLimit = 10000

// WidgetService 看板组件查询
// 把cell结构的行数据重整成按列名索引的扁平记录，过滤后分组聚合，
// 再按组件类型映射成chart/table/metric载荷。
type WidgetService struct {
	rowRepo repository.RowsRepository
	catalog *CatalogService
	perms   *PermissionService
	logger  *zap.Logger
}

// NewWidgetService 创建看板组件服务
func NewWidgetService(rowRepo repository.RowsRepository, catalog *CatalogService, perms *PermissionService, logger *zap.Logger) *WidgetService {
	return &WidgetService{
		rowRepo: rowRepo,
		catalog: catalog,
		perms:   perms,
		logger:  logger,
	}
}

// WidgetDataSource 数据源描述
type WidgetDataSource struct {
	Column      string `json:"column"`
	Aggregation string `json:"aggregation"`
	GroupBy     string `json:"groupBy,omitempty"`
}

// WidgetFilter 行过滤条件
type WidgetFilter struct {
	ColumnID string `json:"columnId"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// WidgetQueryRequest 组件查询请求
type WidgetQueryRequest struct {
	TenantID   string
	TableID    string
	WidgetType string           `json:"widgetType"`
	DataSource WidgetDataSource `json:"dataSource"`
	Filters    []WidgetFilter   `json:"filters,omitempty"`
}

// Query 执行组件查询
// 聚合函数和列类型的兼容性在扫数据之前校验
func (s *WidgetService) Query(ctx context.Context, principal domain.Principal, req *WidgetQueryRequest) (map[string]any, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if req.TableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}
	if req.DataSource.Column == "" {
		return nil, domain.NewValidationError("dataSource.column", "column is required")
	}

	fn, ok := ParseAggregateFunc(req.DataSource.Aggregation)
	if !ok {
		return nil, domain.NewValidationError("dataSource.aggregation",
			fmt.Sprintf("unknown aggregation function: %s", req.DataSource.Aggregation))
	}

	widgetType := strings.ToLower(strings.TrimSpace(req.WidgetType))
	if widgetType == "" {
		widgetType = "metric"
	}
	switch widgetType {
	case "chart", "table":
		if req.DataSource.GroupBy == "" {
			return nil, domain.NewValidationError("dataSource.groupBy",
				fmt.Sprintf("groupBy is required for %s widgets", widgetType))
		}
	case "metric":
	default:
		return nil, domain.NewValidationError("widgetType", fmt.Sprintf("unknown widget type: %s", req.WidgetType))
	}

	if err := s.perms.Require(ctx, principal, req.TableID, req.DataSource.Column, domain.ActionRead); err != nil {
		return nil, err
	}

	columns, err := s.catalog.GetColumns(ctx, req.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Column, len(columns))
	for _, column := range columns {
		byID[column.ColumnID] = column
	}

	aggColumn, ok := byID[req.DataSource.Column]
	if !ok {
		return nil, domain.NewNotFoundError("column", req.DataSource.Column)
	}
	if err := ValidateAggregation(fn, aggColumn.Type()); err != nil {
		return nil, err
	}

	var groupColumn *domain.Column
	if req.DataSource.GroupBy != "" {
		groupColumn, ok = byID[req.DataSource.GroupBy]
		if !ok {
			return nil, domain.NewNotFoundError("column", req.DataSource.GroupBy)
		}
		if err := s.perms.Require(ctx, principal, req.TableID, groupColumn.ColumnID, domain.ActionRead); err != nil {
			return nil, err
		}
	}

	rows, cellsByRow, _, err := s.rowRepo.ListRows(ctx, req.TenantID, req.TableID, 1, widgetRowLimit)
	if err != nil {
		return nil, err
	}

	records := reshapeRecords(byID, rows, cellsByRow)
	records, err = applyWidgetFilters(records, req.Filters, byID)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%s of %s", fn, aggColumn.ColumnName)
	switch widgetType {
	case "metric":
		values := make([]domain.Value, 0, len(records))
		for _, record := range records {
			if v, ok := record[aggColumn.ColumnName]; ok {
				values = append(values, v)
			}
		}
		return buildMetricPayload(Aggregate(values, fn)), nil
	default:
		grouped := GroupAndAggregate(records, groupColumn.ColumnName, []AggregationSpec{{Key: aggColumn.ColumnName, Func: fn}})
		if widgetType == "chart" {
			return buildChartPayload(grouped, aggColumn.ColumnName, label), nil
		}
		return buildTablePayload(grouped, aggColumn.ColumnName, groupColumn.ColumnName, label), nil
	}
}

// reshapeRecords 把cell结构的行重整成按列名索引的稀疏记录
// 缺的格子就是缺的键；空值cell同样不进记录
func reshapeRecords(byID map[string]*domain.Column, rows []*domain.Row, cellsByRow map[string][]*domain.Cell) []map[string]domain.Value {
	records := make([]map[string]domain.Value, 0, len(rows))
	for _, row := range rows {
		record := map[string]domain.Value{}
		for _, cell := range cellsByRow[row.RowID] {
			column, ok := byID[cell.ColumnID]
			if !ok {
				continue
			}
			if cell.Value.IsEmpty() {
				continue
			}
			record[column.ColumnName] = cell.Value
		}
		records = append(records, record)
	}
	return records
}

// applyWidgetFilters 按条件过滤记录
// 缺格的行：neq放行，其余条件不放行
func applyWidgetFilters(records []map[string]domain.Value, filters []WidgetFilter, byID map[string]*domain.Column) ([]map[string]domain.Value, error) {
	if len(filters) == 0 {
		return records, nil
	}

	for _, filter := range filters {
		column, ok := byID[filter.ColumnID]
		if !ok {
			return nil, domain.NewValidationError("filters", fmt.Sprintf("unknown column: %s", filter.ColumnID))
		}
		switch filter.Operator {
		case "eq", "neq", "contains", "gt", "lt":
		default:
			return nil, domain.NewValidationError("filters", fmt.Sprintf("unknown operator: %s", filter.Operator))
		}

		target := domain.ValueFromAny(filter.Value)
		kept := records[:0]
		for _, record := range records {
			if matchFilter(record, column.ColumnName, filter.Operator, target) {
				kept = append(kept, record)
			}
		}
		records = kept
	}
	return records, nil
}

func matchFilter(record map[string]domain.Value, key, operator string, target domain.Value) bool {
	value, ok := record[key]
	if !ok {
		return operator == "neq"
	}

	switch operator {
	case "eq":
		return value.Canonical() == target.Canonical()
	case "neq":
		return value.Canonical() != target.Canonical()
	case "contains":
		return strings.Contains(strings.ToLower(value.Canonical()), strings.ToLower(target.Canonical()))
	case "gt", "lt":
		left, lok := parseNumber(value)
		right, rok := parseNumber(target)
		if !lok || !rok {
			return false
		}
		if operator == "gt" {
			return left > right
		}
		return left < right
	default:
		return false
	}
}

func buildMetricPayload(result AggregateResult) map[string]any {
	payload := map[string]any{
		"widgetType": "metric",
		"count":      result.Count,
		"isValid":    result.IsValid,
	}
	if result.IsValid {
		payload["value"] = result.Value
	} else {
		payload["value"] = nil
		payload["error"] = result.Error
	}
	return payload
}

func buildChartPayload(grouped map[string]map[string]AggregateResult, key, label string) map[string]any {
	labels := sortedGroupKeys(grouped)
	data := make([]any, 0, len(labels))
	for _, groupKey := range labels {
		result := grouped[groupKey][key]
		if result.IsValid {
			data = append(data, result.Value)
		} else {
			data = append(data, nil)
		}
	}
	return map[string]any{
		"widgetType": "chart",
		"labels":     labels,
		"datasets": []map[string]any{
			{"label": label, "data": data},
		},
	}
}

func buildTablePayload(grouped map[string]map[string]AggregateResult, key, groupName, label string) map[string]any {
	labels := sortedGroupKeys(grouped)
	tableRows := make([][]any, 0, len(labels))
	for _, groupKey := range labels {
		result := grouped[groupKey][key]
		if result.IsValid {
			tableRows = append(tableRows, []any{groupKey, result.Value})
		} else {
			tableRows = append(tableRows, []any{groupKey, nil})
		}
	}
	return map[string]any{
		"widgetType": "table",
		"columns":    []string{groupName, label},
		"rows":       tableRows,
	}
}

func sortedGroupKeys(grouped map[string]map[string]AggregateResult) []string {
	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
