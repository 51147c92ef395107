package service

import (
	"context"
	"testing"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// widgetFixture 在engineFixture上加一张销量表
// 四行数据：East-100、East-50、West-30、无Region-20
type widgetFixture struct {
	*engineFixture
	tableID  string
	regionID string
	amountID string
	signedID string
}

func newWidgetFixture(t *testing.T) *widgetFixture {
	t.Helper()
	f := newEngineFixture(t)
	tableID := f.createTable(t, "Sales")
	regionID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Region", ColumnType: "string"})
	amountID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Amount", ColumnType: "number"})
	signedID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Signed", ColumnType: "date"})

	f.createRow(t, tableID, []CellInput{{ColumnID: regionID, Value: "East"}, {ColumnID: amountID, Value: 100}})
	f.createRow(t, tableID, []CellInput{{ColumnID: regionID, Value: "East"}, {ColumnID: amountID, Value: 50}})
	f.createRow(t, tableID, []CellInput{{ColumnID: regionID, Value: "West"}, {ColumnID: amountID, Value: 30}})
	f.createRow(t, tableID, []CellInput{{ColumnID: amountID, Value: 20}})

	return &widgetFixture{
		engineFixture: f,
		tableID:       tableID,
		regionID:      regionID,
		amountID:      amountID,
		signedID:      signedID,
	}
}

func (f *widgetFixture) query(t *testing.T, req WidgetQueryRequest) map[string]any {
	t.Helper()
	req.TenantID = f.tenantID
	req.TableID = f.tableID
	payload, err := f.widgets.Query(context.Background(), f.admin, &req)
	require.NoError(t, err)
	return payload
}

// TestWidgetQuery_MetricSum metric组件对全表求和
func TestWidgetQuery_MetricSum(t *testing.T) {
	f := newWidgetFixture(t)
	payload := f.query(t, WidgetQueryRequest{
		WidgetType: "metric",
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
	})
	require.Equal(t, "metric", payload["widgetType"])
	require.Equal(t, true, payload["isValid"])
	require.Equal(t, 200.0, payload["value"])
	require.Equal(t, 4, payload["count"])
}

// TestWidgetQuery_MetricCountSkipsMissingCells COUNT只数有值的格子
func TestWidgetQuery_MetricCountSkipsMissingCells(t *testing.T) {
	f := newWidgetFixture(t)
	payload := f.query(t, WidgetQueryRequest{
		DataSource: WidgetDataSource{Column: f.regionID, Aggregation: "count"},
	})
	// widgetType留空时按metric处理
	require.Equal(t, "metric", payload["widgetType"])
	require.Equal(t, 3.0, payload["value"])
	require.Equal(t, 3, payload["count"])
}

// TestWidgetQuery_ChartGrouped chart组件：分组键排序，缺分组格的行归入""组
func TestWidgetQuery_ChartGrouped(t *testing.T) {
	f := newWidgetFixture(t)
	payload := f.query(t, WidgetQueryRequest{
		WidgetType: "chart",
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM", GroupBy: f.regionID},
	})
	require.Equal(t, "chart", payload["widgetType"])
	require.Equal(t, []string{"", "East", "West"}, payload["labels"])

	datasets, ok := payload["datasets"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, datasets, 1)
	require.Equal(t, "SUM of Amount", datasets[0]["label"])
	require.Equal(t, []any{20.0, 150.0, 30.0}, datasets[0]["data"])
}

// TestWidgetQuery_TableGrouped table组件：二维行，首列是分组键
func TestWidgetQuery_TableGrouped(t *testing.T) {
	f := newWidgetFixture(t)
	payload := f.query(t, WidgetQueryRequest{
		WidgetType: "table",
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "AVG", GroupBy: f.regionID},
	})
	require.Equal(t, "table", payload["widgetType"])
	require.Equal(t, []string{"Region", "AVG of Amount"}, payload["columns"])
	require.Equal(t, [][]any{
		{"", 20.0},
		{"East", 75.0},
		{"West", 30.0},
	}, payload["rows"])
}

// TestWidgetQuery_GroupByRequired chart/table缺groupBy直接拒绝
func TestWidgetQuery_GroupByRequired(t *testing.T) {
	f := newWidgetFixture(t)
	ctx := context.Background()

	for _, widgetType := range []string{"chart", "table"} {
		var valErr *domain.ValidationError
		_, err := f.widgets.Query(ctx, f.admin, &WidgetQueryRequest{
			TenantID:   f.tenantID,
			TableID:    f.tableID,
			WidgetType: widgetType,
			DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
		})
		require.ErrorAs(t, err, &valErr)
		require.Equal(t, "dataSource.groupBy", valErr.Field)
	}
}

// countingRows 记录ListRows调用次数的包装，用来证明校验发生在扫数据之前
type countingRows struct {
	repository.RowsRepository
	listCalls int
}

func (c *countingRows) ListRows(ctx context.Context, tenantID, tableID string, page, size int) ([]*domain.Row, map[string][]*domain.Cell, int, error) {
	c.listCalls++
	return c.RowsRepository.ListRows(ctx, tenantID, tableID, page, size)
}

// TestWidgetQuery_RejectsBeforeScan 不兼容的聚合在扫任何行之前失败
func TestWidgetQuery_RejectsBeforeScan(t *testing.T) {
	f := newWidgetFixture(t)
	ctx := context.Background()
	counter := &countingRows{RowsRepository: f.engine}
	widgets := NewWidgetService(counter, f.catalog, f.perms, zap.NewNop())

	cases := []struct {
		name  string
		req   WidgetQueryRequest
		field string
	}{
		{
			name:  "SUM on string column",
			req:   WidgetQueryRequest{DataSource: WidgetDataSource{Column: f.regionID, Aggregation: "SUM"}},
			field: "aggregation",
		},
		{
			name:  "MIN on date column",
			req:   WidgetQueryRequest{DataSource: WidgetDataSource{Column: f.signedID, Aggregation: "MIN"}},
			field: "aggregation",
		},
		{
			name:  "unknown function",
			req:   WidgetQueryRequest{DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "MEDIAN"}},
			field: "dataSource.aggregation",
		},
		{
			name:  "unknown widget type",
			req:   WidgetQueryRequest{WidgetType: "gauge", DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"}},
			field: "widgetType",
		},
		{
			name:  "missing column",
			req:   WidgetQueryRequest{DataSource: WidgetDataSource{Aggregation: "SUM"}},
			field: "dataSource.column",
		},
	}
	for _, tc := range cases {
		tc.req.TenantID = f.tenantID
		tc.req.TableID = f.tableID
		var valErr *domain.ValidationError
		_, err := widgets.Query(ctx, f.admin, &tc.req)
		require.ErrorAs(t, err, &valErr, tc.name)
		require.Equal(t, tc.field, valErr.Field, tc.name)
	}
	require.Zero(t, counter.listCalls, "rejection must happen before any row scan")
}

// TestWidgetQuery_UnknownColumns 聚合列和分组列都查不到时报NotFound
func TestWidgetQuery_UnknownColumns(t *testing.T) {
	f := newWidgetFixture(t)
	ctx := context.Background()

	var notFound *domain.NotFoundError
	_, err := f.widgets.Query(ctx, f.admin, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		DataSource: WidgetDataSource{Column: "ghost", Aggregation: "SUM"},
	})
	require.ErrorAs(t, err, &notFound)

	_, err = f.widgets.Query(ctx, f.admin, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		WidgetType: "chart",
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM", GroupBy: "ghost"},
	})
	require.ErrorAs(t, err, &notFound)
}

// TestWidgetQuery_Filters 过滤语义：eq/neq/contains/gt/lt，缺格只有neq放行
func TestWidgetQuery_Filters(t *testing.T) {
	f := newWidgetFixture(t)

	sumWith := func(filter WidgetFilter) float64 {
		payload := f.query(t, WidgetQueryRequest{
			DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
			Filters:    []WidgetFilter{filter},
		})
		require.Equal(t, true, payload["isValid"])
		return payload["value"].(float64)
	}

	require.Equal(t, 150.0, sumWith(WidgetFilter{ColumnID: f.regionID, Operator: "eq", Value: "East"}))
	// 无Region的行也通过neq
	require.Equal(t, 50.0, sumWith(WidgetFilter{ColumnID: f.regionID, Operator: "neq", Value: "East"}))
	// contains大小写不敏感
	require.Equal(t, 30.0, sumWith(WidgetFilter{ColumnID: f.regionID, Operator: "contains", Value: "we"}))
	require.Equal(t, 150.0, sumWith(WidgetFilter{ColumnID: f.amountID, Operator: "gt", Value: 40}))
	require.Equal(t, 50.0, sumWith(WidgetFilter{ColumnID: f.amountID, Operator: "lt", Value: 40}))
}

// TestWidgetQuery_FilterValidation 未知操作符和未知过滤列直接报错
func TestWidgetQuery_FilterValidation(t *testing.T) {
	f := newWidgetFixture(t)
	ctx := context.Background()

	var valErr *domain.ValidationError
	_, err := f.widgets.Query(ctx, f.admin, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
		Filters:    []WidgetFilter{{ColumnID: f.regionID, Operator: "like", Value: "E%"}},
	})
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "filters", valErr.Field)

	_, err = f.widgets.Query(ctx, f.admin, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
		Filters:    []WidgetFilter{{ColumnID: "ghost", Operator: "eq", Value: "x"}},
	})
	require.ErrorAs(t, err, &valErr)
}

// TestWidgetQuery_EmptyResultMetric 过滤后没有可聚合的值时isValid=false不是0
func TestWidgetQuery_EmptyResultMetric(t *testing.T) {
	f := newWidgetFixture(t)
	payload := f.query(t, WidgetQueryRequest{
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
		Filters:    []WidgetFilter{{ColumnID: f.regionID, Operator: "eq", Value: "Nowhere"}},
	})
	require.Equal(t, false, payload["isValid"])
	require.Nil(t, payload["value"])
	require.Contains(t, payload["error"], "no numeric values to apply SUM")
}

// TestWidgetQuery_ColumnPermissionDenied 聚合列和分组列都要过列级read权限
func TestWidgetQuery_ColumnPermissionDenied(t *testing.T) {
	f := newWidgetFixture(t)
	ctx := context.Background()
	member := f.principal("user-member", domain.RoleMember)

	// 默认列权限下member可以查询
	payload, err := f.widgets.Query(ctx, member, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
	})
	require.NoError(t, err)
	require.Equal(t, 200.0, payload["value"])

	// 聚合列不可读
	_, err = f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: f.tableID, ColumnID: f.amountID, CanRead: false,
	})
	require.NoError(t, err)

	var permErr *domain.PermissionError
	_, err = f.widgets.Query(ctx, member, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM"},
	})
	require.ErrorAs(t, err, &permErr)

	// 恢复聚合列，封掉分组列
	_, err = f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: f.tableID, ColumnID: f.amountID, CanRead: true, CanEdit: true,
	})
	require.NoError(t, err)
	_, err = f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: f.tableID, ColumnID: f.regionID, CanRead: false,
	})
	require.NoError(t, err)

	_, err = f.widgets.Query(ctx, member, &WidgetQueryRequest{
		TenantID:   f.tenantID,
		TableID:    f.tableID,
		WidgetType: "chart",
		DataSource: WidgetDataSource{Column: f.amountID, Aggregation: "SUM", GroupBy: f.regionID},
	})
	require.ErrorAs(t, err, &permErr)
}
