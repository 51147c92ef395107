package service

import (
	"context"
	"testing"

	"gridbase-engine/internal/domain"

	"github.com/stretchr/testify/require"
)

// TestCreateRow_TypedCells 原始值按列类型归一后落库
func TestCreateRow_TypedCells(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	priceID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Price", ColumnType: "number"})
	activeID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Active", ColumnType: "boolean"})

	rowID := f.createRow(t, tableID, []CellInput{
		{ColumnID: nameID, Value: "Desk"},
		{ColumnID: priceID, Value: "42.50"},
		{ColumnID: activeID, Value: "true"},
	})

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	require.Len(t, cells, 3)

	byColumn := map[string]domain.Value{}
	for _, cell := range cells {
		byColumn[cell.ColumnID] = cell.Value
	}
	require.Equal(t, domain.KindString, byColumn[nameID].Kind)
	require.Equal(t, "Desk", byColumn[nameID].Str)
	require.Equal(t, domain.KindNumber, byColumn[priceID].Kind)
	require.Equal(t, 42.5, byColumn[priceID].Num)
	require.Equal(t, domain.KindBool, byColumn[activeID].Kind)
	require.True(t, byColumn[activeID].Bool)
}

// TestCreateRow_AllOrNothing 一格校验失败整行不落库
func TestCreateRow_AllOrNothing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	priceID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Price", ColumnType: "number"})

	var valErr *domain.ValidationError
	_, err := f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: f.admin,
		TableID:   tableID,
		Cells: []CellInput{
			{ColumnID: nameID, Value: "Desk"},
			{ColumnID: priceID, Value: "not-a-number"},
		},
	})
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "Price", valErr.Field)

	total, err := f.engine.CountRows(ctx, f.tenantID, tableID)
	require.NoError(t, err)
	require.Zero(t, total, "failed row must leave nothing behind")
}

// TestCreateRow_RejectsUnknownAndDuplicateColumns 未知列和同列重复格都拒绝
func TestCreateRow_RejectsUnknownAndDuplicateColumns(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})

	var valErr *domain.ValidationError
	_, err := f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: f.admin, TableID: tableID,
		Cells: []CellInput{{ColumnID: "no-such-column", Value: "x"}},
	})
	require.ErrorAs(t, err, &valErr)

	_, err = f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: f.admin, TableID: tableID,
		Cells: []CellInput{
			{ColumnID: nameID, Value: "a"},
			{ColumnID: nameID, Value: "b"},
		},
	})
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "Name", valErr.Field)
}

// TestCreateRow_AutoIncrement autoIncrement列没给值时按max+1补值，显式给值不补
func TestCreateRow_AutoIncrement(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Tickets")
	seqID := f.createColumn(t, CreateColumnRequest{
		TableID: tableID, ColumnName: "Seq", ColumnType: "number", AutoIncrement: true,
	})
	titleID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Title", ColumnType: "string"})

	first := f.createRow(t, tableID, []CellInput{{ColumnID: titleID, Value: "one"}})
	second := f.createRow(t, tableID, []CellInput{{ColumnID: titleID, Value: "two"}})
	third := f.createRow(t, tableID, []CellInput{
		{ColumnID: titleID, Value: "pinned"},
		{ColumnID: seqID, Value: 10},
	})
	fourth := f.createRow(t, tableID, []CellInput{{ColumnID: titleID, Value: "four"}})

	seqOf := func(rowID string) float64 {
		_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
		require.NoError(t, err)
		for _, cell := range cells {
			if cell.ColumnID == seqID {
				return cell.Value.Num
			}
		}
		t.Fatalf("row %s has no Seq cell", rowID)
		return 0
	}
	require.Equal(t, 1.0, seqOf(first))
	require.Equal(t, 2.0, seqOf(second))
	require.Equal(t, 10.0, seqOf(third))
	require.Equal(t, 11.0, seqOf(fourth))
}

// TestCreateRow_UniqueConflict 唯一列按规范化值比较，等价表示也算重复
func TestCreateRow_UniqueConflict(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	skuID := f.createColumn(t, CreateColumnRequest{
		TableID: tableID, ColumnName: "SKU", ColumnType: "number", Unique: true,
	})

	f.createRow(t, tableID, []CellInput{{ColumnID: skuID, Value: "12.50"}})

	// 12.5和"12.50"的规范化文本一致
	var conflict *domain.ConflictError
	_, err := f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: f.admin, TableID: tableID,
		Cells: []CellInput{{ColumnID: skuID, Value: 12.5}},
	})
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "SKU", conflict.Column)
	require.Equal(t, "12.5", conflict.Value)

	total, err := f.engine.CountRows(ctx, f.tenantID, tableID)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

// TestCreateRow_EmptyValuesProduceNoCells 空值不落格（稀疏行）
func TestCreateRow_EmptyValuesProduceNoCells(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	noteID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Note", ColumnType: "text"})

	rowID := f.createRow(t, tableID, []CellInput{
		{ColumnID: nameID, Value: "Desk"},
		{ColumnID: noteID, Value: ""},
	})

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, nameID, cells[0].ColumnID)
}

// TestUpdateCell_RechecksRules 改值重跑三段检查，自己的旧值不算冲突
func TestUpdateCell_RechecksRules(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	skuID := f.createColumn(t, CreateColumnRequest{
		TableID: tableID, ColumnName: "SKU", ColumnType: "string", Unique: true,
	})

	f.createRow(t, tableID, []CellInput{{ColumnID: skuID, Value: "SB-1"}})
	rowB := f.createRow(t, tableID, []CellInput{{ColumnID: skuID, Value: "SB-2"}})

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowB)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	cellID := cells[0].CellID

	// 撞到别的行的值冲突
	var conflict *domain.ConflictError
	_, err = f.cells.UpdateCell(ctx, UpdateCellRequest{Principal: f.admin, CellID: cellID, Value: "SB-1"})
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "SKU", conflict.Column)

	// 写回自己当前的值不算冲突（排除本行）
	payload, err := f.cells.UpdateCell(ctx, UpdateCellRequest{Principal: f.admin, CellID: cellID, Value: "SB-2"})
	require.NoError(t, err)
	require.Equal(t, "SB-2", payload.Value)
	require.Equal(t, "SKU", payload.Column.Name)

	// cell不存在时报NotFound
	var notFound *domain.NotFoundError
	_, err = f.cells.UpdateCell(ctx, UpdateCellRequest{Principal: f.admin, CellID: "no-such-cell", Value: "x"})
	require.ErrorAs(t, err, &notFound)
}

// TestUpdateCell_ReferenceHardError 直接写入路径上未解析引用是硬错误
func TestUpdateCell_ReferenceHardError(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	customersID := f.createTable(t, "Customers")
	codeID := f.createColumn(t, CreateColumnRequest{
		TableID: customersID, ColumnName: "Code", ColumnType: "string", Primary: true,
	})
	f.createRow(t, customersID, []CellInput{{ColumnID: codeID, Value: "CUST-1"}})
	f.createRow(t, customersID, []CellInput{{ColumnID: codeID, Value: "CUST-2"}})

	ordersID := f.createTable(t, "Orders")
	customerID := f.createColumn(t, CreateColumnRequest{
		TableID: ordersID, ColumnName: "Customer", ColumnType: "reference", ReferenceTableID: customersID,
	})

	// 逗号分隔串归一成数组，两个候选值都能解析
	rowID := f.createRow(t, ordersID, []CellInput{{ColumnID: customerID, Value: "CUST-1, CUST-2"}})
	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []string{"CUST-1", "CUST-2"}, cells[0].Value.Arr)

	var refErr *domain.ReferenceError
	_, err = f.cells.UpdateCell(ctx, UpdateCellRequest{Principal: f.admin, CellID: cells[0].CellID, Value: "CUST-9"})
	require.ErrorAs(t, err, &refErr)
	require.Equal(t, "Customer", refErr.Column)
	require.Equal(t, []string{"CUST-9"}, refErr.Values)

	// 建行路径同样是硬错误
	_, err = f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: f.admin, TableID: ordersID,
		Cells: []CellInput{{ColumnID: customerID, Value: "CUST-404"}},
	})
	require.ErrorAs(t, err, &refErr)
}

// TestSetCell_FillsSparseRow 没有格时建格，有格时覆盖
func TestSetCell_FillsSparseRow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	priceID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Price", ColumnType: "number"})

	rowID := f.createRow(t, tableID, []CellInput{{ColumnID: nameID, Value: "Desk"}})

	payload, err := f.cells.SetCell(ctx, SetCellRequest{
		Principal: f.admin, RowID: rowID, ColumnID: priceID, Value: 10,
	})
	require.NoError(t, err)
	require.Equal(t, rowID, payload.RowID)
	require.Equal(t, "Price", payload.Column.Name)
	require.Equal(t, 10.0, payload.Value)

	// 覆盖写不新增格
	_, err = f.cells.SetCell(ctx, SetCellRequest{
		Principal: f.admin, RowID: rowID, ColumnID: priceID, Value: 20,
	})
	require.NoError(t, err)

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	for _, cell := range cells {
		if cell.ColumnID == priceID {
			require.Equal(t, 20.0, cell.Value.Num)
		}
	}
}

// TestDeleteRow_NotFoundAndCascade 行不存在报NotFound；删行级联清cells
func TestDeleteRow_NotFoundAndCascade(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	rowID := f.createRow(t, tableID, []CellInput{{ColumnID: nameID, Value: "Desk"}})

	var notFound *domain.NotFoundError
	err := f.cells.DeleteRow(ctx, DeleteRowRequest{Principal: f.admin, RowID: "no-such-row"})
	require.ErrorAs(t, err, &notFound)

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	cellID := cells[0].CellID

	require.NoError(t, f.cells.DeleteRow(ctx, DeleteRowRequest{Principal: f.admin, RowID: rowID}))

	total, err := f.engine.CountRows(ctx, f.tenantID, tableID)
	require.NoError(t, err)
	require.Zero(t, total)

	_, err = f.engine.GetCell(ctx, f.tenantID, cellID)
	require.ErrorAs(t, err, &notFound)
}

// TestDeleteCell_ClearsSingleValue 删格只清该行该列的值
func TestDeleteCell_ClearsSingleValue(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	priceID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Price", ColumnType: "number"})
	rowID := f.createRow(t, tableID, []CellInput{
		{ColumnID: nameID, Value: "Desk"},
		{ColumnID: priceID, Value: 10},
	})

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	var priceCellID string
	for _, cell := range cells {
		if cell.ColumnID == priceID {
			priceCellID = cell.CellID
		}
	}
	require.NotEmpty(t, priceCellID)

	require.NoError(t, f.cells.DeleteCell(ctx, DeleteCellRequest{Principal: f.admin, CellID: priceCellID}))

	_, cells, err = f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, nameID, cells[0].ColumnID)
}

// TestCellWrites_PermissionDenied 写路径逐级过权限：表级create、列级edit、表级delete
func TestCellWrites_PermissionDenied(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	rowID := f.createRow(t, tableID, []CellInput{{ColumnID: nameID, Value: "Desk"}})

	var permErr *domain.PermissionError

	// VIEWER建行被硬上限拦截
	viewer := f.principal("user-viewer", domain.RoleViewer)
	_, err := f.cells.CreateRow(ctx, CreateRowRequest{
		Principal: viewer, TableID: tableID,
		Cells: []CellInput{{ColumnID: nameID, Value: "x"}},
	})
	require.ErrorAs(t, err, &permErr)

	// 列级canEdit=false拦截改格
	member := f.principal("user-member", domain.RoleMember)
	_, err = f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: tableID, ColumnID: nameID, CanRead: true, CanEdit: false,
	})
	require.NoError(t, err)

	_, cells, err := f.engine.GetRow(ctx, f.tenantID, rowID)
	require.NoError(t, err)
	_, err = f.cells.UpdateCell(ctx, UpdateCellRequest{Principal: member, CellID: cells[0].CellID, Value: "y"})
	require.ErrorAs(t, err, &permErr)
	require.Equal(t, "column", permErr.Scope)

	// 表级canDelete=false拦截删行
	_, err = f.perms.UpsertTablePermission(ctx, f.admin, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-member",
		CanRead: true, CanEdit: true, CanDelete: false, CanCreate: true,
	})
	require.NoError(t, err)
	err = f.cells.DeleteRow(ctx, DeleteRowRequest{Principal: member, RowID: rowID})
	require.ErrorAs(t, err, &permErr)
	require.Equal(t, "table", permErr.Scope)
}

// TestListRows_FiltersUnreadableColumns 列级canRead=false的cell在行列表里被过滤
func TestListRows_FiltersUnreadableColumns(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Payroll")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	salaryID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Salary", ColumnType: "number"})
	f.createRow(t, tableID, []CellInput{
		{ColumnID: nameID, Value: "Alice"},
		{ColumnID: salaryID, Value: 90000},
	})

	_, err := f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: tableID, ColumnID: salaryID, CanRead: false, CanEdit: false,
	})
	require.NoError(t, err)

	member := f.principal("user-member", domain.RoleMember)
	resp, err := f.cells.ListRows(ctx, ListRowsRequest{Principal: member, TableID: tableID})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Len(t, resp.Items[0].Cells, 1)
	require.Equal(t, nameID, resp.Items[0].Cells[0]["columnId"])

	// admin不受列级行影响
	resp, err = f.cells.ListRows(ctx, ListRowsRequest{Principal: f.admin, TableID: tableID})
	require.NoError(t, err)
	require.Len(t, resp.Items[0].Cells, 2)
}

// TestListRows_Pagination 分页裁剪，总数回传
func TestListRows_Pagination(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Name", ColumnType: "string"})
	for _, name := range []string{"a", "b", "c"} {
		f.createRow(t, tableID, []CellInput{{ColumnID: nameID, Value: name}})
	}

	resp, err := f.cells.ListRows(ctx, ListRowsRequest{Principal: f.admin, TableID: tableID, Page: 2, Size: 2})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 1)
	require.Equal(t, 2, resp.Pagination.Page)
	require.Equal(t, 2, resp.Pagination.Size)
	require.Equal(t, 3, resp.Pagination.Total)
}
