package service

import (
	"context"
	"encoding/json"
	"testing"

	"gridbase-engine/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// importFixture 在engineFixture上加一张带必填列的导入目标表
type importFixture struct {
	*engineFixture
	tableID string
	nameID  string
	priceID string
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	f := newEngineFixture(t)
	tableID := f.createTable(t, "Inventory")
	nameID := f.createColumn(t, CreateColumnRequest{
		TableID: tableID, ColumnName: "Name", ColumnType: "string", Required: true,
	})
	priceID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Price", ColumnType: "number"})
	return &importFixture{engineFixture: f, tableID: tableID, nameID: nameID, priceID: priceID}
}

func (f *importFixture) row(cells ...CellInput) ImportRow {
	return ImportRow{Cells: cells}
}

// TestImport_AllValid 全部行通过时整单落库，问题列表是空切片而不是null
func TestImport_AllValid(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows: []ImportRow{
			f.row(CellInput{ColumnID: f.nameID, Value: "desk"}, CellInput{ColumnID: f.priceID, Value: 10}),
			f.row(CellInput{ColumnID: f.nameID, Value: "chair"}, CellInput{ColumnID: f.priceID, Value: "19.99"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "lamp"}),
		},
	})
	require.NoError(t, err)
	require.False(t, result.Aborted)
	require.Equal(t, 3, result.TotalRows)
	require.Equal(t, 3, result.ValidRows)
	require.Equal(t, 3, result.ImportedRows)
	require.Zero(t, result.TotalErrors)
	require.Zero(t, result.TotalWarnings)
	require.NotNil(t, result.Errors)
	require.Empty(t, result.Errors)
	require.NotNil(t, result.Warnings)
	require.Empty(t, result.Warnings)

	total, err := f.engine.CountRows(ctx, f.tenantID, f.tableID)
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

// TestImport_AbortsWhenMajorityInvalid 错误行过半时整单中止，一行都不落
func TestImport_AbortsWhenMajorityInvalid(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	bad := f.row(CellInput{ColumnID: f.nameID, Value: "x"}, CellInput{ColumnID: f.priceID, Value: "not-a-number"})
	good := f.row(CellInput{ColumnID: f.nameID, Value: "ok"})

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows:     []ImportRow{bad, good, bad, good, bad},
	})
	require.NoError(t, err)
	require.True(t, result.Aborted)
	require.Equal(t, 3, result.TotalErrors)
	require.Zero(t, result.ImportedRows)

	total, err := f.engine.CountRows(ctx, f.tenantID, f.tableID)
	require.NoError(t, err)
	require.Zero(t, total, "aborted import must not persist anything")
}

// TestImport_ExactHalfProceeds 正好一半错误不触发中止，好的一半落库
func TestImport_ExactHalfProceeds(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	bad := f.row(CellInput{ColumnID: f.nameID, Value: "x"}, CellInput{ColumnID: f.priceID, Value: "abc"})
	good := f.row(CellInput{ColumnID: f.nameID, Value: "ok"})

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows:     []ImportRow{bad, good, bad, good},
	})
	require.NoError(t, err)
	require.False(t, result.Aborted)
	require.Equal(t, 2, result.TotalErrors)
	require.Equal(t, 2, result.ImportedRows)

	total, err := f.engine.CountRows(ctx, f.tenantID, f.tableID)
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

// TestImport_EmptyRowSkippedWithWarning 全空行跳过并记warning，不算错误
func TestImport_EmptyRowSkippedWithWarning(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows: []ImportRow{
			f.row(CellInput{ColumnID: f.nameID, Value: "desk"}),
			f.row(CellInput{ColumnID: f.nameID, Value: ""}, CellInput{ColumnID: f.priceID, Value: nil}),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ImportedRows)
	require.Equal(t, 1, result.SkippedRows)
	require.Zero(t, result.TotalErrors)
	require.Equal(t, 1, result.TotalWarnings)
	require.Equal(t, 2, result.Warnings[0].Row)
	require.Equal(t, "empty row skipped", result.Warnings[0].Message)
}

// TestImport_MissingRequiredColumns 必填列缺失或为空的行整行拒绝
func TestImport_MissingRequiredColumns(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows: []ImportRow{
			f.row(CellInput{ColumnID: f.nameID, Value: "desk"}),
			f.row(CellInput{ColumnID: f.priceID, Value: 5}),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ImportedRows)
	require.Equal(t, 1, result.TotalErrors)
	require.Equal(t, 2, result.Errors[0].Row)
	require.Equal(t, "missing required columns: Name", result.Errors[0].Message)
}

// TestImport_UnknownColumnAndDuplicateCell 未知列和同列重复格的逐行报错文案
func TestImport_UnknownColumnAndDuplicateCell(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows: []ImportRow{
			f.row(CellInput{ColumnID: "ghost", Value: "x"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "a"}, CellInput{ColumnID: f.nameID, Value: "b"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "ok"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "ok2"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "ok3"}),
		},
	})
	require.NoError(t, err)
	require.False(t, result.Aborted)
	require.Equal(t, 2, result.TotalErrors)
	require.Equal(t, "unknown column: ghost", result.Errors[0].Message)
	require.Equal(t, `duplicate cell for column "Name"`, result.Errors[1].Message)
	require.Equal(t, 3, result.ImportedRows)
}

// TestImport_UnresolvedReferenceIsSoft 未解析引用只记warning，行照常导入
func TestImport_UnresolvedReferenceIsSoft(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	customersID := f.createTable(t, "Customers")
	codeID := f.createColumn(t, CreateColumnRequest{
		TableID: customersID, ColumnName: "Code", ColumnType: "string", Primary: true,
	})
	f.createRow(t, customersID, []CellInput{{ColumnID: codeID, Value: "CUST-1"}})

	customerID := f.createColumn(t, CreateColumnRequest{
		TableID: f.tableID, ColumnName: "Customer", ColumnType: "reference", ReferenceTableID: customersID,
	})

	result, err := f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows: []ImportRow{
			f.row(CellInput{ColumnID: f.nameID, Value: "a"}, CellInput{ColumnID: customerID, Value: "CUST-1"}),
			f.row(CellInput{ColumnID: f.nameID, Value: "b"}, CellInput{ColumnID: customerID, Value: "CUST-9"}),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.ImportedRows)
	require.Zero(t, result.TotalErrors)
	require.Equal(t, 1, result.TotalWarnings)
	require.Equal(t, 2, result.Warnings[0].Row)
	require.Equal(t, `unresolved reference "CUST-9" in column "Customer"`, result.Warnings[0].Message)

	total, err := f.engine.CountRows(ctx, f.tenantID, f.tableID)
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

// TestDecodeImportRows 行级解码失败互不影响，失败原因落在该行上
func TestDecodeImportRows(t *testing.T) {
	rows := DecodeImportRows([]json.RawMessage{
		json.RawMessage(`[{"columnId":"c1","value":"x"}]`),
		json.RawMessage(`{"not":"an array"}`),
		json.RawMessage(`[{"value":"orphan"}]`),
	})
	require.Len(t, rows, 3)

	require.Empty(t, rows[0].Err)
	require.Len(t, rows[0].Cells, 1)
	require.Equal(t, "c1", rows[0].Cells[0].ColumnID)

	require.Equal(t, "malformed cell array", rows[1].Err)
	require.Equal(t, "cell is missing columnId", rows[2].Err)
}

// TestImport_PreviewTruncation 预览列表按上限截断，总数仍是全量
func TestImport_PreviewTruncation(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	limited := NewImportService(f.engine, f.engine, f.catalog, f.perms, f.resolver, nil, zap.NewNop(), 0, 0, 2)

	bad := f.row(CellInput{ColumnID: f.nameID, Value: "x"}, CellInput{ColumnID: f.priceID, Value: "abc"})
	good := f.row(CellInput{ColumnID: f.nameID, Value: "ok"})

	result, err := limited.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID,
		TableID:  f.tableID,
		Rows:     []ImportRow{bad, good, bad, good, bad, good, good, good, good, good},
	})
	require.NoError(t, err)
	require.False(t, result.Aborted)
	require.Equal(t, 3, result.TotalErrors)
	require.Len(t, result.Errors, 2)
	require.Equal(t, 7, result.ImportedRows)
}

// TestImport_SmallBatches 批大小小于行数时分多批落库，全部成功
func TestImport_SmallBatches(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	batched := NewImportService(f.engine, f.engine, f.catalog, f.perms, f.resolver, nil, zap.NewNop(), 2, 0, 0)

	rows := make([]ImportRow, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, f.row(CellInput{ColumnID: f.nameID, Value: name}))
	}
	result, err := batched.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID, TableID: f.tableID, Rows: rows,
	})
	require.NoError(t, err)
	require.Equal(t, 5, result.ImportedRows)
	require.Empty(t, result.ImportErrors)

	total, err := f.engine.CountRows(ctx, f.tenantID, f.tableID)
	require.NoError(t, err)
	require.Equal(t, 5, total)
}

// TestImport_Guards 前置检查：权限、空载荷、表不存在
func TestImport_Guards(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	var permErr *domain.PermissionError
	viewer := f.principal("user-viewer", domain.RoleViewer)
	_, err := f.imports.Import(ctx, viewer, &ImportRequest{
		TenantID: f.tenantID, TableID: f.tableID,
		Rows: []ImportRow{f.row(CellInput{ColumnID: f.nameID, Value: "x"})},
	})
	require.ErrorAs(t, err, &permErr)

	var valErr *domain.ValidationError
	_, err = f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID, TableID: f.tableID, Rows: nil,
	})
	require.ErrorAs(t, err, &valErr)

	var notFound *domain.NotFoundError
	_, err = f.imports.Import(ctx, f.admin, &ImportRequest{
		TenantID: f.tenantID, TableID: "no-such-table",
		Rows: []ImportRow{f.row(CellInput{ColumnID: f.nameID, Value: "x"})},
	})
	require.ErrorAs(t, err, &notFound)
}
