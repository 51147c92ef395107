package repository

import (
	"context"

	"gridbase-engine/internal/domain"
)

// --- Filters / updates ---

// TablesFilter 表列表过滤
type TablesFilter struct {
	WorkspaceID string
	Search      string // 按表名模糊匹配
}

// ColumnUpdate 列定义的部分更新（nil字段不改）
type ColumnUpdate struct {
	ColumnName       *string
	ColumnType       *string
	Required         *bool
	Unique           *bool
	Primary          *bool
	AutoIncrement    *bool
	Position         *int
	ReferenceTableID *string  // 指向""表示清空
	CustomOptions    []string // nil不改；空slice写入[]
	SemanticType     *string  // 指向""表示清空
}

// BatchRow 批量导入的一行（row id由调用方预生成）
type BatchRow struct {
	RowID string
	Cells []*domain.Cell
}

// --- Tables ---

type TablesRepository interface {
	// CreateTable 建表并对花名册用户fan-out表级权限行（单事务）
	CreateTable(ctx context.Context, tenantID string, table *domain.Table, users []domain.TenantUser) (string, error)
	GetTable(ctx context.Context, tenantID, tableID string) (*domain.Table, error)
	ListTables(ctx context.Context, tenantID string, filter TablesFilter, page, size int) ([]*domain.Table, int, error)
	RenameTable(ctx context.Context, tenantID, tableID, newName string) error
	SetTablePublic(ctx context.Context, tenantID, tableID string, isPublic bool) error
	// DeleteTable 级联删除cells/rows/columns/权限行（单事务、显式语句）
	DeleteTable(ctx context.Context, tenantID, tableID string) error
	CountTables(ctx context.Context, tenantID string) (int, error)
	CountPublicTables(ctx context.Context, tenantID string) (int, error)
}

// --- Columns ---

type ColumnsRepository interface {
	// CreateColumn 建列并写入默认列级权限行（单事务）；position为0时取max+1
	CreateColumn(ctx context.Context, tenantID string, column *domain.Column) (string, error)
	GetColumn(ctx context.Context, tenantID, columnID string) (*domain.Column, error)
	ListColumns(ctx context.Context, tenantID, tableID string) ([]*domain.Column, error)
	UpdateColumn(ctx context.Context, tenantID, columnID string, update ColumnUpdate) error
	// ApplyCurrencyType semanticType="currency"的复合变更：
	// type=customArray + customOptions=货币码表 + semantic_type，单条UPDATE
	ApplyCurrencyType(ctx context.Context, tenantID, columnID string, currencyCodes []string) error
	// DeleteColumn 级联删除该列cells和列级权限行（单事务）
	DeleteColumn(ctx context.Context, tenantID, columnID string) error
}

// --- Rows ---

type RowsRepository interface {
	// CreateRow 行+cells单事务写入（all-or-nothing）；
	// autoNumberColumns里的列在事务内按max+1赋值
	CreateRow(ctx context.Context, tenantID, tableID string, cells []*domain.Cell, autoNumberColumns []string) (string, error)
	// CreateRowsBatch 一批行一个事务；批内失败整批回滚
	CreateRowsBatch(ctx context.Context, tenantID, tableID string, rows []BatchRow) error
	GetRow(ctx context.Context, tenantID, rowID string) (*domain.Row, []*domain.Cell, error)
	ListRows(ctx context.Context, tenantID, tableID string, page, size int) ([]*domain.Row, map[string][]*domain.Cell, int, error)
	// DeleteRow 级联删除子cells（单事务）；行不存在返回NotFound而不是静默成功
	DeleteRow(ctx context.Context, tenantID, rowID string) error
	CountRows(ctx context.Context, tenantID, tableID string) (int, error)
}

// --- Cells ---

type CellsRepository interface {
	GetCell(ctx context.Context, tenantID, cellID string) (*domain.Cell, error)
	UpdateCellValue(ctx context.Context, tenantID, cellID string, value domain.Value) error
	// UpsertCell 按(row, column)写入或覆盖（稀疏行补格用）
	UpsertCell(ctx context.Context, tenantID, tableID, rowID, columnID string, value domain.Value) (*domain.Cell, error)
	DeleteCell(ctx context.Context, tenantID, cellID string) error
	// CountCellsWithValue 唯一约束检查：统计同列（排除excludeRowID所在行）等值cell数
	// 等值按规范化文本比较
	CountCellsWithValue(ctx context.Context, tenantID, columnID, canonical, excludeRowID string) (int, error)
	// ListExistingValues 引用解析：候选值中有哪些存在于该列的cell值里（集合查询）
	ListExistingValues(ctx context.Context, tenantID, columnID string, candidates []string) (map[string]bool, error)
}

// --- Permissions ---

type PermissionsRepository interface {
	GetTablePermission(ctx context.Context, tenantID, tableID, userID string) (*domain.TablePermission, error)
	ListTablePermissions(ctx context.Context, tenantID, tableID string) ([]*domain.TablePermission, error)
	UpsertTablePermission(ctx context.Context, p *domain.TablePermission) error
	DeleteTablePermission(ctx context.Context, tenantID, tableID, userID string) error

	GetColumnPermission(ctx context.Context, tenantID, columnID string) (*domain.ColumnPermission, error)
	ListColumnPermissions(ctx context.Context, tenantID, tableID string) ([]*domain.ColumnPermission, error)
	UpsertColumnPermission(ctx context.Context, p *domain.ColumnPermission) error
}

// --- Tenants ---

type TenantsRepository interface {
	// CreateTenant 建租户并创建默认workspace（单事务）
	CreateTenant(ctx context.Context, tenant *domain.Tenant) (string, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetDefaultWorkspace(ctx context.Context, tenantID string) (*domain.Workspace, error)
	ListTenantUsers(ctx context.Context, tenantID string) ([]domain.TenantUser, error)
	UpsertTenantUser(ctx context.Context, user *domain.TenantUser) error
}
