package service

import (
	"context"
	"fmt"
	"time"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/metrics"
	"gridbase-engine/internal/models"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// CellService 行/单元格写入服务
// 每次写入都走完整的三段检查：类型校验 → 引用解析 → 唯一约束；
// 一行的cells要么全部通过一起落库，要么一个不写。
type CellService struct {
	tableRepo repository.TablesRepository
	rowRepo   repository.RowsRepository
	cellRepo  repository.CellsRepository
	catalog   *CatalogService
	perms     *PermissionService
	resolver  *ReferenceResolver
	metrics   *metrics.HTTPMetrics
	logger    *zap.Logger
}

// NewCellService 创建行/单元格服务
func NewCellService(
	tableRepo repository.TablesRepository,
	rowRepo repository.RowsRepository,
	cellRepo repository.CellsRepository,
	catalog *CatalogService,
	perms *PermissionService,
	resolver *ReferenceResolver,
	m *metrics.HTTPMetrics,
	logger *zap.Logger,
) *CellService {
	return &CellService{
		tableRepo: tableRepo,
		rowRepo:   rowRepo,
		cellRepo:  cellRepo,
		catalog:   catalog,
		perms:     perms,
		resolver:  resolver,
		metrics:   m,
		logger:    logger,
	}
}

// CellInput 候选单元格（columnId + 原始值）
type CellInput struct {
	ColumnID string `json:"columnId"`
	Value    any    `json:"value"`
}

// ColumnBrief cell响应里内嵌的列摘要
type ColumnBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CellPayload 单元格写入响应
type CellPayload struct {
	ID       string      `json:"id"`
	Value    any         `json:"value"`
	RowID    string      `json:"rowId"`
	ColumnID string      `json:"columnId"`
	Column   ColumnBrief `json:"column"`
}

// CreateRowRequest 建行请求
type CreateRowRequest struct {
	Principal domain.Principal
	TableID   string
	Cells     []CellInput
}

// CreateRowResponse 建行响应
type CreateRowResponse struct {
	RowID string `json:"id"`
}

// CreateRow 建行及其cells
// 全部候选值先过三段检查再落库；autoIncrement列没给值时在事务内按max+1补值
func (s *CellService) CreateRow(ctx context.Context, req CreateRowRequest) (*CreateRowResponse, error) {
	if req.TableID == "" {
		return nil, domain.NewValidationError("tableId", "table id is required")
	}
	if err := s.perms.Require(ctx, req.Principal, req.TableID, "", domain.ActionCreate); err != nil {
		return nil, err
	}
	if _, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, req.TableID); err != nil {
		return nil, err
	}

	columns, err := s.catalog.GetColumns(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Column, len(columns))
	for _, column := range columns {
		byID[column.ColumnID] = column
	}

	seen := map[string]bool{}
	supplied := map[string]bool{}
	cells := make([]*domain.Cell, 0, len(req.Cells))
	for _, input := range req.Cells {
		column, ok := byID[input.ColumnID]
		if !ok {
			return nil, domain.NewValidationError("columnId", fmt.Sprintf("unknown column: %s", input.ColumnID))
		}
		if seen[input.ColumnID] {
			return nil, domain.NewValidationError(column.ColumnName, "duplicate cell for column")
		}
		seen[input.ColumnID] = true

		value, err := s.checkValue(ctx, req.Principal.TenantID, column, input.Value, "")
		if err != nil {
			return nil, err
		}
		if value.IsEmpty() {
			continue
		}
		supplied[input.ColumnID] = true
		cells = append(cells, &domain.Cell{ColumnID: input.ColumnID, Value: value})
	}

	autoNumber := []string{}
	for _, column := range columns {
		if column.AutoIncrement && !supplied[column.ColumnID] {
			autoNumber = append(autoNumber, column.ColumnID)
		}
	}

	rowID, err := s.rowRepo.CreateRow(ctx, req.Principal.TenantID, req.TableID, cells, autoNumber)
	if err != nil {
		return nil, err
	}

	s.metrics.RowsCreated(1)
	s.logger.Info("row created",
		zap.String("row_id", rowID),
		zap.String("table_id", req.TableID),
		zap.Int("cell_count", len(cells)),
	)
	return &CreateRowResponse{RowID: rowID}, nil
}

// ListRowsRequest 行列表请求
type ListRowsRequest struct {
	Principal domain.Principal
	TableID   string
	Page      int
	Size      int
}

// RowItem 行列表项（cells是列集合的稀疏子集）
type RowItem struct {
	ID        string           `json:"id"`
	CreatedAt string           `json:"createdAt"`
	Cells     []map[string]any `json:"cells"`
}

// ListRowsResponse 行列表响应
type ListRowsResponse struct {
	Items      []RowItem         `json:"items"`
	Total      int               `json:"total"`
	Pagination models.Pagination `json:"pagination"`
}

// ListRows 查询行（带分页），列级canRead=false的cell被过滤掉
func (s *CellService) ListRows(ctx context.Context, req ListRowsRequest) (*ListRowsResponse, error) {
	if req.TableID == "" {
		return nil, domain.NewValidationError("tableId", "table id is required")
	}
	if err := s.perms.Require(ctx, req.Principal, req.TableID, "", domain.ActionRead); err != nil {
		return nil, err
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = 50
	}

	columns, err := s.catalog.GetColumns(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}
	readable := make(map[string]bool, len(columns))
	for _, column := range columns {
		allowed, err := s.perms.Evaluate(ctx, req.Principal, req.TableID, column.ColumnID, domain.ActionRead)
		if err != nil {
			return nil, err
		}
		readable[column.ColumnID] = allowed
	}

	rows, cellsByRow, total, err := s.rowRepo.ListRows(ctx, req.Principal.TenantID, req.TableID, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}

	items := make([]RowItem, 0, len(rows))
	for _, row := range rows {
		item := RowItem{
			ID:        row.RowID,
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
			Cells:     []map[string]any{},
		}
		for _, cell := range cellsByRow[row.RowID] {
			if !readable[cell.ColumnID] {
				continue
			}
			item.Cells = append(item.Cells, cell.ToJSON())
		}
		items = append(items, item)
	}
	return &ListRowsResponse{
		Items:      items,
		Total:      total,
		Pagination: models.NewPagination(req.Page, req.Size, total),
	}, nil
}

// UpdateCellRequest 改单元格请求
type UpdateCellRequest struct {
	Principal domain.Principal
	CellID    string
	Value     any
}

// UpdateCell 改单元格的值
// 即使cell已存在也重新解析列定义并重跑三段检查：规则在每次写入时生效
func (s *CellService) UpdateCell(ctx context.Context, req UpdateCellRequest) (*CellPayload, error) {
	if req.CellID == "" {
		return nil, domain.NewValidationError("cellId", "cell id is required")
	}

	cell, err := s.cellRepo.GetCell(ctx, req.Principal.TenantID, req.CellID)
	if err != nil {
		return nil, err
	}
	column, err := s.findColumn(ctx, req.Principal.TenantID, cell.TableID, cell.ColumnID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, req.Principal, cell.TableID, cell.ColumnID, domain.ActionEdit); err != nil {
		return nil, err
	}

	value, err := s.checkValue(ctx, req.Principal.TenantID, column, req.Value, cell.RowID)
	if err != nil {
		return nil, err
	}

	if err := s.cellRepo.UpdateCellValue(ctx, req.Principal.TenantID, req.CellID, value); err != nil {
		return nil, err
	}

	s.metrics.CellUpdated()
	return &CellPayload{
		ID:       cell.CellID,
		Value:    value.AsAny(),
		RowID:    cell.RowID,
		ColumnID: cell.ColumnID,
		Column: ColumnBrief{
			ID:   column.ColumnID,
			Name: column.ColumnName,
			Type: column.ColumnType,
		},
	}, nil
}

// SetCellRequest 按(row, column)写值请求（稀疏行补格）
type SetCellRequest struct {
	Principal domain.Principal
	RowID     string
	ColumnID  string
	Value     any
}

// SetCell 给某行某列写值
// 该行还没这一格时建格，有格时覆盖；检查和UpdateCell完全一致
func (s *CellService) SetCell(ctx context.Context, req SetCellRequest) (*CellPayload, error) {
	if req.RowID == "" || req.ColumnID == "" {
		return nil, domain.NewValidationError("rowId", "row id and column id are required")
	}

	row, _, err := s.rowRepo.GetRow(ctx, req.Principal.TenantID, req.RowID)
	if err != nil {
		return nil, err
	}
	column, err := s.findColumn(ctx, req.Principal.TenantID, row.TableID, req.ColumnID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, req.Principal, row.TableID, req.ColumnID, domain.ActionEdit); err != nil {
		return nil, err
	}

	value, err := s.checkValue(ctx, req.Principal.TenantID, column, req.Value, req.RowID)
	if err != nil {
		return nil, err
	}

	cell, err := s.cellRepo.UpsertCell(ctx, req.Principal.TenantID, row.TableID, req.RowID, req.ColumnID, value)
	if err != nil {
		return nil, err
	}

	s.metrics.CellUpdated()
	return &CellPayload{
		ID:       cell.CellID,
		Value:    value.AsAny(),
		RowID:    cell.RowID,
		ColumnID: cell.ColumnID,
		Column: ColumnBrief{
			ID:   column.ColumnID,
			Name: column.ColumnName,
			Type: column.ColumnType,
		},
	}, nil
}

// DeleteRowRequest 删行请求
type DeleteRowRequest struct {
	Principal domain.Principal
	RowID     string
}

// DeleteRow 删行（级联cells）
// 行不存在返回NotFound而不是静默成功
func (s *CellService) DeleteRow(ctx context.Context, req DeleteRowRequest) error {
	if req.RowID == "" {
		return domain.NewValidationError("rowId", "row id is required")
	}

	row, _, err := s.rowRepo.GetRow(ctx, req.Principal.TenantID, req.RowID)
	if err != nil {
		return err
	}
	if err := s.perms.Require(ctx, req.Principal, row.TableID, "", domain.ActionDelete); err != nil {
		return err
	}

	return s.rowRepo.DeleteRow(ctx, req.Principal.TenantID, req.RowID)
}

// DeleteCellRequest 删单元格请求
type DeleteCellRequest struct {
	Principal domain.Principal
	CellID    string
}

// DeleteCell 删单元格（清空该行该列的值）
func (s *CellService) DeleteCell(ctx context.Context, req DeleteCellRequest) error {
	if req.CellID == "" {
		return domain.NewValidationError("cellId", "cell id is required")
	}

	cell, err := s.cellRepo.GetCell(ctx, req.Principal.TenantID, req.CellID)
	if err != nil {
		return err
	}
	if err := s.perms.Require(ctx, req.Principal, cell.TableID, cell.ColumnID, domain.ActionEdit); err != nil {
		return err
	}

	return s.cellRepo.DeleteCell(ctx, req.Principal.TenantID, req.CellID)
}

// checkValue 写入前的三段检查：类型 → 引用 → 唯一
// 返回归一化后的值；空值直接放行（返回Null）
func (s *CellService) checkValue(ctx context.Context, tenantID string, column *domain.Column, raw any, excludeRowID string) (domain.Value, error) {
	if !ValidateValue(raw, column.Type(), column.CustomOptions) {
		return domain.Value{}, domain.NewValidationError(column.ColumnName,
			fmt.Sprintf("invalid value for %s column", column.ColumnType))
	}
	value := CoerceValue(raw, column.Type())
	if value.IsEmpty() {
		return domain.NullValue(), nil
	}

	if column.Type() == domain.ColumnTypeReference {
		resolution, err := s.resolver.ResolveReferences(ctx, tenantID, column, value.Arr)
		if err != nil {
			return domain.Value{}, err
		}
		if !resolution.Resolved() {
			return domain.Value{}, domain.NewReferenceError(column.ColumnName, resolution.Invalid)
		}
	}

	if column.Unique {
		count, err := s.cellRepo.CountCellsWithValue(ctx, tenantID, column.ColumnID, value.Canonical(), excludeRowID)
		if err != nil {
			return domain.Value{}, fmt.Errorf("failed to check uniqueness: %w", err)
		}
		if count > 0 {
			return domain.Value{}, domain.NewConflictError(column.ColumnName, value.Canonical())
		}
	}

	return value, nil
}

// findColumn 在表的列定义里找某一列（走缓存的列集合）
func (s *CellService) findColumn(ctx context.Context, tenantID, tableID, columnID string) (*domain.Column, error) {
	columns, err := s.catalog.GetColumns(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	for _, column := range columns {
		if column.ColumnID == columnID {
			return column, nil
		}
	}
	return nil, domain.NewNotFoundError("column", columnID)
}
