package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/metrics"
	"gridbase-engine/internal/models"
	"gridbase-engine/internal/planlimit"
	"gridbase-engine/internal/repository"
	"gridbase-engine/internal/store"

	"go.uber.org/zap"
)

// CatalogService 表结构目录服务
// 表/列的增删改都走这里；任何结构变更后按表tag失效列缓存
type CatalogService struct {
	tableRepo  repository.TablesRepository
	columnRepo repository.ColumnsRepository
	tenantRepo repository.TenantsRepository
	cache      *store.TagCache
	planLimit  planlimit.Checker
	metrics    *metrics.HTTPMetrics
	logger     *zap.Logger
}

// NewCatalogService 创建表结构目录服务
func NewCatalogService(
	tableRepo repository.TablesRepository,
	columnRepo repository.ColumnsRepository,
	tenantRepo repository.TenantsRepository,
	cache *store.TagCache,
	planLimit planlimit.Checker,
	m *metrics.HTTPMetrics,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		tableRepo:  tableRepo,
		columnRepo: columnRepo,
		tenantRepo: tenantRepo,
		cache:      cache,
		planLimit:  planLimit,
		metrics:    m,
		logger:     logger,
	}
}

func columnsCacheKey(tenantID, tableID string) string {
	return "schema:columns:" + tenantID + ":" + tableID
}

func tableTag(tableID string) string {
	return "table:" + tableID
}

// requireAdmin 结构变更只对ADMIN开放
func requireAdmin(principal domain.Principal) error {
	if !principal.Role.IsAdmin() {
		return domain.NewPermissionError("edit", "schema")
	}
	return nil
}

// CreateTableRequest 建表请求
type CreateTableRequest struct {
	Principal   domain.Principal
	TableName   string
	WorkspaceID string // 空则落到租户默认workspace
	IsPublic    bool
}

// CreateTableResponse 建表响应
type CreateTableResponse struct {
	TableID string `json:"id"`
}

// CreateTable 建表
// 同事务对租户全部成员fan-out表级权限行（全true），新成员后续由管理端单独授权
func (s *CatalogService) CreateTable(ctx context.Context, req CreateTableRequest) (*CreateTableResponse, error) {
	if err := requireAdmin(req.Principal); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TableName) == "" {
		return nil, domain.NewValidationError("name", "table name is required")
	}

	workspaceID := req.WorkspaceID
	if workspaceID == "" {
		ws, err := s.tenantRepo.GetDefaultWorkspace(ctx, req.Principal.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default workspace: %w", err)
		}
		workspaceID = ws.WorkspaceID
	}

	users, err := s.tenantRepo.ListTenantUsers(ctx, req.Principal.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant users: %w", err)
	}

	table := &domain.Table{
		WorkspaceID: workspaceID,
		TableName:   strings.TrimSpace(req.TableName),
		IsPublic:    req.IsPublic,
	}
	tableID, err := s.tableRepo.CreateTable(ctx, req.Principal.TenantID, table, users)
	if err != nil {
		return nil, err
	}

	s.logger.Info("table created",
		zap.String("table_id", tableID),
		zap.String("table_name", table.TableName),
		zap.Int("permission_fanout", len(users)),
	)
	return &CreateTableResponse{TableID: tableID}, nil
}

// GetTableRequest 表详情请求
type GetTableRequest struct {
	Principal domain.Principal
	TableID   string
}

// GetTableResponse 表详情响应（表+列定义）
type GetTableResponse struct {
	Table   map[string]any   `json:"table"`
	Columns []map[string]any `json:"columns"`
}

// GetTable 查询表详情及其列定义
func (s *CatalogService) GetTable(ctx context.Context, req GetTableRequest) (*GetTableResponse, error) {
	if req.TableID == "" {
		return nil, domain.NewValidationError("tableId", "table id is required")
	}

	table, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}

	columns, err := s.GetColumns(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(columns))
	for _, column := range columns {
		items = append(items, column.ToJSON())
	}
	return &GetTableResponse{Table: table.ToJSON(), Columns: items}, nil
}

// ListTablesRequest 表列表请求
type ListTablesRequest struct {
	Principal   domain.Principal
	WorkspaceID string
	Search      string
	Page        int
	Size        int
}

// ListTablesResponse 表列表响应
type ListTablesResponse struct {
	Items      []map[string]any  `json:"items"`
	Total      int               `json:"total"`
	Pagination models.Pagination `json:"pagination"`
}

// ListTables 查询表列表
func (s *CatalogService) ListTables(ctx context.Context, req ListTablesRequest) (*ListTablesResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = 50
	}

	filter := repository.TablesFilter{
		WorkspaceID: req.WorkspaceID,
		Search:      strings.TrimSpace(req.Search),
	}
	tables, total, err := s.tableRepo.ListTables(ctx, req.Principal.TenantID, filter, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	items := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		items = append(items, table.ToJSON())
	}
	return &ListTablesResponse{
		Items:      items,
		Total:      total,
		Pagination: models.NewPagination(req.Page, req.Size, total),
	}, nil
}

// UpdateTableRequest 表更新请求（改名/公开开关，nil字段不动）
type UpdateTableRequest struct {
	Principal domain.Principal
	TableID   string
	TableName *string
	IsPublic  *bool
}

// UpdateTable 改表名或切换公开状态
// 公开前先过套餐配额检查
func (s *CatalogService) UpdateTable(ctx context.Context, req UpdateTableRequest) error {
	if err := requireAdmin(req.Principal); err != nil {
		return err
	}
	if req.TableID == "" {
		return domain.NewValidationError("tableId", "table id is required")
	}

	table, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return err
	}

	if req.TableName != nil {
		if table.IsProtected {
			return domain.NewValidationError("tableId", "table is protected")
		}
		newName := strings.TrimSpace(*req.TableName)
		if newName == "" {
			return domain.NewValidationError("name", "table name is required")
		}
		if err := s.tableRepo.RenameTable(ctx, req.Principal.TenantID, req.TableID, newName); err != nil {
			return err
		}
	}

	if req.IsPublic != nil {
		if *req.IsPublic && !table.IsPublic {
			current, err := s.tableRepo.CountPublicTables(ctx, req.Principal.TenantID)
			if err != nil {
				return fmt.Errorf("failed to count public tables: %w", err)
			}
			decision, err := s.planLimit.CheckPublicTables(ctx, req.Principal.TenantID, current)
			if err != nil {
				return fmt.Errorf("failed to check plan limit: %w", err)
			}
			if !decision.Allowed {
				reason := decision.Reason
				if reason == "" {
					reason = fmt.Sprintf("public table limit reached (%d of %d)", decision.Current, decision.Limit)
				}
				return &domain.ConflictError{Column: "isPublic", Message: reason}
			}
		}
		if err := s.tableRepo.SetTablePublic(ctx, req.Principal.TenantID, req.TableID, *req.IsPublic); err != nil {
			return err
		}
	}

	s.invalidateTable(ctx, req.TableID)
	return nil
}

// DeleteTableRequest 删表请求
type DeleteTableRequest struct {
	Principal domain.Principal
	TableID   string
}

// DeleteTable 删表（级联列/行/cells/权限行）
func (s *CatalogService) DeleteTable(ctx context.Context, req DeleteTableRequest) error {
	if err := requireAdmin(req.Principal); err != nil {
		return err
	}
	if req.TableID == "" {
		return domain.NewValidationError("tableId", "table id is required")
	}

	table, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, req.TableID)
	if err != nil {
		return err
	}
	if table.IsProtected {
		return domain.NewValidationError("tableId", "table is protected")
	}

	if err := s.tableRepo.DeleteTable(ctx, req.Principal.TenantID, req.TableID); err != nil {
		return err
	}

	s.invalidateTable(ctx, req.TableID)
	s.logger.Info("table deleted", zap.String("table_id", req.TableID))
	return nil
}

// CreateColumnRequest 建列请求
type CreateColumnRequest struct {
	Principal        domain.Principal
	TableID          string
	ColumnName       string
	ColumnType       string
	Required         bool
	Primary          bool
	Unique           bool
	AutoIncrement    bool
	Position         int
	ReferenceTableID string
	CustomOptions    []string
	SemanticType     string
}

// CreateColumnResponse 建列响应
type CreateColumnResponse struct {
	ColumnID string `json:"id"`
}

// CreateColumn 建列
// semanticType="currency"在建列时直接展开成customArray+货币码表；主键列每表至多一个
func (s *CatalogService) CreateColumn(ctx context.Context, req CreateColumnRequest) (*CreateColumnResponse, error) {
	if err := requireAdmin(req.Principal); err != nil {
		return nil, err
	}
	if req.TableID == "" {
		return nil, domain.NewValidationError("tableId", "table id is required")
	}
	if strings.TrimSpace(req.ColumnName) == "" {
		return nil, domain.NewValidationError("name", "column name is required")
	}
	columnType := domain.ColumnType(req.ColumnType)
	if !columnType.IsValid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown column type: %s", req.ColumnType))
	}

	if _, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, req.TableID); err != nil {
		return nil, err
	}

	if req.Primary {
		if err := s.ensureNoPrimary(ctx, req.Principal.TenantID, req.TableID, ""); err != nil {
			return nil, err
		}
	}

	column := &domain.Column{
		TableID:          req.TableID,
		ColumnName:       strings.TrimSpace(req.ColumnName),
		ColumnType:       string(columnType),
		Required:         req.Required,
		Primary:          req.Primary,
		Unique:           req.Unique,
		AutoIncrement:    req.AutoIncrement,
		Position:         req.Position,
		ReferenceTableID: req.ReferenceTableID,
		CustomOptions:    req.CustomOptions,
		SemanticType:     req.SemanticType,
	}

	// currency是复合语义：类型和选项表一起定下来，不留中间态
	if req.SemanticType == "currency" {
		column.ColumnType = string(domain.ColumnTypeCustomArray)
		column.CustomOptions = append([]string{}, domain.CurrencyCodes...)
	} else if columnType == domain.ColumnTypeCustomArray && column.CustomOptions == nil {
		column.CustomOptions = []string{}
	}

	columnID, err := s.columnRepo.CreateColumn(ctx, req.Principal.TenantID, column)
	if err != nil {
		return nil, err
	}

	s.invalidateTable(ctx, req.TableID)
	s.logger.Info("column created",
		zap.String("column_id", columnID),
		zap.String("table_id", req.TableID),
		zap.String("column_type", column.ColumnType),
	)
	return &CreateColumnResponse{ColumnID: columnID}, nil
}

// UpdateColumnRequest 列更新请求（nil字段不动）
type UpdateColumnRequest struct {
	Principal        domain.Principal
	ColumnID         string
	ColumnName       *string
	ColumnType       *string
	Required         *bool
	Primary          *bool
	Unique           *bool
	AutoIncrement    *bool
	Position         *int
	ReferenceTableID *string
	CustomOptions    []string
	SemanticType     *string
}

// UpdateColumn 改列定义（改名/换类型/排序/语义类型）
// 换成customArray时保证customOptions非null；semanticType="currency"走单条复合UPDATE
func (s *CatalogService) UpdateColumn(ctx context.Context, req UpdateColumnRequest) error {
	if err := requireAdmin(req.Principal); err != nil {
		return err
	}
	if req.ColumnID == "" {
		return domain.NewValidationError("columnId", "column id is required")
	}

	column, err := s.columnRepo.GetColumn(ctx, req.Principal.TenantID, req.ColumnID)
	if err != nil {
		return err
	}

	update := repository.ColumnUpdate{
		Required:         req.Required,
		Unique:           req.Unique,
		AutoIncrement:    req.AutoIncrement,
		Position:         req.Position,
		ReferenceTableID: req.ReferenceTableID,
		CustomOptions:    req.CustomOptions,
	}

	if req.ColumnName != nil {
		newName := strings.TrimSpace(*req.ColumnName)
		if newName == "" {
			return domain.NewValidationError("name", "column name is required")
		}
		update.ColumnName = &newName
	}

	if req.ColumnType != nil {
		columnType := domain.ColumnType(*req.ColumnType)
		if !columnType.IsValid() {
			return domain.NewValidationError("type", fmt.Sprintf("unknown column type: %s", *req.ColumnType))
		}
		table, err := s.tableRepo.GetTable(ctx, req.Principal.TenantID, column.TableID)
		if err != nil {
			return err
		}
		if table.IsProtected {
			return domain.NewValidationError("columnId", "table is protected")
		}
		update.ColumnType = req.ColumnType
		// 换成customArray必须带上非null的选项表；已有值不回头重校验
		if columnType == domain.ColumnTypeCustomArray && update.CustomOptions == nil && column.CustomOptions == nil {
			update.CustomOptions = []string{}
		}
	}

	if req.Primary != nil {
		if *req.Primary && !column.Primary {
			if err := s.ensureNoPrimary(ctx, req.Principal.TenantID, column.TableID, column.ColumnID); err != nil {
				return err
			}
		}
		update.Primary = req.Primary
	}

	currency := req.SemanticType != nil && *req.SemanticType == "currency"
	if req.SemanticType != nil && !currency {
		update.SemanticType = req.SemanticType
	}

	if update.ColumnName != nil || update.ColumnType != nil || update.Required != nil ||
		update.Unique != nil || update.Primary != nil || update.AutoIncrement != nil ||
		update.Position != nil || update.ReferenceTableID != nil || update.CustomOptions != nil ||
		update.SemanticType != nil {
		if err := s.columnRepo.UpdateColumn(ctx, req.Principal.TenantID, req.ColumnID, update); err != nil {
			return err
		}
	}

	if currency {
		if err := s.columnRepo.ApplyCurrencyType(ctx, req.Principal.TenantID, req.ColumnID, domain.CurrencyCodes); err != nil {
			return err
		}
	}

	s.invalidateTable(ctx, column.TableID)
	return nil
}

// DeleteColumnRequest 删列请求
type DeleteColumnRequest struct {
	Principal domain.Principal
	ColumnID  string
}

// DeleteColumn 删列（级联该列全部cells）
func (s *CatalogService) DeleteColumn(ctx context.Context, req DeleteColumnRequest) error {
	if err := requireAdmin(req.Principal); err != nil {
		return err
	}
	if req.ColumnID == "" {
		return domain.NewValidationError("columnId", "column id is required")
	}

	column, err := s.columnRepo.GetColumn(ctx, req.Principal.TenantID, req.ColumnID)
	if err != nil {
		return err
	}

	if err := s.columnRepo.DeleteColumn(ctx, req.Principal.TenantID, req.ColumnID); err != nil {
		return err
	}

	s.invalidateTable(ctx, column.TableID)
	s.logger.Info("column deleted",
		zap.String("column_id", req.ColumnID),
		zap.String("table_id", column.TableID),
	)
	return nil
}

// GetColumns 取表的列定义（带tag缓存）
// 行写入每次都要全量列定义，这是最热的读路径
func (s *CatalogService) GetColumns(ctx context.Context, tenantID, tableID string) ([]*domain.Column, error) {
	key := columnsCacheKey(tenantID, tableID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var columns []*domain.Column
			if err := json.Unmarshal([]byte(raw), &columns); err == nil {
				s.metrics.SchemaCacheLookup("hit")
				return columns, nil
			}
		}
		s.metrics.SchemaCacheLookup("miss")
	}

	columns, err := s.columnRepo.ListColumns(ctx, tenantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(columns); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), tableTag(tableID)); err != nil {
				s.logger.Warn("failed to cache columns", zap.String("table_id", tableID), zap.Error(err))
			}
		}
	}
	return columns, nil
}

// ensureNoPrimary 保证表内没有其他主键列
func (s *CatalogService) ensureNoPrimary(ctx context.Context, tenantID, tableID, excludeColumnID string) error {
	columns, err := s.columnRepo.ListColumns(ctx, tenantID, tableID)
	if err != nil {
		return fmt.Errorf("failed to list columns: %w", err)
	}
	for _, column := range columns {
		if column.Primary && column.ColumnID != excludeColumnID {
			return domain.NewConflictError("primary", column.ColumnName)
		}
	}
	return nil
}

// invalidateTable 结构变更后按表tag失效缓存
func (s *CatalogService) invalidateTable(ctx context.Context, tableID string) {
	if s.cache != nil {
		s.cache.InvalidateByTags(ctx, tableTag(tableID))
	}
}
