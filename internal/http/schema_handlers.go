package httpapi

import (
	"net/http"
	"strings"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// SchemaHandler 表/列定义管理 Handler
type SchemaHandler struct {
	catalog *service.CatalogService
	logger  *zap.Logger
}

// NewSchemaHandler 创建表/列定义管理 Handler
func NewSchemaHandler(catalog *service.CatalogService, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// Tables 分发 /admin/api/v1/tables 下的请求
func (h *SchemaHandler) Tables(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/tables")
	rest = strings.TrimPrefix(rest, "/")

	// 路由分发
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.ListTables(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.CreateTable(w, r)
	case strings.HasSuffix(rest, "/columns") && r.Method == http.MethodPost:
		h.CreateColumn(w, r, strings.TrimSuffix(rest, "/columns"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.GetTable(w, r, rest)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodPatch:
		h.UpdateTable(w, r, rest)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodDelete:
		h.DeleteTable(w, r, rest)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Columns 分发 /admin/api/v1/columns/{id} 的请求
func (h *SchemaHandler) Columns(w http.ResponseWriter, r *http.Request) {
	columnID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/columns/")
	if columnID == "" || strings.Contains(columnID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		h.UpdateColumn(w, r, columnID)
	case http.MethodDelete:
		h.DeleteColumn(w, r, columnID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListTables 查询表列表
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	req := service.ListTablesRequest{
		Principal:   principal,
		WorkspaceID: r.URL.Query().Get("workspace_id"),
		Search:      r.URL.Query().Get("search"),
		Page:        parseInt(r.URL.Query().Get("page"), 1),
		Size:        parseInt(r.URL.Query().Get("size"), 50),
	}

	// 2. 调用 Service
	resp, err := h.catalog.ListTables(ctx, req)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CreateTable 创建表
func (h *SchemaHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		TableName   string `json:"tableName"`
		WorkspaceID string `json:"workspaceId"`
		IsPublic    bool   `json:"isPublic"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	req := service.CreateTableRequest{
		Principal:   principal,
		TableName:   payload.TableName,
		WorkspaceID: payload.WorkspaceID,
		IsPublic:    payload.IsPublic,
	}

	resp, err := h.catalog.CreateTable(ctx, req)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusCreated, Ok(resp))
}

// GetTable 查询表详情（含列定义）
func (h *SchemaHandler) GetTable(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	resp, err := h.catalog.GetTable(ctx, service.GetTableRequest{
		Principal: principal,
		TableID:   tableID,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(resp))
}

// UpdateTable 改表名或切换公开状态
func (h *SchemaHandler) UpdateTable(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		TableName *string `json:"tableName"`
		IsPublic  *bool   `json:"isPublic"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	err := h.catalog.UpdateTable(ctx, service.UpdateTableRequest{
		Principal: principal,
		TableID:   tableID,
		TableName: payload.TableName,
		IsPublic:  payload.IsPublic,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// DeleteTable 删除表
func (h *SchemaHandler) DeleteTable(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	err := h.catalog.DeleteTable(ctx, service.DeleteTableRequest{
		Principal: principal,
		TableID:   tableID,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// CreateColumn 创建列
func (h *SchemaHandler) CreateColumn(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}
	if tableID == "" || strings.Contains(tableID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload struct {
		ColumnName       string   `json:"columnName"`
		ColumnType       string   `json:"columnType"`
		Required         bool     `json:"required"`
		Primary          bool     `json:"primary"`
		Unique           bool     `json:"unique"`
		AutoIncrement    bool     `json:"autoIncrement"`
		Position         int      `json:"position"`
		ReferenceTableID string   `json:"referenceTableId"`
		CustomOptions    []string `json:"customOptions"`
		SemanticType     string   `json:"semanticType"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	req := service.CreateColumnRequest{
		Principal:        principal,
		TableID:          tableID,
		ColumnName:       payload.ColumnName,
		ColumnType:       payload.ColumnType,
		Required:         payload.Required,
		Primary:          payload.Primary,
		Unique:           payload.Unique,
		AutoIncrement:    payload.AutoIncrement,
		Position:         payload.Position,
		ReferenceTableID: payload.ReferenceTableID,
		CustomOptions:    payload.CustomOptions,
		SemanticType:     payload.SemanticType,
	}

	resp, err := h.catalog.CreateColumn(ctx, req)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusCreated, Ok(resp))
}

// UpdateColumn 更新列定义
func (h *SchemaHandler) UpdateColumn(w http.ResponseWriter, r *http.Request, columnID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		ColumnName       *string  `json:"columnName"`
		ColumnType       *string  `json:"columnType"`
		Required         *bool    `json:"required"`
		Primary          *bool    `json:"primary"`
		Unique           *bool    `json:"unique"`
		AutoIncrement    *bool    `json:"autoIncrement"`
		Position         *int     `json:"position"`
		ReferenceTableID *string  `json:"referenceTableId"`
		CustomOptions    []string `json:"customOptions"`
		SemanticType     *string  `json:"semanticType"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	err := h.catalog.UpdateColumn(ctx, service.UpdateColumnRequest{
		Principal:        principal,
		ColumnID:         columnID,
		ColumnName:       payload.ColumnName,
		ColumnType:       payload.ColumnType,
		Required:         payload.Required,
		Primary:          payload.Primary,
		Unique:           payload.Unique,
		AutoIncrement:    payload.AutoIncrement,
		Position:         payload.Position,
		ReferenceTableID: payload.ReferenceTableID,
		CustomOptions:    payload.CustomOptions,
		SemanticType:     payload.SemanticType,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// DeleteColumn 删除列
func (h *SchemaHandler) DeleteColumn(w http.ResponseWriter, r *http.Request, columnID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	err := h.catalog.DeleteColumn(ctx, service.DeleteColumnRequest{
		Principal: principal,
		ColumnID:  columnID,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}
