package httpapi

import (
	"net/http"
	"strings"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// RowsHandler 行/单元格数据面 Handler
type RowsHandler struct {
	cells  *service.CellService
	logger *zap.Logger
}

// NewRowsHandler 创建行/单元格 Handler
func NewRowsHandler(cells *service.CellService, logger *zap.Logger) *RowsHandler {
	return &RowsHandler{
		cells:  cells,
		logger: logger,
	}
}

// TableRows 分发 /grid/api/v1/tables/{id}/rows 的请求
func (h *RowsHandler) TableRows(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/grid/api/v1/tables/")
	tableID := strings.TrimSuffix(rest, "/rows")
	if tableID == "" || tableID == rest || strings.Contains(tableID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.ListRows(w, r, tableID)
	case http.MethodPost:
		h.CreateRow(w, r, tableID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Rows 分发 /grid/api/v1/rows/{id} 和 /grid/api/v1/rows/{rowId}/cells/{columnId} 的请求
func (h *RowsHandler) Rows(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/grid/api/v1/rows/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodDelete:
		h.DeleteRow(w, r, parts[0])
	case len(parts) == 3 && parts[0] != "" && parts[1] == "cells" && parts[2] != "" && r.Method == http.MethodPut:
		h.SetCell(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Cells 分发 /grid/api/v1/cells/{id} 的请求
func (h *RowsHandler) Cells(w http.ResponseWriter, r *http.Request) {
	cellID := strings.TrimPrefix(r.URL.Path, "/grid/api/v1/cells/")
	if cellID == "" || strings.Contains(cellID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		h.UpdateCell(w, r, cellID)
	case http.MethodDelete:
		h.DeleteCell(w, r, cellID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListRows 分页查询行（含按列过滤后的cells）
func (h *RowsHandler) ListRows(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	req := service.ListRowsRequest{
		Principal: principal,
		TableID:   tableID,
		Page:      parseInt(r.URL.Query().Get("page"), 1),
		Size:      parseInt(r.URL.Query().Get("size"), 50),
	}

	// 2. 调用 Service
	resp, err := h.cells.ListRows(ctx, req)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CreateRow 创建行（带cells，全量校验通过才落库）
func (h *RowsHandler) CreateRow(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		Cells []service.CellInput `json:"cells"`
	}
	if err := readBodyJSON(r, 4<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	resp, err := h.cells.CreateRow(ctx, service.CreateRowRequest{
		Principal: principal,
		TableID:   tableID,
		Cells:     payload.Cells,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusCreated, Ok(resp))
}

// UpdateCell 更新单元格的值
func (h *RowsHandler) UpdateCell(w http.ResponseWriter, r *http.Request, cellID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		Value any `json:"value"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	resp, err := h.cells.UpdateCell(ctx, service.UpdateCellRequest{
		Principal: principal,
		CellID:    cellID,
		Value:     payload.Value,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}

// SetCell 给某行某列写值（补格或覆盖）
func (h *RowsHandler) SetCell(w http.ResponseWriter, r *http.Request, rowID, columnID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		Value any `json:"value"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	resp, err := h.cells.SetCell(ctx, service.SetCellRequest{
		Principal: principal,
		RowID:     rowID,
		ColumnID:  columnID,
		Value:     payload.Value,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}

// DeleteRow 删除行
func (h *RowsHandler) DeleteRow(w http.ResponseWriter, r *http.Request, rowID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	err := h.cells.DeleteRow(ctx, service.DeleteRowRequest{
		Principal: principal,
		RowID:     rowID,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// DeleteCell 删除单元格
func (h *RowsHandler) DeleteCell(w http.ResponseWriter, r *http.Request, cellID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	err := h.cells.DeleteCell(ctx, service.DeleteCellRequest{
		Principal: principal,
		CellID:    cellID,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}
