package httpapi

import (
	"net/http"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// PermissionsHandler 权限行管理 Handler（仅admin走到的管理面）
type PermissionsHandler struct {
	perms  *service.PermissionService
	logger *zap.Logger
}

// NewPermissionsHandler 创建权限行管理 Handler
func NewPermissionsHandler(perms *service.PermissionService, logger *zap.Logger) *PermissionsHandler {
	return &PermissionsHandler{
		perms:  perms,
		logger: logger,
	}
}

// TablePermissions 分发 /admin/api/v1/permissions/tables 的请求
func (h *PermissionsHandler) TablePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListTablePermissions(w, r)
	case http.MethodPut:
		h.UpsertTablePermission(w, r)
	case http.MethodDelete:
		h.DeleteTablePermission(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ColumnPermissions 分发 /admin/api/v1/permissions/columns 的请求
func (h *PermissionsHandler) ColumnPermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListColumnPermissions(w, r)
	case http.MethodPut:
		h.UpsertColumnPermission(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListTablePermissions 查询表级权限行
func (h *PermissionsHandler) ListTablePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("table_id is required"))
		return
	}

	// 2. 调用 Service
	resp, err := h.perms.ListTablePermissions(ctx, principal, principal.TenantID, tableID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": resp}))
}

// UpsertTablePermission 写入或覆盖表级权限行
func (h *PermissionsHandler) UpsertTablePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		TableID   string `json:"tableId"`
		UserID    string `json:"userId"`
		CanRead   bool   `json:"canRead"`
		CanEdit   bool   `json:"canEdit"`
		CanDelete bool   `json:"canDelete"`
		CanCreate bool   `json:"canCreate"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if payload.TableID == "" || payload.UserID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("tableId and userId are required"))
		return
	}

	// 2. 调用 Service
	resp, err := h.perms.UpsertTablePermission(ctx, principal, &service.UpsertTablePermissionRequest{
		TenantID:  principal.TenantID,
		TableID:   payload.TableID,
		UserID:    payload.UserID,
		CanRead:   payload.CanRead,
		CanEdit:   payload.CanEdit,
		CanDelete: payload.CanDelete,
		CanCreate: payload.CanCreate,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}

// DeleteTablePermission 删除表级权限行
func (h *PermissionsHandler) DeleteTablePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	tableID := r.URL.Query().Get("table_id")
	userID := r.URL.Query().Get("user_id")
	if tableID == "" || userID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("table_id and user_id are required"))
		return
	}

	// 2. 调用 Service
	err := h.perms.DeleteTablePermission(ctx, principal, principal.TenantID, tableID, userID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// ListColumnPermissions 查询表下全部列级权限行
func (h *PermissionsHandler) ListColumnPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("table_id is required"))
		return
	}

	// 2. 调用 Service
	resp, err := h.perms.ListColumnPermissions(ctx, principal, principal.TenantID, tableID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": resp}))
}

// UpsertColumnPermission 写入或覆盖列级权限行
func (h *PermissionsHandler) UpsertColumnPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		TableID  string `json:"tableId"`
		ColumnID string `json:"columnId"`
		CanRead  bool   `json:"canRead"`
		CanEdit  bool   `json:"canEdit"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if payload.TableID == "" || payload.ColumnID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("tableId and columnId are required"))
		return
	}

	// 2. 调用 Service
	resp, err := h.perms.UpsertColumnPermission(ctx, principal, &service.UpsertColumnPermissionRequest{
		TenantID: principal.TenantID,
		TableID:  payload.TableID,
		ColumnID: payload.ColumnID,
		CanRead:  payload.CanRead,
		CanEdit:  payload.CanEdit,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}
