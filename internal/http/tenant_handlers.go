package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// TenantsHandler 租户开通管理 Handler（平台级）
type TenantsHandler struct {
	tenants *service.TenantService
	logger  *zap.Logger
}

// NewTenantsHandler 创建租户管理 Handler
func NewTenantsHandler(tenants *service.TenantService, logger *zap.Logger) *TenantsHandler {
	return &TenantsHandler{
		tenants: tenants,
		logger:  logger,
	}
}

// ServeHTTP 分发 /admin/api/v1/tenants 下的请求
func (h *TenantsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/tenants")
	rest = strings.TrimPrefix(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.CreateTenant(w, r)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.GetTenant(w, r, rest)
	case strings.HasSuffix(rest, "/users") && r.Method == http.MethodPut:
		h.UpsertTenantUser(w, r, strings.TrimSuffix(rest, "/users"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// CreateTenant 开通租户（含默认workspace）
func (h *TenantsHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. 参数解析和验证
	var payload struct {
		TenantName string          `json:"tenantName"`
		Domain     string          `json:"domain"`
		Email      string          `json:"email"`
		Metadata   json.RawMessage `json:"metadata"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	resp, err := h.tenants.CreateTenant(ctx, service.CreateTenantRequest{
		TenantName: payload.TenantName,
		Domain:     payload.Domain,
		Email:      payload.Email,
		Metadata:   payload.Metadata,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusCreated, Ok(resp))
}

// GetTenant 查询租户详情（含默认workspace和花名册）
func (h *TenantsHandler) GetTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	ctx := r.Context()

	resp, err := h.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(resp))
}

// UpsertTenantUser 写入或覆盖花名册成员
func (h *TenantsHandler) UpsertTenantUser(w http.ResponseWriter, r *http.Request, tenantID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	if tenantID == "" || strings.Contains(tenantID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload struct {
		UserID   string `json:"userId"`
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Status   string `json:"status"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	resp, err := h.tenants.UpsertTenantUser(ctx, service.UpsertTenantUserRequest{
		TenantID: tenantID,
		UserID:   payload.UserID,
		Nickname: payload.Nickname,
		Email:    payload.Email,
		Role:     payload.Role,
		Status:   payload.Status,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}
