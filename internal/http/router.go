package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSchemaRoutes 表/列定义管理路由
func (r *Router) RegisterSchemaRoutes(h *SchemaHandler) {
	r.Handle("/admin/api/v1/tables", h.Tables)
	r.Handle("/admin/api/v1/tables/", h.Tables)
	r.Handle("/admin/api/v1/columns/", h.Columns)
}

// RegisterPermissionRoutes 权限行管理路由
func (r *Router) RegisterPermissionRoutes(h *PermissionsHandler) {
	r.Handle("/admin/api/v1/permissions/tables", h.TablePermissions)
	r.Handle("/admin/api/v1/permissions/columns", h.ColumnPermissions)
}

// RegisterTenantRoutes 租户开通路由（平台级）
func (r *Router) RegisterTenantRoutes(h *TenantsHandler) {
	r.Handle("/admin/api/v1/tenants", h.ServeHTTP)
	r.Handle("/admin/api/v1/tenants/", h.ServeHTTP)
}

// RegisterGridRoutes 行/单元格数据面 + 导入导出路由
// /grid/api/v1/tables/{id}/rows 归行数据，其余 /grid/api/v1/tables/{id}/* 归导入导出
func (r *Router) RegisterGridRoutes(rows *RowsHandler, imports *ImportHandler) {
	r.Handle("/grid/api/v1/tables/", func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, "/rows") {
			rows.TableRows(w, req)
			return
		}
		imports.TableData(w, req)
	})
	r.Handle("/grid/api/v1/rows/", rows.Rows)
	r.Handle("/grid/api/v1/cells/", rows.Cells)
}

// RegisterWidgetRoutes 看板组件查询路由
func (r *Router) RegisterWidgetRoutes(h *WidgetsHandler) {
	r.Handle("/grid/api/v1/widgets/query", h.Query)
}

// RegisterOpsRoutes 运维路由（健康检查 + 指标）
func (r *Router) RegisterOpsRoutes(metricsHandler http.Handler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.HandleHandler("/metrics", metricsHandler)
	}
}
