package httpapi

import (
	"net/http"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// WidgetsHandler 看板组件查询 Handler
type WidgetsHandler struct {
	widgets *service.WidgetService
	logger  *zap.Logger
}

// NewWidgetsHandler 创建看板组件 Handler
func NewWidgetsHandler(widgets *service.WidgetService, logger *zap.Logger) *WidgetsHandler {
	return &WidgetsHandler{
		widgets: widgets,
		logger:  logger,
	}
}

// Query 处理 POST /grid/api/v1/widgets/query
func (h *WidgetsHandler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		TableID    string                   `json:"tableId"`
		WidgetType string                   `json:"widgetType"`
		DataSource service.WidgetDataSource `json:"dataSource"`
		Filters    []service.WidgetFilter   `json:"filters"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if payload.TableID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("tableId is required"))
		return
	}

	// 2. 调用 Service
	resp, err := h.widgets.Query(ctx, principal, &service.WidgetQueryRequest{
		TenantID:   principal.TenantID,
		TableID:    payload.TableID,
		WidgetType: payload.WidgetType,
		DataSource: payload.DataSource,
		Filters:    payload.Filters,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeJSON(w, http.StatusOK, Ok(resp))
}
