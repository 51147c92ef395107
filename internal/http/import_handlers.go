package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"gridbase-engine/internal/service"

	"go.uber.org/zap"
)

// ImportHandler 批量导入/导出 Handler
type ImportHandler struct {
	imports *service.ImportService
	catalog *service.CatalogService
	cells   *service.CellService
	logger  *zap.Logger
}

// NewImportHandler 创建批量导入/导出 Handler
func NewImportHandler(imports *service.ImportService, catalog *service.CatalogService, cells *service.CellService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		imports: imports,
		catalog: catalog,
		cells:   cells,
		logger:  logger,
	}
}

// 单次导出最多携带的行数
const exportRowLimit = 10000

// TableData 分发 /grid/api/v1/tables/{id}/import|import/file|import-template|export 的请求
func (h *ImportHandler) TableData(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/grid/api/v1/tables/")
	idx := strings.Index(rest, "/")
	if idx <= 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tableID, op := rest[:idx], rest[idx+1:]

	switch {
	case op == "import" && r.Method == http.MethodPost:
		h.ImportJSON(w, r, tableID)
	case op == "import/file" && r.Method == http.MethodPost:
		h.ImportFile(w, r, tableID)
	case op == "import-template" && r.Method == http.MethodGet:
		h.DownloadTemplate(w, r, tableID)
	case op == "export" && r.Method == http.MethodGet:
		h.ExportRows(w, r, tableID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ImportJSON JSON载荷批量导入
func (h *ImportHandler) ImportJSON(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	var payload struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if err := readBodyJSON(r, 32<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	// 2. 调用 Service
	result, err := h.imports.Import(ctx, principal, &service.ImportRequest{
		TenantID: principal.TenantID,
		TableID:  tableID,
		Rows:     service.DecodeImportRows(payload.Rows),
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeImportResult(w, result)
}

// ImportFile Excel文件批量导入（multipart，file字段）
func (h *ImportHandler) ImportFile(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	// 1. 参数解析和验证
	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	// Parse multipart form
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeJSON(w, http.StatusBadRequest, Fail("failed to parse form"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("file not found in request"))
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("failed to read file"))
		return
	}

	columns, err := h.catalog.GetColumns(ctx, principal.TenantID, tableID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	rows, err := parseImportSheet(fileBytes, columns)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	// 2. 调用 Service
	result, err := h.imports.Import(ctx, principal, &service.ImportRequest{
		TenantID: principal.TenantID,
		TableID:  tableID,
		Rows:     rows,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 3. 返回响应
	writeImportResult(w, result)
}

// DownloadTemplate 下载导入模板
func (h *ImportHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	if _, err := h.catalog.GetTable(ctx, service.GetTableRequest{Principal: principal, TableID: tableID}); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	columns, err := h.catalog.GetColumns(ctx, principal.TenantID, tableID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	data, err := buildImportTemplate(columns)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeExcel(w, "import-template.xlsx", data)
}

// ExportRows 导出行数据为Excel
func (h *ImportHandler) ExportRows(w http.ResponseWriter, r *http.Request, tableID string) {
	ctx := r.Context()

	principal, ok := principalFromReq(w, r)
	if !ok {
		return
	}

	columns, err := h.catalog.GetColumns(ctx, principal.TenantID, tableID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	// 走ListRows拿数据，列级读权限过滤随之生效
	resp, err := h.cells.ListRows(ctx, service.ListRowsRequest{
		Principal: principal,
		TableID:   tableID,
		Page:      1,
		Size:      exportRowLimit,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	data, err := buildRowsExport(columns, resp.Items)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeExcel(w, "export.xlsx", data)
}

// writeImportResult 按导入结局映射HTTP状态码
// 中止400、部分成功207、全量成功200
func writeImportResult(w http.ResponseWriter, result *service.ImportResult) {
	switch {
	case result.Aborted:
		writeJSON(w, http.StatusBadRequest, Result[*service.ImportResult]{
			Code: ResultError, Type: "error", Message: "import aborted", Result: result,
		})
	case result.TotalErrors > 0 || len(result.ImportErrors) > 0:
		writeJSON(w, http.StatusMultiStatus, Result[*service.ImportResult]{
			Code: ResultSuccess, Type: "warning", Message: "import completed with errors", Result: result,
		})
	default:
		writeJSON(w, http.StatusOK, Ok(result))
	}
}

func writeExcel(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
