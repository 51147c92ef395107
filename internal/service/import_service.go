package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/metrics"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// ImportService 批量导入管道
// 先整体校验再分批落库：类型错误逐行记error，未解析引用记warning但不拦截，
// 错误行数过半时在落任何数据之前整单中止。
type ImportService struct {
	tableRepo    repository.TablesRepository
	rowRepo      repository.RowsRepository
	catalog      *CatalogService
	perms        *PermissionService
	resolver     *ReferenceResolver
	metrics      *metrics.HTTPMetrics
	logger       *zap.Logger
	batchSize    int
	batchTimeout time.Duration
	errorPreview int
}

// NewImportService 创建导入服务
func NewImportService(
	tableRepo repository.TablesRepository,
	rowRepo repository.RowsRepository,
	catalog *CatalogService,
	perms *PermissionService,
	resolver *ReferenceResolver,
	m *metrics.HTTPMetrics,
	logger *zap.Logger,
	batchSize int,
	batchTimeout time.Duration,
	errorPreview int,
) *ImportService {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchTimeout <= 0 {
		batchTimeout = 30 * time.Second
	}
	if errorPreview <= 0 {
		errorPreview = 50
	}
	return &ImportService{
		tableRepo:    tableRepo,
		rowRepo:      rowRepo,
		catalog:      catalog,
		perms:        perms,
		resolver:     resolver,
		metrics:      m,
		logger:       logger,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		errorPreview: errorPreview,
	}
}

// ImportRow 一行待导入数据
// Err非空表示原始载荷形状不合法（不是cell对象数组），该行整体拒绝
type ImportRow struct {
	Cells []CellInput
	Err   string
}

// DecodeImportRows 把JSON原始行解码成导入行
// 单行解码失败不影响其他行，失败原因落在该行的Err上
func DecodeImportRows(raw []json.RawMessage) []ImportRow {
	rows := make([]ImportRow, 0, len(raw))
	for _, item := range raw {
		var cells []CellInput
		if err := json.Unmarshal(item, &cells); err != nil {
			rows = append(rows, ImportRow{Err: "malformed cell array"})
			continue
		}
		row := ImportRow{Cells: cells}
		for _, cell := range cells {
			if strings.TrimSpace(cell.ColumnID) == "" {
				row = ImportRow{Err: "cell is missing columnId"}
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ImportRequest 导入请求
type ImportRequest struct {
	TenantID string
	TableID  string
	Rows     []ImportRow
}

// ImportIssue 逐行问题（行号从1开始）
type ImportIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult 导入结果
// Errors/Warnings是截断后的预览，完整数量看TotalErrors/TotalWarnings
type ImportResult struct {
	TotalRows     int           `json:"totalRows"`
	ValidRows     int           `json:"validRows"`
	ImportedRows  int           `json:"importedRows"`
	SkippedRows   int           `json:"skippedRows"`
	Aborted       bool          `json:"aborted"`
	TotalErrors   int           `json:"totalErrors"`
	TotalWarnings int           `json:"totalWarnings"`
	Errors        []ImportIssue `json:"errors"`
	Warnings      []ImportIssue `json:"warnings"`
	ImportErrors  []string      `json:"importErrors,omitempty"`
}

// validRow 通过校验待落库的行
type validRow struct {
	index int
	cells []*domain.Cell
}

// Import 执行批量导入
// 流程：校验全部行 -> 批量解析引用 -> 过半错误则中止 -> 否则分批各自成事务落库，
// 单批失败只回滚该批，其余批继续。
func (s *ImportService) Import(ctx context.Context, principal domain.Principal, req *ImportRequest) (*ImportResult, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if req.TableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}
	if len(req.Rows) == 0 {
		return nil, domain.NewValidationError("rows", "no rows to import")
	}

	if err := s.perms.Require(ctx, principal, req.TableID, "", domain.ActionCreate); err != nil {
		return nil, err
	}
	if _, err := s.tableRepo.GetTable(ctx, req.TenantID, req.TableID); err != nil {
		return nil, err
	}

	columns, err := s.catalog.GetColumns(ctx, req.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Column, len(columns))
	var required []*domain.Column
	for _, column := range columns {
		byID[column.ColumnID] = column
		if column.Required {
			required = append(required, column)
		}
	}

	var (
		errors   []ImportIssue
		warnings []ImportIssue
		valid    []validRow
		skipped  int
	)

	// 引用解析按列跨行攒批，解析完再回填warning
	refCandidates := map[string]map[string][]int{}

	for i, row := range req.Rows {
		rowNum := i + 1
		if row.Err != "" {
			errors = append(errors, ImportIssue{Row: rowNum, Message: row.Err})
			continue
		}

		supplied := make(map[string]domain.Value, len(row.Cells))
		rowErr := false
		allEmpty := true
		for _, cell := range row.Cells {
			column, ok := byID[cell.ColumnID]
			if !ok {
				errors = append(errors, ImportIssue{Row: rowNum, Message: fmt.Sprintf("unknown column: %s", cell.ColumnID)})
				rowErr = true
				break
			}
			if _, dup := supplied[cell.ColumnID]; dup {
				errors = append(errors, ImportIssue{Row: rowNum, Message: fmt.Sprintf("duplicate cell for column %q", column.ColumnName)})
				rowErr = true
				break
			}
			raw := domain.ValueFromAny(cell.Value)
			if !raw.IsEmpty() {
				allEmpty = false
			}
			supplied[cell.ColumnID] = raw
		}
		if rowErr {
			continue
		}
		if allEmpty {
			warnings = append(warnings, ImportIssue{Row: rowNum, Message: "empty row skipped"})
			skipped++
			continue
		}

		var missing []string
		for _, column := range required {
			if v, ok := supplied[column.ColumnID]; !ok || v.IsEmpty() {
				missing = append(missing, column.ColumnName)
			}
		}
		if len(missing) > 0 {
			errors = append(errors, ImportIssue{Row: rowNum, Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))})
			continue
		}

		cells := make([]*domain.Cell, 0, len(row.Cells))
		for _, input := range row.Cells {
			column := byID[input.ColumnID]
			raw := supplied[input.ColumnID]
			if raw.IsEmpty() {
				continue
			}
			if !ValidateValue(input.Value, column.Type(), column.CustomOptions) {
				errors = append(errors, ImportIssue{Row: rowNum, Message: fmt.Sprintf("invalid value for %s column %q", column.ColumnType, column.ColumnName)})
				rowErr = true
				break
			}
			value := CoerceValue(input.Value, column.Type())
			if column.Type() == domain.ColumnTypeReference && len(value.Arr) > 0 {
				perColumn, ok := refCandidates[column.ColumnID]
				if !ok {
					perColumn = map[string][]int{}
					refCandidates[column.ColumnID] = perColumn
				}
				for _, candidate := range value.Arr {
					perColumn[candidate] = append(perColumn[candidate], rowNum)
				}
			}
			cells = append(cells, &domain.Cell{ColumnID: column.ColumnID, Value: value})
		}
		if rowErr {
			continue
		}
		valid = append(valid, validRow{index: rowNum, cells: cells})
	}

	refWarnings, err := s.resolveImportReferences(ctx, req.TenantID, byID, refCandidates)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, refWarnings...)

	total := len(req.Rows)
	result := &ImportResult{
		TotalRows:   total,
		ValidRows:   len(valid),
		SkippedRows: skipped,
	}

	// 中止线：错误行严格超过提交行数一半就整单放弃，此时尚未落任何数据
	if len(errors)*2 > total {
		result.Aborted = true
		s.finish(result, errors, warnings)
		s.metrics.ImportOutcome("aborted")
		s.logger.Warn("import aborted, too many invalid rows",
			zap.String("tenant_id", req.TenantID),
			zap.String("table_id", req.TableID),
			zap.Int("total_rows", total),
			zap.Int("error_rows", len(errors)),
		)
		return result, nil
	}

	imported := 0
	var importErrors []string
	for start := 0; start < len(valid); start += s.batchSize {
		end := start + s.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]
		batch := make([]repository.BatchRow, 0, len(chunk))
		for _, row := range chunk {
			batch = append(batch, repository.BatchRow{Cells: row.cells})
		}

		batchCtx, cancel := context.WithTimeout(ctx, s.batchTimeout)
		err := s.rowRepo.CreateRowsBatch(batchCtx, req.TenantID, req.TableID, batch)
		cancel()
		if err != nil {
			importErrors = append(importErrors, fmt.Sprintf("batch %d-%d failed: %v", chunk[0].index, chunk[len(chunk)-1].index, err))
			s.logger.Warn("import batch failed",
				zap.String("tenant_id", req.TenantID),
				zap.String("table_id", req.TableID),
				zap.Int("batch_start", chunk[0].index),
				zap.Int("batch_end", chunk[len(chunk)-1].index),
				zap.Error(err),
			)
			continue
		}
		imported += len(chunk)
	}

	result.ImportedRows = imported
	result.ImportErrors = importErrors
	s.finish(result, errors, warnings)

	outcome := "completed"
	if len(errors) > 0 || len(importErrors) > 0 {
		outcome = "partial"
	}
	s.metrics.ImportOutcome(outcome)

	s.logger.Info("import finished",
		zap.String("tenant_id", req.TenantID),
		zap.String("table_id", req.TableID),
		zap.Int("total_rows", total),
		zap.Int("imported_rows", imported),
		zap.Int("error_rows", len(errors)),
		zap.Int("warning_rows", len(warnings)),
		zap.String("outcome", outcome),
	)
	return result, nil
}

// resolveImportReferences 对攒批的引用候选值逐列解析，未命中的逐行记warning
func (s *ImportService) resolveImportReferences(ctx context.Context, tenantID string, byID map[string]*domain.Column, refCandidates map[string]map[string][]int) ([]ImportIssue, error) {
	var warnings []ImportIssue
	for columnID, perColumn := range refCandidates {
		column := byID[columnID]
		candidates := make([]string, 0, len(perColumn))
		for candidate := range perColumn {
			candidates = append(candidates, candidate)
		}
		resolution, err := s.resolver.ResolveReferences(ctx, tenantID, column, candidates)
		if err != nil {
			return nil, err
		}
		for _, candidate := range resolution.Invalid {
			for _, rowNum := range perColumn[candidate] {
				warnings = append(warnings, ImportIssue{
					Row:     rowNum,
					Message: fmt.Sprintf("unresolved reference %q in column %q", candidate, column.ColumnName),
				})
			}
		}
	}
	return warnings, nil
}

// finish 回填总数并按预览上限截断问题列表
func (s *ImportService) finish(result *ImportResult, errors, warnings []ImportIssue) {
	result.TotalErrors = len(errors)
	result.TotalWarnings = len(warnings)
	if len(errors) > s.errorPreview {
		errors = errors[:s.errorPreview]
	}
	if len(warnings) > s.errorPreview {
		warnings = warnings[:s.errorPreview]
	}
	if errors == nil {
		errors = []ImportIssue{}
	}
	if warnings == nil {
		warnings = []ImportIssue{}
	}
	result.Errors = errors
	result.Warnings = warnings
}
