package service

import (
	"context"
	"fmt"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// ReferenceResolver 引用完整性解析器
// 候选值是面向最终用户的主键值（不是row id），按归一化文本和被引用表主键列的cell值比对
type ReferenceResolver struct {
	columnRepo repository.ColumnsRepository
	cellRepo   repository.CellsRepository
	logger     *zap.Logger
}

// NewReferenceResolver 创建引用解析器
func NewReferenceResolver(columnRepo repository.ColumnsRepository, cellRepo repository.CellsRepository, logger *zap.Logger) *ReferenceResolver {
	return &ReferenceResolver{
		columnRepo: columnRepo,
		cellRepo:   cellRepo,
		logger:     logger,
	}
}

// ReferenceResolution 引用解析结果（逐候选值拆分）
type ReferenceResolution struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// Resolved 是否全部候选值都解析成功
func (r *ReferenceResolution) Resolved() bool {
	return len(r.Invalid) == 0
}

// ResolveReferences 解析引用列的候选值
// 空候选集是no-op（视为满足）；referenceTableId未设置时不解析、接受任意值并记异常日志
func (s *ReferenceResolver) ResolveReferences(ctx context.Context, tenantID string, column *domain.Column, candidates []string) (*ReferenceResolution, error) {
	resolution := &ReferenceResolution{Valid: []string{}, Invalid: []string{}}
	if len(candidates) == 0 {
		return resolution, nil
	}

	if column.ReferenceTableID == "" {
		s.logger.Warn("reference column without target table, skipping resolution",
			zap.String("column_id", column.ColumnID),
			zap.String("column_name", column.ColumnName),
		)
		resolution.Valid = append(resolution.Valid, candidates...)
		return resolution, nil
	}

	primary, err := s.findPrimaryColumn(ctx, tenantID, column.ReferenceTableID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cellRepo.ListExistingValues(ctx, tenantID, primary.ColumnID, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}

	for _, candidate := range candidates {
		if existing[candidate] {
			resolution.Valid = append(resolution.Valid, candidate)
		} else {
			resolution.Invalid = append(resolution.Invalid, candidate)
		}
	}

	return resolution, nil
}

// findPrimaryColumn 查被引用表的主键列（按position排序取第一个flagged primary）
func (s *ReferenceResolver) findPrimaryColumn(ctx context.Context, tenantID, tableID string) (*domain.Column, error) {
	columns, err := s.columnRepo.ListColumns(ctx, tenantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of referenced table: %w", err)
	}

	for _, column := range columns {
		if column.Primary {
			return column, nil
		}
	}
	return nil, domain.NewValidationError("referenceTableId", "referenced table has no primary column")
}
