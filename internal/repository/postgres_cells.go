package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresCellsRepository 单元格Repository实现
// 唯一性查询统一走 value #>> '{}' 的文本投影，和Value.Canonical()一一对应
type PostgresCellsRepository struct {
	db *sql.DB
}

// NewPostgresCellsRepository 创建单元格Repository
func NewPostgresCellsRepository(db *sql.DB) *PostgresCellsRepository {
	return &PostgresCellsRepository{db: db}
}

// 确保实现了接口
var _ CellsRepository = (*PostgresCellsRepository)(nil)

// GetCell 根据ID获取单元格
func (r *PostgresCellsRepository) GetCell(ctx context.Context, tenantID, cellID string) (*domain.Cell, error) {
	if tenantID == "" || cellID == "" {
		return nil, domain.NewNotFoundError("cell", cellID)
	}

	var cell domain.Cell
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT cell_id::text, tenant_id::text, table_id::text, row_id::text, column_id::text, value, created_at, updated_at
		 FROM data_cells
		 WHERE tenant_id = $1 AND cell_id = $2`,
		tenantID, cellID,
	).Scan(
		&cell.CellID,
		&cell.TenantID,
		&cell.TableID,
		&cell.RowID,
		&cell.ColumnID,
		&value,
		&cell.CreatedAt,
		&cell.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("cell", cellID)
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	cell.Value = decodeValue(value)

	return &cell, nil
}

// UpdateCellValue 更新单元格的值
func (r *PostgresCellsRepository) UpdateCellValue(ctx context.Context, tenantID, cellID string, value domain.Value) error {
	if tenantID == "" || cellID == "" {
		return fmt.Errorf("tenant_id and cell_id are required")
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("failed to encode cell value: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE data_cells SET value = $1, updated_at = $2 WHERE tenant_id = $3 AND cell_id = $4`,
		encoded, time.Now(), tenantID, cellID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("cell", cellID)
	}

	return nil
}

// UpsertCell 按(row_id, column_id)写入单元格
// 行是稀疏的：某行某列还没格的时候补一格，有格就改值
func (r *PostgresCellsRepository) UpsertCell(ctx context.Context, tenantID, tableID, rowID, columnID string, value domain.Value) (*domain.Cell, error) {
	if tenantID == "" || tableID == "" || rowID == "" || columnID == "" {
		return nil, fmt.Errorf("tenant_id, table_id, row_id and column_id are required")
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cell value: %w", err)
	}

	var cell domain.Cell
	var raw []byte
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO data_cells (cell_id, tenant_id, table_id, row_id, column_id, value)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (row_id, column_id)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		 RETURNING cell_id::text, tenant_id::text, table_id::text, row_id::text, column_id::text, value, created_at, updated_at`,
		uuid.NewString(), tenantID, tableID, rowID, columnID, encoded,
	).Scan(
		&cell.CellID,
		&cell.TenantID,
		&cell.TableID,
		&cell.RowID,
		&cell.ColumnID,
		&raw,
		&cell.CreatedAt,
		&cell.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cell: %w", err)
	}
	cell.Value = decodeValue(raw)

	return &cell, nil
}

// DeleteCell 删除单元格
func (r *PostgresCellsRepository) DeleteCell(ctx context.Context, tenantID, cellID string) error {
	if tenantID == "" || cellID == "" {
		return fmt.Errorf("tenant_id and cell_id are required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM data_cells WHERE tenant_id = $1 AND cell_id = $2`,
		tenantID, cellID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("cell", cellID)
	}

	return nil
}

// CountCellsWithValue 统计某列中等于给定规范文本的单元格数（唯一性检查用）
// excludeRowID非空时排除该行自身（更新场景）
func (r *PostgresCellsRepository) CountCellsWithValue(ctx context.Context, tenantID, columnID, canonical, excludeRowID string) (int, error) {
	if tenantID == "" || columnID == "" {
		return 0, fmt.Errorf("tenant_id and column_id are required")
	}

	query := `SELECT COUNT(*) FROM data_cells WHERE tenant_id = $1 AND column_id = $2 AND (value #>> '{}') = $3`
	args := []any{tenantID, columnID, canonical}
	if excludeRowID != "" {
		query += ` AND row_id != $4`
		args = append(args, excludeRowID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count cells: %w", err)
	}

	return total, nil
}

// ListExistingValues 查询某列中已存在的值（引用解析用）
// 返回candidates里命中的文本集合，一次集合查询
func (r *PostgresCellsRepository) ListExistingValues(ctx context.Context, tenantID, columnID string, candidates []string) (map[string]bool, error) {
	existing := map[string]bool{}
	if len(candidates) == 0 {
		return existing, nil
	}
	if tenantID == "" || columnID == "" {
		return nil, fmt.Errorf("tenant_id and column_id are required")
	}

	query := `
		SELECT DISTINCT (value #>> '{}')
		FROM data_cells
		WHERE tenant_id = $1 AND column_id = $2 AND (value #>> '{}') = ANY($3)
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, columnID, pq.Array(candidates))
	if err != nil {
		return nil, fmt.Errorf("failed to list existing values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		existing[value] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}

	return existing, nil
}
