package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRowsRepository 数据行Repository实现
// 行+cells的写入都走单事务：一行的cells要么全部落库要么一个不落
type PostgresRowsRepository struct {
	db *sql.DB
}

// NewPostgresRowsRepository 创建数据行Repository
func NewPostgresRowsRepository(db *sql.DB) *PostgresRowsRepository {
	return &PostgresRowsRepository{db: db}
}

// 确保实现了接口
var _ RowsRepository = (*PostgresRowsRepository)(nil)

// CreateRow 创建行及其cells（单事务）
// autoNumberColumns里的列在事务内按该列现有最大数值+1赋值
func (r *PostgresRowsRepository) CreateRow(ctx context.Context, tenantID, tableID string, cells []*domain.Cell, autoNumberColumns []string) (string, error) {
	if tenantID == "" || tableID == "" {
		return "", fmt.Errorf("tenant_id and table_id are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rowID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO data_rows (row_id, tenant_id, table_id) VALUES ($1, $2, $3)`,
		rowID, tenantID, tableID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create row: %w", err)
	}

	for _, cell := range cells {
		value, err := encodeValue(cell.Value)
		if err != nil {
			return "", fmt.Errorf("failed to encode cell value: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO data_cells (cell_id, tenant_id, table_id, row_id, column_id, value)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), tenantID, tableID, rowID, cell.ColumnID, value,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return "", domain.NewConflictError("cell", cell.ColumnID)
			}
			return "", fmt.Errorf("failed to create cell: %w", err)
		}
	}

	// autoIncrement列：事务内取该列现有最大数值+1
	for _, columnID := range autoNumberColumns {
		var next float64
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX((value #>> '{}')::numeric), 0) + 1
			 FROM data_cells
			 WHERE tenant_id = $1 AND column_id = $2 AND jsonb_typeof(value) = 'number'`,
			tenantID, columnID,
		).Scan(&next)
		if err != nil {
			return "", fmt.Errorf("failed to compute auto increment value: %w", err)
		}

		value, err := encodeValue(domain.NumberValue(next))
		if err != nil {
			return "", fmt.Errorf("failed to encode auto increment value: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO data_cells (cell_id, tenant_id, table_id, row_id, column_id, value)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), tenantID, tableID, rowID, columnID, value,
		)
		if err != nil {
			return "", fmt.Errorf("failed to create auto increment cell: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rowID, nil
}

// CreateRowsBatch 批量创建行（一批一个事务；失败整批回滚，由调用方决定是否继续下一批）
func (r *PostgresRowsRepository) CreateRowsBatch(ctx context.Context, tenantID, tableID string, batch []BatchRow) error {
	if tenantID == "" || tableID == "" {
		return fmt.Errorf("tenant_id and table_id are required")
	}
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range batch {
		rowID := row.RowID
		if rowID == "" {
			rowID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO data_rows (row_id, tenant_id, table_id) VALUES ($1, $2, $3)`,
			rowID, tenantID, tableID,
		)
		if err != nil {
			return fmt.Errorf("failed to create row: %w", err)
		}

		for _, cell := range row.Cells {
			value, err := encodeValue(cell.Value)
			if err != nil {
				return fmt.Errorf("failed to encode cell value: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO data_cells (cell_id, tenant_id, table_id, row_id, column_id, value)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.NewString(), tenantID, tableID, rowID, cell.ColumnID, value,
			)
			if err != nil {
				return fmt.Errorf("failed to create cell: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRow 获取行及其cells
func (r *PostgresRowsRepository) GetRow(ctx context.Context, tenantID, rowID string) (*domain.Row, []*domain.Cell, error) {
	if tenantID == "" || rowID == "" {
		return nil, nil, domain.NewNotFoundError("row", rowID)
	}

	var row domain.Row
	err := r.db.QueryRowContext(ctx,
		`SELECT row_id::text, tenant_id::text, table_id::text, created_at
		 FROM data_rows
		 WHERE tenant_id = $1 AND row_id = $2`,
		tenantID, rowID,
	).Scan(&row.RowID, &row.TenantID, &row.TableID, &row.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, domain.NewNotFoundError("row", rowID)
		}
		return nil, nil, fmt.Errorf("failed to get row: %w", err)
	}

	cells, err := r.listCellsForRows(ctx, tenantID, []string{rowID})
	if err != nil {
		return nil, nil, err
	}

	return &row, cells[rowID], nil
}

// ListRows 查询表的行（带分页），cells按row_id分组返回
// 行的cells可以是列集合的稀疏子集（缺格不补占位）
func (r *PostgresRowsRepository) ListRows(ctx context.Context, tenantID, tableID string, page, size int) ([]*domain.Row, map[string][]*domain.Cell, int, error) {
	if tenantID == "" || tableID == "" {
		return nil, nil, 0, fmt.Errorf("tenant_id and table_id are required")
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_rows WHERE tenant_id = $1 AND table_id = $2`,
		tenantID, tableID,
	).Scan(&total)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to count rows: %w", err)
	}

	query := `
		SELECT row_id::text, tenant_id::text, table_id::text, created_at
		FROM data_rows
		WHERE tenant_id = $1 AND table_id = $2
		ORDER BY created_at, row_id
		LIMIT $3 OFFSET $4
	`
	result, err := r.db.QueryContext(ctx, query, tenantID, tableID, size, (page-1)*size)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to list rows: %w", err)
	}
	defer result.Close()

	rows := []*domain.Row{}
	rowIDs := []string{}
	for result.Next() {
		var row domain.Row
		if err := result.Scan(&row.RowID, &row.TenantID, &row.TableID, &row.CreatedAt); err != nil {
			return nil, nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		rows = append(rows, &row)
		rowIDs = append(rowIDs, row.RowID)
	}
	if err = result.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to iterate rows: %w", err)
	}

	cells, err := r.listCellsForRows(ctx, tenantID, rowIDs)
	if err != nil {
		return nil, nil, 0, err
	}

	return rows, cells, total, nil
}

// listCellsForRows 按row_id集合查询cells（一次集合查询，不逐行查）
func (r *PostgresRowsRepository) listCellsForRows(ctx context.Context, tenantID string, rowIDs []string) (map[string][]*domain.Cell, error) {
	cells := map[string][]*domain.Cell{}
	if len(rowIDs) == 0 {
		return cells, nil
	}

	query := `
		SELECT cell_id::text, tenant_id::text, table_id::text, row_id::text, column_id::text, value, created_at, updated_at
		FROM data_cells
		WHERE tenant_id = $1 AND row_id = ANY($2)
		ORDER BY created_at
	`
	result, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(rowIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var cell domain.Cell
		var value []byte
		err := result.Scan(
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
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cell.Value = decodeValue(value)
		cells[cell.RowID] = append(cells[cell.RowID], &cell)
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cells: %w", err)
	}

	return cells, nil
}

// DeleteRow 删除行（级联删除子cells，单事务）
// 行不存在返回NotFound，不静默成功
func (r *PostgresRowsRepository) DeleteRow(ctx context.Context, tenantID, rowID string) error {
	if tenantID == "" || rowID == "" {
		return fmt.Errorf("tenant_id and row_id are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM data_cells WHERE tenant_id = $1 AND row_id = $2`,
		tenantID, rowID,
	); err != nil {
		return fmt.Errorf("failed to cascade delete cells: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM data_rows WHERE tenant_id = $1 AND row_id = $2`,
		tenantID, rowID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("row", rowID)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountRows 统计表的行数
func (r *PostgresRowsRepository) CountRows(ctx context.Context, tenantID, tableID string) (int, error) {
	if tenantID == "" || tableID == "" {
		return 0, fmt.Errorf("tenant_id and table_id are required")
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_rows WHERE tenant_id = $1 AND table_id = $2`,
		tenantID, tableID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}

	return total, nil
}
