package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
)

// PostgresColumnsRepository 列定义Repository实现
// 实现ColumnsRepository接口，使用domain.Column领域模型
type PostgresColumnsRepository struct {
	db *sql.DB
}

// NewPostgresColumnsRepository 创建列定义Repository
func NewPostgresColumnsRepository(db *sql.DB) *PostgresColumnsRepository {
	return &PostgresColumnsRepository{db: db}
}

// 确保实现了接口
var _ ColumnsRepository = (*PostgresColumnsRepository)(nil)

const columnSelectFields = `
	column_id::text,
	tenant_id::text,
	table_id::text,
	column_name,
	column_type,
	required,
	is_primary,
	is_unique,
	auto_increment,
	position,
	COALESCE(reference_table_id::text, ''),
	custom_options,
	COALESCE(semantic_type, ''),
	created_at
`

func scanColumn(scanner interface{ Scan(...any) error }) (*domain.Column, error) {
	var col domain.Column
	var options []byte
	err := scanner.Scan(
		&col.ColumnID,
		&col.TenantID,
		&col.TableID,
		&col.ColumnName,
		&col.ColumnType,
		&col.Required,
		&col.Primary,
		&col.Unique,
		&col.AutoIncrement,
		&col.Position,
		&col.ReferenceTableID,
		&options,
		&col.SemanticType,
		&col.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	col.CustomOptions = decodeStrings(options)
	return &col, nil
}

// CreateColumn 创建列并写入默认列级权限行（单事务）
// position为0时在事务内取同表max(position)+1
func (r *PostgresColumnsRepository) CreateColumn(ctx context.Context, tenantID string, column *domain.Column) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenant_id is required")
	}
	if column == nil {
		return "", fmt.Errorf("column is required")
	}
	if column.TableID == "" {
		return "", fmt.Errorf("table_id is required")
	}
	if column.ColumnName == "" {
		return "", fmt.Errorf("column_name is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	position := column.Position
	if position <= 0 {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM data_columns WHERE tenant_id = $1 AND table_id = $2`,
			tenantID, column.TableID,
		).Scan(&position)
		if err != nil {
			return "", fmt.Errorf("failed to compute column position: %w", err)
		}
	}

	columnID := column.ColumnID
	if columnID == "" {
		columnID = uuid.NewString()
	}

	var referenceTableID any
	if column.ReferenceTableID != "" {
		referenceTableID = column.ReferenceTableID
	}
	var semanticType any
	if column.SemanticType != "" {
		semanticType = column.SemanticType
	}
	options, err := encodeStrings(column.CustomOptions)
	if err != nil {
		return "", fmt.Errorf("failed to encode custom_options: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO data_columns
			(column_id, tenant_id, table_id, column_name, column_type, required, is_primary, is_unique, auto_increment, position, reference_table_id, custom_options, semantic_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		columnID, tenantID, column.TableID, column.ColumnName, column.ColumnType,
		column.Required, column.Primary, column.Unique, column.AutoIncrement,
		position, referenceTableID, options, semanticType,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return "", domain.NewConflictError("column", column.ColumnName)
		}
		return "", fmt.Errorf("failed to create column: %w", err)
	}

	// 默认列级权限行（read/edit放行），保证"缺行即拒绝"语义下新列可用
	_, err = tx.ExecContext(ctx,
		`INSERT INTO column_permissions (permission_id, tenant_id, table_id, column_id, can_read, can_edit)
		 VALUES ($1, $2, $3, $4, true, true)
		 ON CONFLICT (tenant_id, column_id) DO NOTHING`,
		uuid.NewString(), tenantID, column.TableID, columnID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create default column permission: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return columnID, nil
}

// GetColumn 根据column_id获取列定义
func (r *PostgresColumnsRepository) GetColumn(ctx context.Context, tenantID, columnID string) (*domain.Column, error) {
	if tenantID == "" || columnID == "" {
		return nil, domain.NewNotFoundError("column", columnID)
	}

	query := fmt.Sprintf(`SELECT %s FROM data_columns WHERE tenant_id = $1 AND column_id = $2`, columnSelectFields)

	col, err := scanColumn(r.db.QueryRowContext(ctx, query, tenantID, columnID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("column", columnID)
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}

	return col, nil
}

// ListColumns 查询表的列定义（按position排序）
func (r *PostgresColumnsRepository) ListColumns(ctx context.Context, tenantID, tableID string) ([]*domain.Column, error) {
	if tenantID == "" || tableID == "" {
		return nil, fmt.Errorf("tenant_id and table_id are required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM data_columns
		WHERE tenant_id = $1 AND table_id = $2
		ORDER BY position, column_name
	`, columnSelectFields)

	rows, err := r.db.QueryContext(ctx, query, tenantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	columns := []*domain.Column{}
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}

	return columns, nil
}

// UpdateColumn 更新列定义（只更新update里非nil的字段）
func (r *PostgresColumnsRepository) UpdateColumn(ctx context.Context, tenantID, columnID string, update ColumnUpdate) error {
	if tenantID == "" || columnID == "" {
		return fmt.Errorf("tenant_id and column_id are required")
	}

	// 构建SET子句
	set := []string{}
	args := []any{tenantID, columnID}
	argIdx := 3

	if update.ColumnName != nil {
		set = append(set, fmt.Sprintf("column_name = $%d", argIdx))
		args = append(args, *update.ColumnName)
		argIdx++
	}
	if update.ColumnType != nil {
		set = append(set, fmt.Sprintf("column_type = $%d", argIdx))
		args = append(args, *update.ColumnType)
		argIdx++
	}
	if update.Required != nil {
		set = append(set, fmt.Sprintf("required = $%d", argIdx))
		args = append(args, *update.Required)
		argIdx++
	}
	if update.Unique != nil {
		set = append(set, fmt.Sprintf("is_unique = $%d", argIdx))
		args = append(args, *update.Unique)
		argIdx++
	}
	if update.Primary != nil {
		set = append(set, fmt.Sprintf("is_primary = $%d", argIdx))
		args = append(args, *update.Primary)
		argIdx++
	}
	if update.AutoIncrement != nil {
		set = append(set, fmt.Sprintf("auto_increment = $%d", argIdx))
		args = append(args, *update.AutoIncrement)
		argIdx++
	}
	if update.Position != nil {
		set = append(set, fmt.Sprintf("position = $%d", argIdx))
		args = append(args, *update.Position)
		argIdx++
	}
	if update.ReferenceTableID != nil {
		if *update.ReferenceTableID == "" {
			set = append(set, "reference_table_id = NULL")
		} else {
			set = append(set, fmt.Sprintf("reference_table_id = $%d", argIdx))
			args = append(args, *update.ReferenceTableID)
			argIdx++
		}
	}
	if update.CustomOptions != nil {
		options, err := encodeStrings(update.CustomOptions)
		if err != nil {
			return fmt.Errorf("failed to encode custom_options: %w", err)
		}
		set = append(set, fmt.Sprintf("custom_options = $%d", argIdx))
		args = append(args, options)
		argIdx++
	}
	if update.SemanticType != nil {
		if *update.SemanticType == "" {
			set = append(set, "semantic_type = NULL")
		} else {
			set = append(set, fmt.Sprintf("semantic_type = $%d", argIdx))
			args = append(args, *update.SemanticType)
			argIdx++
		}
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE data_columns SET %s WHERE tenant_id = $1 AND column_id = $2`,
		strings.Join(set, ", "),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("column", columnID)
	}

	return nil
}

// ApplyCurrencyType semanticType="currency"的复合变更
// type、customOptions、semantic_type必须在同一条UPDATE里落库，
// 避免出现type和options不一致的窗口
func (r *PostgresColumnsRepository) ApplyCurrencyType(ctx context.Context, tenantID, columnID string, currencyCodes []string) error {
	if tenantID == "" || columnID == "" {
		return fmt.Errorf("tenant_id and column_id are required")
	}

	options, err := encodeStrings(currencyCodes)
	if err != nil {
		return fmt.Errorf("failed to encode currency codes: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE data_columns
		 SET column_type = $3, custom_options = $4, semantic_type = $5
		 WHERE tenant_id = $1 AND column_id = $2`,
		tenantID, columnID, string(domain.ColumnTypeCustomArray), options, "currency",
	)
	if err != nil {
		return fmt.Errorf("failed to apply currency type: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("column", columnID)
	}

	return nil
}

// DeleteColumn 删除列（级联：该列cells → 列级权限行 → 列）
func (r *PostgresColumnsRepository) DeleteColumn(ctx context.Context, tenantID, columnID string) error {
	if tenantID == "" || columnID == "" {
		return fmt.Errorf("tenant_id and column_id are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM data_cells WHERE tenant_id = $1 AND column_id = $2`,
		tenantID, columnID,
	); err != nil {
		return fmt.Errorf("failed to cascade delete cells: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM column_permissions WHERE tenant_id = $1 AND column_id = $2`,
		tenantID, columnID,
	); err != nil {
		return fmt.Errorf("failed to cascade delete column permissions: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM data_columns WHERE tenant_id = $1 AND column_id = $2`,
		tenantID, columnID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("column", columnID)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
