package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
)

// PostgresTablesRepository 表目录Repository实现
// 实现TablesRepository接口，使用domain.Table领域模型
type PostgresTablesRepository struct {
	db *sql.DB
}

// NewPostgresTablesRepository 创建表目录Repository
func NewPostgresTablesRepository(db *sql.DB) *PostgresTablesRepository {
	return &PostgresTablesRepository{db: db}
}

// 确保实现了接口
var _ TablesRepository = (*PostgresTablesRepository)(nil)

// CreateTable 创建表并fan-out表级权限行（单事务）
func (r *PostgresTablesRepository) CreateTable(ctx context.Context, tenantID string, table *domain.Table, users []domain.TenantUser) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenant_id is required")
	}
	if table == nil {
		return "", fmt.Errorf("table is required")
	}
	if table.TableName == "" {
		return "", fmt.Errorf("table_name is required")
	}
	if table.WorkspaceID == "" {
		return "", fmt.Errorf("workspace_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tableID := table.TableID
	if tableID == "" {
		tableID = uuid.NewString()
	}

	var protectedType any
	if table.ProtectedType != "" {
		protectedType = table.ProtectedType
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO data_tables (table_id, tenant_id, workspace_id, table_name, is_public, is_protected, protected_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tableID, tenantID, table.WorkspaceID, table.TableName, table.IsPublic, table.IsProtected, protectedType,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return "", domain.NewConflictError("table", table.TableName)
		}
		return "", fmt.Errorf("failed to create table: %w", err)
	}

	// 对租户花名册里的每个用户写一条表级权限行
	// 默认全放行；VIEWER的写权限由角色硬上限兜底
	for _, u := range users {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO table_permissions (permission_id, tenant_id, table_id, user_id, can_read, can_edit, can_delete, can_create)
			 VALUES ($1, $2, $3, $4, true, true, true, true)
			 ON CONFLICT (tenant_id, table_id, user_id) DO NOTHING`,
			uuid.NewString(), tenantID, tableID, u.UserID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to fan out table permission: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tableID, nil
}

// GetTable 根据table_id获取表
func (r *PostgresTablesRepository) GetTable(ctx context.Context, tenantID, tableID string) (*domain.Table, error) {
	if tenantID == "" || tableID == "" {
		return nil, domain.NewNotFoundError("table", tableID)
	}

	query := `
		SELECT
			table_id::text,
			tenant_id::text,
			workspace_id::text,
			table_name,
			is_public,
			is_protected,
			COALESCE(protected_type, ''),
			created_at
		FROM data_tables
		WHERE tenant_id = $1 AND table_id = $2
	`

	var table domain.Table
	err := r.db.QueryRowContext(ctx, query, tenantID, tableID).Scan(
		&table.TableID,
		&table.TenantID,
		&table.WorkspaceID,
		&table.TableName,
		&table.IsPublic,
		&table.IsProtected,
		&table.ProtectedType,
		&table.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("table", tableID)
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	return &table, nil
}

// ListTables 查询表列表（带分页）
func (r *PostgresTablesRepository) ListTables(ctx context.Context, tenantID string, filter TablesFilter, page, size int) ([]*domain.Table, int, error) {
	if tenantID == "" {
		return nil, 0, fmt.Errorf("tenant_id is required")
	}

	// 构建WHERE条件
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	argIdx := 2

	if filter.WorkspaceID != "" {
		where = append(where, fmt.Sprintf("workspace_id = $%d", argIdx))
		args = append(args, filter.WorkspaceID)
		argIdx++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("table_name ILIKE $%d", argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	whereClause := strings.Join(where, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM data_tables WHERE %s`, whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tables: %w", err)
	}

	// 查询列表（带分页）
	query := fmt.Sprintf(`
		SELECT
			table_id::text,
			tenant_id::text,
			workspace_id::text,
			table_name,
			is_public,
			is_protected,
			COALESCE(protected_type, ''),
			created_at
		FROM data_tables
		WHERE %s
		ORDER BY created_at, table_name
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)

	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := []*domain.Table{}
	for rows.Next() {
		var table domain.Table
		err := rows.Scan(
			&table.TableID,
			&table.TenantID,
			&table.WorkspaceID,
			&table.TableName,
			&table.IsPublic,
			&table.IsProtected,
			&table.ProtectedType,
			&table.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, &table)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tables: %w", err)
	}

	return tables, total, nil
}

// RenameTable 重命名表
func (r *PostgresTablesRepository) RenameTable(ctx context.Context, tenantID, tableID, newName string) error {
	if tenantID == "" || tableID == "" {
		return fmt.Errorf("tenant_id and table_id are required")
	}
	if newName == "" {
		return fmt.Errorf("table_name is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE data_tables SET table_name = $3 WHERE tenant_id = $1 AND table_id = $2`,
		tenantID, tableID, newName,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.NewConflictError("table", newName)
		}
		return fmt.Errorf("failed to rename table: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("table", tableID)
	}

	return nil
}

// SetTablePublic 切换表的公开标志
func (r *PostgresTablesRepository) SetTablePublic(ctx context.Context, tenantID, tableID string, isPublic bool) error {
	if tenantID == "" || tableID == "" {
		return fmt.Errorf("tenant_id and table_id are required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE data_tables SET is_public = $3 WHERE tenant_id = $1 AND table_id = $2`,
		tenantID, tableID, isPublic,
	)
	if err != nil {
		return fmt.Errorf("failed to set table public: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("table", tableID)
	}

	return nil
}

// DeleteTable 删除表（级联：cells → rows → 列级权限 → columns → 表级权限 → 表）
// 级联是事务内的显式语句，不依赖存储引擎触发器
func (r *PostgresTablesRepository) DeleteTable(ctx context.Context, tenantID, tableID string) error {
	if tenantID == "" || tableID == "" {
		return fmt.Errorf("tenant_id and table_id are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cascade := []string{
		`DELETE FROM data_cells WHERE tenant_id = $1 AND table_id = $2`,
		`DELETE FROM data_rows WHERE tenant_id = $1 AND table_id = $2`,
		`DELETE FROM column_permissions WHERE tenant_id = $1 AND table_id = $2`,
		`DELETE FROM data_columns WHERE tenant_id = $1 AND table_id = $2`,
		`DELETE FROM table_permissions WHERE tenant_id = $1 AND table_id = $2`,
	}
	for _, stmt := range cascade {
		if _, err := tx.ExecContext(ctx, stmt, tenantID, tableID); err != nil {
			return fmt.Errorf("failed to cascade delete table: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM data_tables WHERE tenant_id = $1 AND table_id = $2`,
		tenantID, tableID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("table", tableID)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountTables 统计租户的表数量
func (r *PostgresTablesRepository) CountTables(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_tables WHERE tenant_id = $1`,
		tenantID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}

	return total, nil
}

// CountPublicTables 统计租户的公开表数量（plan-limit检查用）
func (r *PostgresTablesRepository) CountPublicTables(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_tables WHERE tenant_id = $1 AND is_public = true`,
		tenantID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count public tables: %w", err)
	}

	return total, nil
}
