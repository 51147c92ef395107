package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
)

// PostgresPermissionsRepository 权限Repository实现
// 表级权限按(tenant, table, user)唯一，列级权限按(tenant, column)唯一，写入都走upsert
type PostgresPermissionsRepository struct {
	db *sql.DB
}

// NewPostgresPermissionsRepository 创建权限Repository
func NewPostgresPermissionsRepository(db *sql.DB) *PostgresPermissionsRepository {
	return &PostgresPermissionsRepository{db: db}
}

// 确保实现了接口
var _ PermissionsRepository = (*PostgresPermissionsRepository)(nil)

// GetTablePermission 获取某用户在某表上的权限行
// 没有权限行时返回NotFound，由上层决定缺省语义
func (r *PostgresPermissionsRepository) GetTablePermission(ctx context.Context, tenantID, tableID, userID string) (*domain.TablePermission, error) {
	if tenantID == "" || tableID == "" || userID == "" {
		return nil, fmt.Errorf("tenant_id, table_id and user_id are required")
	}

	var p domain.TablePermission
	err := r.db.QueryRowContext(ctx,
		`SELECT permission_id::text, tenant_id::text, table_id::text, user_id::text, can_read, can_edit, can_delete, can_create
		 FROM table_permissions
		 WHERE tenant_id = $1 AND table_id = $2 AND user_id = $3`,
		tenantID, tableID, userID,
	).Scan(&p.PermissionID, &p.TenantID, &p.TableID, &p.UserID, &p.CanRead, &p.CanEdit, &p.CanDelete, &p.CanCreate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("table permission", tableID)
		}
		return nil, fmt.Errorf("failed to get table permission: %w", err)
	}

	return &p, nil
}

// ListTablePermissions 查询某表的全部权限行
func (r *PostgresPermissionsRepository) ListTablePermissions(ctx context.Context, tenantID, tableID string) ([]*domain.TablePermission, error) {
	if tenantID == "" || tableID == "" {
		return nil, fmt.Errorf("tenant_id and table_id are required")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT permission_id::text, tenant_id::text, table_id::text, user_id::text, can_read, can_edit, can_delete, can_create
		 FROM table_permissions
		 WHERE tenant_id = $1 AND table_id = $2
		 ORDER BY user_id`,
		tenantID, tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list table permissions: %w", err)
	}
	defer rows.Close()

	permissions := []*domain.TablePermission{}
	for rows.Next() {
		var p domain.TablePermission
		if err := rows.Scan(&p.PermissionID, &p.TenantID, &p.TableID, &p.UserID, &p.CanRead, &p.CanEdit, &p.CanDelete, &p.CanCreate); err != nil {
			return nil, fmt.Errorf("failed to scan table permission: %w", err)
		}
		permissions = append(permissions, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table permissions: %w", err)
	}

	return permissions, nil
}

// UpsertTablePermission 写入或覆盖某用户在某表上的权限行
func (r *PostgresPermissionsRepository) UpsertTablePermission(ctx context.Context, p *domain.TablePermission) error {
	if p == nil {
		return fmt.Errorf("permission is required")
	}
	if p.TenantID == "" || p.TableID == "" || p.UserID == "" {
		return fmt.Errorf("tenant_id, table_id and user_id are required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO table_permissions (permission_id, tenant_id, table_id, user_id, can_read, can_edit, can_delete, can_create)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, table_id, user_id)
		 DO UPDATE SET can_read = EXCLUDED.can_read, can_edit = EXCLUDED.can_edit,
		               can_delete = EXCLUDED.can_delete, can_create = EXCLUDED.can_create`,
		uuid.NewString(), p.TenantID, p.TableID, p.UserID, p.CanRead, p.CanEdit, p.CanDelete, p.CanCreate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert table permission: %w", err)
	}

	return nil
}

// DeleteTablePermission 删除某用户在某表上的权限行
func (r *PostgresPermissionsRepository) DeleteTablePermission(ctx context.Context, tenantID, tableID, userID string) error {
	if tenantID == "" || tableID == "" || userID == "" {
		return fmt.Errorf("tenant_id, table_id and user_id are required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM table_permissions WHERE tenant_id = $1 AND table_id = $2 AND user_id = $3`,
		tenantID, tableID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete table permission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("table permission", tableID)
	}

	return nil
}

// GetColumnPermission 获取某列的权限行
// 没有权限行时返回NotFound，上层按可读可编辑的缺省处理
func (r *PostgresPermissionsRepository) GetColumnPermission(ctx context.Context, tenantID, columnID string) (*domain.ColumnPermission, error) {
	if tenantID == "" || columnID == "" {
		return nil, fmt.Errorf("tenant_id and column_id are required")
	}

	var p domain.ColumnPermission
	err := r.db.QueryRowContext(ctx,
		`SELECT permission_id::text, tenant_id::text, table_id::text, column_id::text, can_read, can_edit
		 FROM column_permissions
		 WHERE tenant_id = $1 AND column_id = $2`,
		tenantID, columnID,
	).Scan(&p.PermissionID, &p.TenantID, &p.TableID, &p.ColumnID, &p.CanRead, &p.CanEdit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("column permission", columnID)
		}
		return nil, fmt.Errorf("failed to get column permission: %w", err)
	}

	return &p, nil
}

// ListColumnPermissions 查询某表全部列的权限行
func (r *PostgresPermissionsRepository) ListColumnPermissions(ctx context.Context, tenantID, tableID string) ([]*domain.ColumnPermission, error) {
	if tenantID == "" || tableID == "" {
		return nil, fmt.Errorf("tenant_id and table_id are required")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT permission_id::text, tenant_id::text, table_id::text, column_id::text, can_read, can_edit
		 FROM column_permissions
		 WHERE tenant_id = $1 AND table_id = $2
		 ORDER BY column_id`,
		tenantID, tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list column permissions: %w", err)
	}
	defer rows.Close()

	permissions := []*domain.ColumnPermission{}
	for rows.Next() {
		var p domain.ColumnPermission
		if err := rows.Scan(&p.PermissionID, &p.TenantID, &p.TableID, &p.ColumnID, &p.CanRead, &p.CanEdit); err != nil {
			return nil, fmt.Errorf("failed to scan column permission: %w", err)
		}
		permissions = append(permissions, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate column permissions: %w", err)
	}

	return permissions, nil
}

// UpsertColumnPermission 写入或覆盖某列的权限行
func (r *PostgresPermissionsRepository) UpsertColumnPermission(ctx context.Context, p *domain.ColumnPermission) error {
	if p == nil {
		return fmt.Errorf("permission is required")
	}
	if p.TenantID == "" || p.TableID == "" || p.ColumnID == "" {
		return fmt.Errorf("tenant_id, table_id and column_id are required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO column_permissions (permission_id, tenant_id, table_id, column_id, can_read, can_edit)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, column_id)
		 DO UPDATE SET can_read = EXCLUDED.can_read, can_edit = EXCLUDED.can_edit`,
		uuid.NewString(), p.TenantID, p.TableID, p.ColumnID, p.CanRead, p.CanEdit,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert column permission: %w", err)
	}

	return nil
}
