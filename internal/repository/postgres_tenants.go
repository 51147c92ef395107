package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
)

// PostgresTenantsRepository 租户Repository实现
// 建租户时同事务创建默认workspace，保证租户总有落表的地方
type PostgresTenantsRepository struct {
	db *sql.DB
}

// NewPostgresTenantsRepository 创建租户Repository
func NewPostgresTenantsRepository(db *sql.DB) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db}
}

// 确保实现了接口
var _ TenantsRepository = (*PostgresTenantsRepository)(nil)

// CreateTenant 创建租户及其默认workspace（单事务）
func (r *PostgresTenantsRepository) CreateTenant(ctx context.Context, tenant *domain.Tenant) (string, error) {
	if tenant == nil {
		return "", fmt.Errorf("tenant is required")
	}
	if tenant.TenantName == "" {
		return "", fmt.Errorf("tenant_name is required")
	}

	status := tenant.Status
	if status == "" {
		status = "active"
	}
	metadataArg := "{}"
	if len(tenant.Metadata) > 0 {
		metadataArg = string(tenant.Metadata)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tenantID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tenants (tenant_id, tenant_name, domain, email, status, metadata)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6::jsonb)`,
		tenantID, tenant.TenantName, tenant.Domain, tenant.Email, status, metadataArg,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return "", domain.NewConflictError("tenant_name", tenant.TenantName)
		}
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspaces (workspace_id, tenant_id, workspace_name, is_default)
		 VALUES ($1, $2, $3, TRUE)`,
		uuid.NewString(), tenantID, "Default",
	)
	if err != nil {
		return "", fmt.Errorf("failed to create default workspace: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tenantID, nil
}

// GetTenant 根据tenant_id获取租户信息
func (r *PostgresTenantsRepository) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT
			tenant_id::text,
			tenant_name,
			COALESCE(domain, '') as domain,
			COALESCE(email, '') as email,
			COALESCE(status, 'active') as status,
			COALESCE(metadata, '{}'::jsonb) as metadata,
			created_at
		FROM tenants
		WHERE tenant_id = $1
	`

	var tenant domain.Tenant
	var metadataRaw json.RawMessage
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&tenant.TenantID,
		&tenant.TenantName,
		&tenant.Domain,
		&tenant.Email,
		&tenant.Status,
		&metadataRaw,
		&tenant.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("tenant", tenantID)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	tenant.Metadata = metadataRaw
	return &tenant, nil
}

// GetDefaultWorkspace 获取租户的默认workspace
func (r *PostgresTenantsRepository) GetDefaultWorkspace(ctx context.Context, tenantID string) (*domain.Workspace, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	var ws domain.Workspace
	err := r.db.QueryRowContext(ctx,
		`SELECT workspace_id::text, tenant_id::text, workspace_name, is_default, created_at
		 FROM workspaces
		 WHERE tenant_id = $1 AND is_default = TRUE
		 ORDER BY created_at
		 LIMIT 1`,
		tenantID,
	).Scan(&ws.WorkspaceID, &ws.TenantID, &ws.WorkspaceName, &ws.IsDefault, &ws.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("workspace", tenantID)
		}
		return nil, fmt.Errorf("failed to get default workspace: %w", err)
	}

	return &ws, nil
}

// ListTenantUsers 查询租户的成员花名册（建表fan-out权限用）
func (r *PostgresTenantsRepository) ListTenantUsers(ctx context.Context, tenantID string) ([]domain.TenantUser, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id::text, tenant_id::text,
		        COALESCE(nickname, '') as nickname,
		        COALESCE(email, '') as email,
		        COALESCE(role, 'MEMBER') as role,
		        COALESCE(status, 'active') as status
		 FROM tenant_users
		 WHERE tenant_id = $1
		 ORDER BY nickname, user_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant users: %w", err)
	}
	defer rows.Close()

	users := []domain.TenantUser{}
	for rows.Next() {
		var user domain.TenantUser
		if err := rows.Scan(&user.UserID, &user.TenantID, &user.Nickname, &user.Email, &user.Role, &user.Status); err != nil {
			return nil, fmt.Errorf("failed to scan tenant user: %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenant users: %w", err)
	}

	return users, nil
}

// UpsertTenantUser 写入或更新租户成员
func (r *PostgresTenantsRepository) UpsertTenantUser(ctx context.Context, user *domain.TenantUser) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if user.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}

	userID := user.UserID
	if userID == "" {
		userID = uuid.NewString()
		user.UserID = userID
	}
	role := user.Role
	if role == "" {
		role = string(domain.RoleMember)
	}
	status := user.Status
	if status == "" {
		status = "active"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_users (user_id, tenant_id, nickname, email, role, status)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		 ON CONFLICT (user_id)
		 DO UPDATE SET nickname = EXCLUDED.nickname, email = EXCLUDED.email,
		               role = EXCLUDED.role, status = EXCLUDED.status`,
		userID, user.TenantID, user.Nickname, user.Email, role, status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant user: %w", err)
	}

	return nil
}
