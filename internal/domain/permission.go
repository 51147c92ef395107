package domain

// Role 租户内角色
// ADMIN对租户内一切表/列的一切动作无条件放行；
// VIEWER被拒绝一切写动作（硬上限，存储的权限行不起作用）。
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember || r == RoleViewer
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) IsViewer() bool { return r == RoleViewer }

// Action 权限动作
type Action string

const (
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionCreate Action = "create"
)

func (a Action) IsValid() bool {
	return a == ActionRead || a == ActionEdit || a == ActionDelete || a == ActionCreate
}

// IsMutating 写动作（VIEWER的硬上限作用于这些）
func (a Action) IsMutating() bool {
	return a == ActionEdit || a == ActionDelete || a == ActionCreate
}

// Principal 已认证主体
// 认证/会话不在engine范围内，由上游网关解析后传入。
type Principal struct {
	UserID   string
	TenantID string
	Role     Role
}

// TablePermission 表级权限（对应 table_permissions 表）
// 非admin主体没有对应行即无任何访问（absence ⇒ deny）。
type TablePermission struct {
	PermissionID string `db:"permission_id"`
	TenantID     string `db:"tenant_id"`
	TableID      string `db:"table_id"`
	UserID       string `db:"user_id"`

	CanRead   bool `db:"can_read"`
	CanEdit   bool `db:"can_edit"`
	CanDelete bool `db:"can_delete"`
	CanCreate bool `db:"can_create"`
}

// Allows 表级标志位是否放行该动作
func (p TablePermission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionCreate:
		return p.CanCreate
	default:
		return false
	}
}

func (p TablePermission) ToJSON() map[string]any {
	return map[string]any{
		"tableId":   p.TableID,
		"userId":    p.UserID,
		"canRead":   p.CanRead,
		"canEdit":   p.CanEdit,
		"canDelete": p.CanDelete,
		"canCreate": p.CanCreate,
	}
}

// ColumnPermission 列级权限（对应 column_permissions 表）
// 只在表级权限之上进一步收紧（read/edit），不是替代授权：
// 列级行缺失时即使表级放行也拒绝。
type ColumnPermission struct {
	PermissionID string `db:"permission_id"`
	TenantID     string `db:"tenant_id"`
	TableID      string `db:"table_id"`
	ColumnID     string `db:"column_id"`

	CanRead bool `db:"can_read"`
	CanEdit bool `db:"can_edit"`
}

// Allows 列级标志位是否放行该动作（仅read/edit有列级粒度）
func (p ColumnPermission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionEdit:
		return p.CanEdit
	default:
		return true
	}
}

func (p ColumnPermission) ToJSON() map[string]any {
	return map[string]any{
		"tableId":  p.TableID,
		"columnId": p.ColumnID,
		"canRead":  p.CanRead,
		"canEdit":  p.CanEdit,
	}
}
