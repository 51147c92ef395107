package domain

// TenantUser 租户成员（对应 tenant_users 表）
// 新建Table时的权限fan-out以这张花名册为目标。
type TenantUser struct {
	UserID   string `db:"user_id"`
	TenantID string `db:"tenant_id"`
	Nickname string `db:"nickname"`
	Email    string `db:"email"`
	Role     string `db:"role"`   // ADMIN / MEMBER / VIEWER
	Status   string `db:"status"` // active / suspended
}

func (u TenantUser) ToJSON() map[string]any {
	return map[string]any{
		"userId":   u.UserID,
		"nickname": u.Nickname,
		"email":    u.Email,
		"role":     u.Role,
		"status":   u.Status,
	}
}
