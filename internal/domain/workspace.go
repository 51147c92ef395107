package domain

import "time"

// Workspace 表容器（对应 workspaces 表）
// 常规情况一个租户一个默认workspace；schema允许更多（企业模块表）。
type Workspace struct {
	WorkspaceID   string    `db:"workspace_id"`
	TenantID      string    `db:"tenant_id"`
	WorkspaceName string    `db:"workspace_name"`
	IsDefault     bool      `db:"is_default"`
	CreatedAt     time.Time `db:"created_at"`
}

func (w Workspace) ToJSON() map[string]any {
	return map[string]any{
		"id":        w.WorkspaceID,
		"name":      w.WorkspaceName,
		"isDefault": w.IsDefault,
	}
}
