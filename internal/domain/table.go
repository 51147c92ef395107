package domain

import "time"

// Table 用户自定义表（对应 data_tables 表）
// 属于唯一的workspace；列和行挂在它下面。
type Table struct {
	TableID     string `db:"table_id"`
	TenantID    string `db:"tenant_id"`
	WorkspaceID string `db:"workspace_id"`
	TableName   string `db:"table_name"`

	IsPublic bool `db:"is_public"`

	// 系统生成表的保护标记（如billing模块的表）：
	// 受保护的表不允许通过catalog改名/删除/改列类型。
	IsProtected   bool   `db:"is_protected"`
	ProtectedType string `db:"protected_type"` // nullable

	CreatedAt time.Time `db:"created_at"`
}

func (t Table) ToJSON() map[string]any {
	m := map[string]any{
		"id":          t.TableID,
		"name":        t.TableName,
		"workspaceId": t.WorkspaceID,
		"isPublic":    t.IsPublic,
		"isProtected": t.IsProtected,
		"createdAt":   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.ProtectedType != "" {
		m["protectedType"] = t.ProtectedType
	}
	return m
}
