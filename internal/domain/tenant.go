package domain

import (
	"encoding/json"
	"time"
)

// Tenant 租户领域模型（对应 tenants 表）
// 租户是数据隔离边界：所有engine数据按tenant_id分区，跨租户不共享行。
type Tenant struct {
	// 主键
	TenantID string `db:"tenant_id"` // UUID, PRIMARY KEY

	// 基本信息
	TenantName string `db:"tenant_name"` // VARCHAR(255), NOT NULL
	Domain     string `db:"domain"`      // VARCHAR(255), UNIQUE, nullable
	Email      string `db:"email"`       // VARCHAR(255), nullable

	// 状态
	Status string `db:"status"` // VARCHAR(50), DEFAULT 'active' (active/suspended/deleted)

	// 扩展配置
	Metadata json.RawMessage `db:"metadata"` // JSONB, nullable

	CreatedAt time.Time `db:"created_at"`
}

func (t Tenant) ToJSON() map[string]any {
	m := map[string]any{
		"id":     t.TenantID,
		"name":   t.TenantName,
		"status": t.Status,
	}
	if t.Domain != "" {
		m["domain"] = t.Domain
	}
	if t.Email != "" {
		m["email"] = t.Email
	}
	if len(t.Metadata) > 0 {
		m["metadata"] = t.Metadata
	}
	return m
}
