package domain

import "time"

// Row 数据行（对应 data_rows 表）
// 除身份和创建时间外没有属性，业务数据全部在cells里。
type Row struct {
	RowID     string    `db:"row_id"`
	TenantID  string    `db:"tenant_id"`
	TableID   string    `db:"table_id"`
	CreatedAt time.Time `db:"created_at"`
}
