package domain

import "time"

// Cell 单元格（对应 data_cells 表）
// 每个(row, column)至多一条（UNIQUE约束）；value须满足列类型约束，
// reference列的值还须能解析到目标表的主列值。
type Cell struct {
	CellID   string `db:"cell_id"`
	TenantID string `db:"tenant_id"`
	TableID  string `db:"table_id"`
	RowID    string `db:"row_id"`
	ColumnID string `db:"column_id"`
	Value    Value  `db:"value"` // JSONB

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (c Cell) ToJSON() map[string]any {
	return map[string]any{
		"id":       c.CellID,
		"rowId":    c.RowID,
		"columnId": c.ColumnID,
		"value":    c.Value.AsAny(),
	}
}
