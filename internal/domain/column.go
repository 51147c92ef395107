package domain

import "time"

// ColumnType 列类型常量
type ColumnType string

const (
	ColumnTypeString      ColumnType = "string"
	ColumnTypeText        ColumnType = "text"
	ColumnTypeEmail       ColumnType = "email"
	ColumnTypeURL         ColumnType = "url"
	ColumnTypeNumber      ColumnType = "number"
	ColumnTypeInteger     ColumnType = "integer"
	ColumnTypeDecimal     ColumnType = "decimal"
	ColumnTypeBoolean     ColumnType = "boolean"
	ColumnTypeDate        ColumnType = "date"
	ColumnTypeDatetime    ColumnType = "datetime"
	ColumnTypeReference   ColumnType = "reference"
	ColumnTypeCustomArray ColumnType = "customArray"
)

// IsValid 判断是否为已知列类型
func (t ColumnType) IsValid() bool {
	switch t {
	case ColumnTypeString, ColumnTypeText, ColumnTypeEmail, ColumnTypeURL,
		ColumnTypeNumber, ColumnTypeInteger, ColumnTypeDecimal,
		ColumnTypeBoolean, ColumnTypeDate, ColumnTypeDatetime,
		ColumnTypeReference, ColumnTypeCustomArray:
		return true
	}
	return false
}

// IsNumeric 数字类列（SUM/AVG只对这些列合法）
func (t ColumnType) IsNumeric() bool {
	return t == ColumnTypeNumber || t == ColumnTypeInteger || t == ColumnTypeDecimal
}

// IsTextual 文本类列（MIN/MAX对数字和文本合法，对日期不合法）
func (t ColumnType) IsTextual() bool {
	return t == ColumnTypeString || t == ColumnTypeText || t == ColumnTypeEmail || t == ColumnTypeURL
}

// IsDate 日期类列
func (t ColumnType) IsDate() bool {
	return t == ColumnTypeDate || t == ColumnTypeDatetime
}

// Column 列定义（对应 data_columns 表）
// position决定行内列顺序；reference_table_id仅在type=reference时设置。
type Column struct {
	ColumnID   string `db:"column_id"`
	TenantID   string `db:"tenant_id"`
	TableID    string `db:"table_id"`
	ColumnName string `db:"column_name"`
	ColumnType string `db:"column_type"`

	Required      bool `db:"required"`
	Primary       bool `db:"is_primary"`
	Unique        bool `db:"is_unique"`
	AutoIncrement bool `db:"auto_increment"`
	Position      int  `db:"position"`

	ReferenceTableID string   `db:"reference_table_id"` // UUID, nullable；""表示未设置
	CustomOptions    []string `db:"custom_options"`     // JSONB, customArray的允许值集合
	SemanticType     string   `db:"semantic_type"`      // nullable；展示提示（如 "currency"）

	CreatedAt time.Time `db:"created_at"`
}

// Type 列类型（强类型视图）
func (c Column) Type() ColumnType {
	return ColumnType(c.ColumnType)
}

func (c Column) ToJSON() map[string]any {
	m := map[string]any{
		"id":            c.ColumnID,
		"name":          c.ColumnName,
		"type":          c.ColumnType,
		"required":      c.Required,
		"primary":       c.Primary,
		"unique":        c.Unique,
		"autoIncrement": c.AutoIncrement,
		"order":         c.Position,
	}
	if c.ReferenceTableID != "" {
		m["referenceTableId"] = c.ReferenceTableID
	}
	if c.CustomOptions != nil {
		m["customOptions"] = c.CustomOptions
	}
	if c.SemanticType != "" {
		m["semanticType"] = c.SemanticType
	}
	return m
}

// CurrencyCodes semanticType="currency"时写入customOptions的固定货币码表（ISO 4217）
var CurrencyCodes = []string{
	"USD", "EUR", "GBP", "JPY", "CNY", "CHF", "CAD", "AUD", "NZD",
	"SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "RON", "BGN", "TRY",
	"INR", "BRL", "MXN", "ZAR", "SGD", "HKD", "KRW", "THB", "IDR",
	"MYR", "PHP", "VND", "AED", "SAR", "ILS", "UAH",
}
