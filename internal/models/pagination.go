package models

// Pagination 列表响应的分页元数据
type Pagination struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// NewPagination 构造分页元数据（page/size已在Service层归一）
func NewPagination(page, size, total int) Pagination {
	return Pagination{Page: page, Size: size, Total: total}
}
