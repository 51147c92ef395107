package domain

import "fmt"

// 引擎错误分类：校验 / 冲突 / 引用完整性 / 权限 / 不存在。
// Repository和Service返回这些类型，HTTP层用 errors.As 匹配并映射状态码；
// 其余错误一律按内部错误处理（记日志、对外隐藏细节）。

// ValidationError 输入不合法（结构错误、缺少必填、类型不匹配）
type ValidationError struct {
	Field   string // 出错的列名/字段名（可为空）
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError 唯一约束冲突（重复值）
type ConflictError struct {
	Column  string // 冲突的列名
	Value   string // 冲突的值（规范化后）
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("duplicate value for unique column %q", e.Column)
}

// NewConflictError 创建唯一约束冲突错误
func NewConflictError(column, value string) *ConflictError {
	return &ConflictError{
		Column:  column,
		Value:   value,
		Message: fmt.Sprintf("duplicate value %q for unique column %q", value, column),
	}
}

// ReferenceError 引用完整性错误（reference列的值不在目标表主列中）
// 直接写入时为硬错误；批量导入时降级为warning（见导入管线）。
type ReferenceError struct {
	Column  string
	Values  []string // 未解析的候选值
	Message string
}

func (e *ReferenceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unresolved reference values %v for column %q", e.Values, e.Column)
}

// NewReferenceError 创建引用完整性错误
func NewReferenceError(column string, values []string) *ReferenceError {
	return &ReferenceError{
		Column:  column,
		Values:  values,
		Message: fmt.Sprintf("unresolved reference values %v for column %q", values, column),
	}
}

// PermissionError 权限拒绝（不重试，原样返回给调用方）
type PermissionError struct {
	Action string // read/edit/delete/create
	Scope  string // 表名或列名
}

func (e *PermissionError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("permission denied: %s on %s", e.Action, e.Scope)
	}
	return fmt.Sprintf("permission denied: %s", e.Action)
}

// NewPermissionError 创建权限错误
func NewPermissionError(action, scope string) *PermissionError {
	return &PermissionError{Action: action, Scope: scope}
}

// NotFoundError 资源不存在
// 注意：跨租户查询一律返回NotFound而不是Permission，避免泄露资源存在性。
type NotFoundError struct {
	Resource string // table/column/row/cell/tenant
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// NewNotFoundError 创建不存在错误
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
