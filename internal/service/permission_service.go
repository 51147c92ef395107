package service

import (
	"context"
	"errors"
	"fmt"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/metrics"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// PermissionService 权限求值服务
// 求值顺序：ADMIN放行 → VIEWER拒绝所有写操作 → 表级权限行（缺行即拒绝）→ 列级进一步收紧
type PermissionService struct {
	permRepo repository.PermissionsRepository
	metrics  *metrics.HTTPMetrics
	logger   *zap.Logger
}

// NewPermissionService 创建权限求值服务
func NewPermissionService(permRepo repository.PermissionsRepository, m *metrics.HTTPMetrics, logger *zap.Logger) *PermissionService {
	return &PermissionService{
		permRepo: permRepo,
		metrics:  m,
		logger:   logger,
	}
}

// Evaluate 求值principal对表/列执行action的授权
// columnID为空表示表级求值；列级只对read/edit有意义
func (s *PermissionService) Evaluate(ctx context.Context, principal domain.Principal, tableID, columnID string, action domain.Action) (bool, error) {
	if !action.IsValid() {
		return false, fmt.Errorf("invalid action: %s", action)
	}
	if tableID == "" {
		return false, fmt.Errorf("table_id is required")
	}

	// ADMIN无条件放行
	if principal.Role.IsAdmin() {
		return true, nil
	}

	// VIEWER是硬上限：写操作一律拒绝，存储里的flag再宽也没用
	if principal.Role.IsViewer() && action.IsMutating() {
		return false, nil
	}

	perm, err := s.permRepo.GetTablePermission(ctx, principal.TenantID, tableID, principal.UserID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			// 缺表级权限行即无权限
			return false, nil
		}
		return false, fmt.Errorf("failed to get table permission: %w", err)
	}
	if !perm.Allows(action) {
		return false, nil
	}

	// 列级权限只收紧不放宽：缺行即拒绝，即使表级flag为true
	if columnID != "" && (action == domain.ActionRead || action == domain.ActionEdit) {
		colPerm, err := s.permRepo.GetColumnPermission(ctx, principal.TenantID, columnID)
		if err != nil {
			var notFound *domain.NotFoundError
			if errors.As(err, &notFound) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get column permission: %w", err)
		}
		if !colPerm.Allows(action) {
			return false, nil
		}
	}

	return true, nil
}

// ListTablePermissions 列出表的全部表级权限行（仅admin）
func (s *PermissionService) ListTablePermissions(ctx context.Context, principal domain.Principal, tenantID, tableID string) ([]map[string]any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if tableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}

	perms, err := s.permRepo.ListTablePermissions(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	result := make([]map[string]any, 0, len(perms))
	for _, perm := range perms {
		result = append(result, perm.ToJSON())
	}
	return result, nil
}

// UpsertTablePermissionRequest 写入表级权限请求
type UpsertTablePermissionRequest struct {
	TenantID  string
	TableID   string
	UserID    string
	CanRead   bool
	CanEdit   bool
	CanDelete bool
	CanCreate bool
}

// UpsertTablePermission 写入或覆盖一条表级权限行（仅admin）
func (s *PermissionService) UpsertTablePermission(ctx context.Context, principal domain.Principal, req *UpsertTablePermissionRequest) (map[string]any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if req.TableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	perm := &domain.TablePermission{
		TenantID:  req.TenantID,
		TableID:   req.TableID,
		UserID:    req.UserID,
		CanRead:   req.CanRead,
		CanEdit:   req.CanEdit,
		CanDelete: req.CanDelete,
		CanCreate: req.CanCreate,
	}
	if err := s.permRepo.UpsertTablePermission(ctx, perm); err != nil {
		return nil, err
	}

	s.logger.Info("table permission upserted",
		zap.String("tenant_id", req.TenantID),
		zap.String("table_id", req.TableID),
		zap.String("user_id", req.UserID),
	)
	return perm.ToJSON(), nil
}

// DeleteTablePermission 删除一条表级权限行（仅admin），之后该用户回到absence⇒deny
func (s *PermissionService) DeleteTablePermission(ctx context.Context, principal domain.Principal, tenantID, tableID, userID string) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	if tableID == "" {
		return fmt.Errorf("table_id is required")
	}
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	if err := s.permRepo.DeleteTablePermission(ctx, tenantID, tableID, userID); err != nil {
		return err
	}
	s.logger.Info("table permission deleted",
		zap.String("tenant_id", tenantID),
		zap.String("table_id", tableID),
		zap.String("user_id", userID),
	)
	return nil
}

// ListColumnPermissions 列出表下全部列级权限行（仅admin）
func (s *PermissionService) ListColumnPermissions(ctx context.Context, principal domain.Principal, tenantID, tableID string) ([]map[string]any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if tableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}

	perms, err := s.permRepo.ListColumnPermissions(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	result := make([]map[string]any, 0, len(perms))
	for _, perm := range perms {
		result = append(result, perm.ToJSON())
	}
	return result, nil
}

// UpsertColumnPermissionRequest 写入列级权限请求
type UpsertColumnPermissionRequest struct {
	TenantID string
	TableID  string
	ColumnID string
	CanRead  bool
	CanEdit  bool
}

// UpsertColumnPermission 写入或覆盖一条列级权限行（仅admin）
func (s *PermissionService) UpsertColumnPermission(ctx context.Context, principal domain.Principal, req *UpsertColumnPermissionRequest) (map[string]any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if req.TableID == "" {
		return nil, fmt.Errorf("table_id is required")
	}
	if req.ColumnID == "" {
		return nil, fmt.Errorf("column_id is required")
	}

	perm := &domain.ColumnPermission{
		TenantID: req.TenantID,
		TableID:  req.TableID,
		ColumnID: req.ColumnID,
		CanRead:  req.CanRead,
		CanEdit:  req.CanEdit,
	}
	if err := s.permRepo.UpsertColumnPermission(ctx, perm); err != nil {
		return nil, err
	}

	s.logger.Info("column permission upserted",
		zap.String("tenant_id", req.TenantID),
		zap.String("table_id", req.TableID),
		zap.String("column_id", req.ColumnID),
	)
	return perm.ToJSON(), nil
}

// Require 求值并把拒绝转成PermissionError
func (s *PermissionService) Require(ctx context.Context, principal domain.Principal, tableID, columnID string, action domain.Action) error {
	allowed, err := s.Evaluate(ctx, principal, tableID, columnID, action)
	if err != nil {
		return err
	}
	if !allowed {
		scope := "table"
		if columnID != "" {
			scope = "column"
		}
		s.metrics.PermissionDenied(string(action))
		s.logger.Info("permission denied",
			zap.String("user_id", principal.UserID),
			zap.String("table_id", tableID),
			zap.String("column_id", columnID),
			zap.String("action", string(action)),
		)
		return domain.NewPermissionError(string(action), scope)
	}
	return nil
}
