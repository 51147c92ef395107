package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/repository"

	"go.uber.org/zap"
)

// TenantService 租户开通与花名册维护
type TenantService struct {
	tenantRepo repository.TenantsRepository
	logger     *zap.Logger
}

// NewTenantService 创建租户服务
func NewTenantService(tenantRepo repository.TenantsRepository, logger *zap.Logger) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		logger:     logger,
	}
}

// CreateTenantRequest 开通租户请求
type CreateTenantRequest struct {
	TenantName string
	Domain     string
	Email      string
	Metadata   json.RawMessage
}

// CreateTenantResponse 开通租户响应
type CreateTenantResponse struct {
	TenantID string `json:"id"`
}

// CreateTenant 开通租户
// 默认workspace在同一事务里一并建好，开通完即可建表
func (s *TenantService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*CreateTenantResponse, error) {
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return nil, domain.NewValidationError("tenantName", "tenant name is required")
	}

	tenantID, err := s.tenantRepo.CreateTenant(ctx, &domain.Tenant{
		TenantName: name,
		Domain:     strings.TrimSpace(req.Domain),
		Email:      strings.TrimSpace(req.Email),
		Status:     "active",
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tenant created",
		zap.String("tenant_id", tenantID),
		zap.String("tenant_name", name),
	)
	return &CreateTenantResponse{TenantID: tenantID}, nil
}

// GetTenantResponse 租户详情响应（含默认workspace和花名册）
type GetTenantResponse struct {
	Tenant    map[string]any   `json:"tenant"`
	Workspace map[string]any   `json:"workspace"`
	Users     []map[string]any `json:"users"`
}

// GetTenant 查询租户详情
func (s *TenantService) GetTenant(ctx context.Context, tenantID string) (*GetTenantResponse, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	tenant, err := s.tenantRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	workspace, err := s.tenantRepo.GetDefaultWorkspace(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	users, err := s.tenantRepo.ListTenantUsers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	userItems := make([]map[string]any, 0, len(users))
	for _, user := range users {
		userItems = append(userItems, user.ToJSON())
	}
	return &GetTenantResponse{
		Tenant:    tenant.ToJSON(),
		Workspace: workspace.ToJSON(),
		Users:     userItems,
	}, nil
}

// UpsertTenantUserRequest 写入花名册成员请求
type UpsertTenantUserRequest struct {
	TenantID string
	UserID   string
	Nickname string
	Email    string
	Role     string
	Status   string
}

// UpsertTenantUser 写入或覆盖花名册成员
// 之后新建的表fan-out会覆盖到该成员；已存在的表需要管理端单独授权
func (s *TenantService) UpsertTenantUser(ctx context.Context, req UpsertTenantUserRequest) (map[string]any, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = string(domain.RoleMember)
	}
	if !domain.Role(role).IsValid() {
		return nil, domain.NewValidationError("role", fmt.Sprintf("invalid role: %s", req.Role))
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = "active"
	}

	user := &domain.TenantUser{
		UserID:   req.UserID,
		TenantID: req.TenantID,
		Nickname: strings.TrimSpace(req.Nickname),
		Email:    strings.TrimSpace(req.Email),
		Role:     role,
		Status:   status,
	}
	if err := s.tenantRepo.UpsertTenantUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("tenant user upserted",
		zap.String("tenant_id", req.TenantID),
		zap.String("user_id", user.UserID),
		zap.String("role", role),
	)
	return user.ToJSON(), nil
}
