package service

import (
	"context"
	"testing"
	"time"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/planlimit"
	"gridbase-engine/internal/repository"
	"gridbase-engine/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// engineFixture 单元测试共用的全内存服务栈
// 六个repository接口全部由同一个MemoryEngine实现，数据在服务之间天然一致
type engineFixture struct {
	engine   *repository.MemoryEngine
	catalog  *CatalogService
	perms    *PermissionService
	resolver *ReferenceResolver
	cells    *CellService
	imports  *ImportService
	widgets  *WidgetService
	tenants  *TenantService

	tenantID string
	admin    domain.Principal
}

// newEngineFixture 搭建内存服务栈并预置一个租户和两个成员
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	engine := repository.NewMemoryEngine()
	logger := zap.NewNop()
	cache := store.NewTagCache(store.NewMemoryKV(), time.Minute, logger)
	checker := &planlimit.StaticChecker{}

	ctx := context.Background()
	tenantID, err := engine.CreateTenant(ctx, &domain.Tenant{
		TenantName: "Test Engine Tenant",
		Domain:     "engine-test.local",
	})
	require.NoError(t, err)

	for _, user := range []domain.TenantUser{
		{UserID: "user-admin", TenantID: tenantID, Nickname: "Admin", Role: "ADMIN"},
		{UserID: "user-member", TenantID: tenantID, Nickname: "Member", Role: "MEMBER"},
	} {
		u := user
		require.NoError(t, engine.UpsertTenantUser(ctx, &u))
	}

	perms := NewPermissionService(engine, nil, logger)
	resolver := NewReferenceResolver(engine, engine, logger)
	catalog := NewCatalogService(engine, engine, engine, cache, checker, nil, logger)
	cells := NewCellService(engine, engine, engine, catalog, perms, resolver, nil, logger)
	imports := NewImportService(engine, engine, catalog, perms, resolver, nil, logger, 0, 0, 0)
	widgets := NewWidgetService(engine, catalog, perms, logger)
	tenants := NewTenantService(engine, logger)

	return &engineFixture{
		engine:   engine,
		catalog:  catalog,
		perms:    perms,
		resolver: resolver,
		cells:    cells,
		imports:  imports,
		widgets:  widgets,
		tenants:  tenants,
		tenantID: tenantID,
		admin:    domain.Principal{UserID: "user-admin", TenantID: tenantID, Role: domain.RoleAdmin},
	}
}

// principal 构造同租户内指定角色的主体
func (f *engineFixture) principal(userID string, role domain.Role) domain.Principal {
	return domain.Principal{UserID: userID, TenantID: f.tenantID, Role: role}
}

// createTable 以admin身份建表
func (f *engineFixture) createTable(t *testing.T, name string) string {
	t.Helper()
	resp, err := f.catalog.CreateTable(context.Background(), CreateTableRequest{
		Principal: f.admin,
		TableName: name,
	})
	require.NoError(t, err)
	return resp.TableID
}

// createColumn 以admin身份建列
func (f *engineFixture) createColumn(t *testing.T, req CreateColumnRequest) string {
	t.Helper()
	req.Principal = f.admin
	resp, err := f.catalog.CreateColumn(context.Background(), req)
	require.NoError(t, err)
	return resp.ColumnID
}

// createRow 以admin身份建行
func (f *engineFixture) createRow(t *testing.T, tableID string, cells []CellInput) string {
	t.Helper()
	resp, err := f.cells.CreateRow(context.Background(), CreateRowRequest{
		Principal: f.admin,
		TableID:   tableID,
		Cells:     cells,
	})
	require.NoError(t, err)
	return resp.RowID
}
