package service

import (
	"context"
	"testing"

	"gridbase-engine/internal/domain"

	"github.com/stretchr/testify/require"
)

// TestEvaluate_AdminBypass ADMIN对任何动作无条件放行，不查权限行
func TestEvaluate_AdminBypass(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")

	// 删掉admin自己的权限行之后依然放行
	require.NoError(t, f.perms.DeleteTablePermission(ctx, f.admin, f.tenantID, tableID, "user-admin"))

	for _, action := range []domain.Action{domain.ActionRead, domain.ActionEdit, domain.ActionDelete, domain.ActionCreate} {
		allowed, err := f.perms.Evaluate(ctx, f.admin, tableID, "", action)
		require.NoError(t, err)
		require.True(t, allowed, "admin should be allowed %s", action)
	}
}

// TestEvaluate_ViewerCeiling VIEWER的写动作一律拒绝，存储的权限行写得再宽也不行
func TestEvaluate_ViewerCeiling(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")

	viewer := f.principal("user-viewer", domain.RoleViewer)
	_, err := f.perms.UpsertTablePermission(ctx, f.admin, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-viewer",
		CanRead: true, CanEdit: true, CanDelete: true, CanCreate: true,
	})
	require.NoError(t, err)

	for _, action := range []domain.Action{domain.ActionEdit, domain.ActionDelete, domain.ActionCreate} {
		allowed, err := f.perms.Evaluate(ctx, viewer, tableID, "", action)
		require.NoError(t, err)
		require.False(t, allowed, "viewer must not be allowed %s", action)
	}

	allowed, err := f.perms.Evaluate(ctx, viewer, tableID, "", domain.ActionRead)
	require.NoError(t, err)
	require.True(t, allowed, "viewer read follows the stored flags")
}

// TestEvaluate_MissingTableRowDenies 非admin缺表级权限行即无任何访问
func TestEvaluate_MissingTableRowDenies(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")

	// 建表之后才入驻的成员没有fan-out行
	require.NoError(t, f.engine.UpsertTenantUser(ctx, &domain.TenantUser{
		UserID: "user-late", TenantID: f.tenantID, Nickname: "Late", Role: "MEMBER",
	}))
	late := f.principal("user-late", domain.RoleMember)

	for _, action := range []domain.Action{domain.ActionRead, domain.ActionEdit, domain.ActionDelete, domain.ActionCreate} {
		allowed, err := f.perms.Evaluate(ctx, late, tableID, "", action)
		require.NoError(t, err)
		require.False(t, allowed, "absence of a permission row must deny %s", action)
	}
}

// TestEvaluate_TableFlags 表级flag逐动作生效
func TestEvaluate_TableFlags(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")
	member := f.principal("user-member", domain.RoleMember)

	_, err := f.perms.UpsertTablePermission(ctx, f.admin, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-member",
		CanRead: true, CanEdit: false, CanDelete: false, CanCreate: true,
	})
	require.NoError(t, err)

	want := map[domain.Action]bool{
		domain.ActionRead:   true,
		domain.ActionEdit:   false,
		domain.ActionDelete: false,
		domain.ActionCreate: true,
	}
	for action, expected := range want {
		allowed, err := f.perms.Evaluate(ctx, member, tableID, "", action)
		require.NoError(t, err)
		require.Equal(t, expected, allowed, "action %s", action)
	}
}

// TestEvaluate_ColumnRestricts 列级只收紧不放宽：flag=false拒绝，缺列级行也拒绝
func TestEvaluate_ColumnRestricts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")
	columnID := f.createColumn(t, CreateColumnRequest{TableID: tableID, ColumnName: "Amount", ColumnType: "number"})
	member := f.principal("user-member", domain.RoleMember)

	// 表级read放行（fan-out全true），列级read收紧
	_, err := f.perms.UpsertColumnPermission(ctx, f.admin, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: tableID, ColumnID: columnID, CanRead: false, CanEdit: true,
	})
	require.NoError(t, err)

	allowed, err := f.perms.Evaluate(ctx, member, tableID, columnID, domain.ActionRead)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = f.perms.Evaluate(ctx, member, tableID, columnID, domain.ActionEdit)
	require.NoError(t, err)
	require.True(t, allowed)

	// 列级行缺失时即使表级放行也拒绝
	allowed, err = f.perms.Evaluate(ctx, member, tableID, "no-such-column", domain.ActionRead)
	require.NoError(t, err)
	require.False(t, allowed)

	// delete/create是表级动作，列级行不参与
	allowed, err = f.perms.Evaluate(ctx, member, tableID, columnID, domain.ActionDelete)
	require.NoError(t, err)
	require.True(t, allowed)
}

// TestRequire_DenialBecomesPermissionError 拒绝转成PermissionError，scope按表/列区分
func TestRequire_DenialBecomesPermissionError(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")
	viewer := f.principal("user-viewer", domain.RoleViewer)

	var permErr *domain.PermissionError
	err := f.perms.Require(ctx, viewer, tableID, "", domain.ActionEdit)
	require.ErrorAs(t, err, &permErr)
	require.Equal(t, "edit", permErr.Action)
	require.Equal(t, "table", permErr.Scope)

	err = f.perms.Require(ctx, viewer, tableID, "some-column", domain.ActionEdit)
	require.ErrorAs(t, err, &permErr)
	require.Equal(t, "column", permErr.Scope)

	require.NoError(t, f.perms.Require(ctx, f.admin, tableID, "", domain.ActionEdit))
}

// TestEvaluate_InvalidInput 非法action和缺table_id直接报错而不是拒绝
func TestEvaluate_InvalidInput(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.perms.Evaluate(ctx, f.admin, "some-table", "", domain.Action("drop"))
	require.Error(t, err)

	_, err = f.perms.Evaluate(ctx, f.admin, "", "", domain.ActionRead)
	require.Error(t, err)
}

// TestPermissionManagement_AdminGated 权限行管理面只对ADMIN开放
func TestPermissionManagement_AdminGated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")
	member := f.principal("user-member", domain.RoleMember)

	var permErr *domain.PermissionError
	_, err := f.perms.ListTablePermissions(ctx, member, f.tenantID, tableID)
	require.ErrorAs(t, err, &permErr)

	_, err = f.perms.UpsertTablePermission(ctx, member, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-member", CanRead: true,
	})
	require.ErrorAs(t, err, &permErr)

	err = f.perms.DeleteTablePermission(ctx, member, f.tenantID, tableID, "user-member")
	require.ErrorAs(t, err, &permErr)

	_, err = f.perms.ListColumnPermissions(ctx, member, f.tenantID, tableID)
	require.ErrorAs(t, err, &permErr)

	_, err = f.perms.UpsertColumnPermission(ctx, member, &UpsertColumnPermissionRequest{
		TenantID: f.tenantID, TableID: tableID, ColumnID: "col", CanRead: true,
	})
	require.ErrorAs(t, err, &permErr)
}

// TestDeleteTablePermission_RevokesAccess 删掉权限行之后该用户回到absence⇒deny
func TestDeleteTablePermission_RevokesAccess(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")
	member := f.principal("user-member", domain.RoleMember)

	allowed, err := f.perms.Evaluate(ctx, member, tableID, "", domain.ActionRead)
	require.NoError(t, err)
	require.True(t, allowed, "fan-out row should grant read")

	require.NoError(t, f.perms.DeleteTablePermission(ctx, f.admin, f.tenantID, tableID, "user-member"))

	allowed, err = f.perms.Evaluate(ctx, member, tableID, "", domain.ActionRead)
	require.NoError(t, err)
	require.False(t, allowed)
}

// TestUpsertTablePermission_Overwrite 重复写同(table, user)是覆盖不是叠加
func TestUpsertTablePermission_Overwrite(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tableID := f.createTable(t, "Orders")

	_, err := f.perms.UpsertTablePermission(ctx, f.admin, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-member",
		CanRead: true, CanEdit: true, CanDelete: true, CanCreate: true,
	})
	require.NoError(t, err)

	_, err = f.perms.UpsertTablePermission(ctx, f.admin, &UpsertTablePermissionRequest{
		TenantID: f.tenantID, TableID: tableID, UserID: "user-member", CanRead: true,
	})
	require.NoError(t, err)

	perm, err := f.engine.GetTablePermission(ctx, f.tenantID, tableID, "user-member")
	require.NoError(t, err)
	require.True(t, perm.CanRead)
	require.False(t, perm.CanEdit)
	require.False(t, perm.CanDelete)
	require.False(t, perm.CanCreate)
}
