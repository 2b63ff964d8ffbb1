package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
)

type fakeGrants struct {
	grants map[uuid.UUID][]model.RoleGrant
	err    error
	calls  int
}

func (f *fakeGrants) ListRoleGrants(ctx context.Context, userID uuid.UUID) ([]model.RoleGrant, error) {
	f.calls++
	return f.grants[userID], f.err
}

type fakeTenants struct {
	tenants map[uuid.UUID]*model.Tenant
	err     error
	calls   int
}

func (f *fakeTenants) GetTenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	f.calls++
	return f.tenants[id], f.err
}

func scoped(id uuid.UUID) *uuid.UUID { return &id }

func TestAuthorize_MasterAdminAnyTenant(t *testing.T) {
	caller := uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleMasterAdmin}},
	}}
	tenants := &fakeTenants{}
	a := NewAuthorizer(grants, tenants)

	d, err := a.Authorize(context.Background(), caller, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, GrantedMasterAdmin, d)
	assert.Equal(t, 0, tenants.calls, "ownership lookup should be skipped")
}

func TestAuthorize_ScopedAdmin(t *testing.T) {
	caller, tenantA, tenantB := uuid.New(), uuid.New(), uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleAdmin, TenantID: scoped(tenantA)}},
	}}
	tenants := &fakeTenants{tenants: map[uuid.UUID]*model.Tenant{
		tenantB: {ID: tenantB, OwnerID: scoped(uuid.New())},
	}}
	a := NewAuthorizer(grants, tenants)

	d, err := a.Authorize(context.Background(), caller, tenantA)
	require.NoError(t, err)
	assert.Equal(t, GrantedTenantRole, d)

	_, err = a.Authorize(context.Background(), caller, tenantB)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestAuthorize_ScopedAdminOwningOtherTenant(t *testing.T) {
	caller, tenantA, tenantB := uuid.New(), uuid.New(), uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleAdmin, TenantID: scoped(tenantA)}},
	}}
	tenants := &fakeTenants{tenants: map[uuid.UUID]*model.Tenant{
		tenantB: {ID: tenantB, OwnerID: scoped(caller)},
	}}
	a := NewAuthorizer(grants, tenants)

	d, err := a.Authorize(context.Background(), caller, tenantB)
	require.NoError(t, err)
	assert.Equal(t, GrantedOwner, d)
}

func TestAuthorize_StaffGrant(t *testing.T) {
	caller, tenant := uuid.New(), uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleStaff, TenantID: scoped(tenant)}},
	}}
	a := NewAuthorizer(grants, &fakeTenants{})

	d, err := a.Authorize(context.Background(), caller, tenant)
	require.NoError(t, err)
	assert.Equal(t, GrantedTenantRole, d)
}

func TestAuthorize_UnscopedAdminGrantDoesNotMatch(t *testing.T) {
	caller, tenant := uuid.New(), uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleAdmin}},
	}}
	a := NewAuthorizer(grants, &fakeTenants{})

	_, err := a.Authorize(context.Background(), caller, tenant)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestAuthorize_UnrelatedUserForbidden(t *testing.T) {
	tenant := uuid.New()
	tenants := &fakeTenants{tenants: map[uuid.UUID]*model.Tenant{
		tenant: {ID: tenant, OwnerID: scoped(uuid.New())},
	}}
	a := NewAuthorizer(&fakeGrants{}, tenants)

	_, err := a.Authorize(context.Background(), uuid.New(), tenant)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestAuthorize_MissingTenantForbidden(t *testing.T) {
	a := NewAuthorizer(&fakeGrants{}, &fakeTenants{})

	_, err := a.Authorize(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestAuthorize_StoreFailureIsUpstream(t *testing.T) {
	a := NewAuthorizer(&fakeGrants{err: errors.New("connection refused")}, &fakeTenants{})

	_, err := a.Authorize(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, "connection refused", MessageOf(err))
}

func TestAuthorize_RereadsOnEveryCall(t *testing.T) {
	caller, tenant := uuid.New(), uuid.New()
	grants := &fakeGrants{grants: map[uuid.UUID][]model.RoleGrant{
		caller: {{UserID: caller, Role: model.RoleMasterAdmin}},
	}}
	a := NewAuthorizer(grants, &fakeTenants{})

	for i := 0; i < 3; i++ {
		_, err := a.Authorize(context.Background(), caller, tenant)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, grants.calls)
}
