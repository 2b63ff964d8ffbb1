package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/monitoring"
)

type GrantReader interface {
	ListRoleGrants(ctx context.Context, userID uuid.UUID) ([]model.RoleGrant, error)
}

type TenantReader interface {
	GetTenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
}

// Decision names the path that granted access.
type Decision string

const (
	GrantedMasterAdmin Decision = "master_admin"
	GrantedTenantRole  Decision = "tenant_role"
	GrantedOwner       Decision = "owner"
)

// Authorizer decides whether a caller may act on a tenant's payment configuration.
// Every call reads grants and ownership from the database; nothing is cached.
type Authorizer struct {
	grants  GrantReader
	tenants TenantReader
}

func NewAuthorizer(grants GrantReader, tenants TenantReader) *Authorizer {
	return &Authorizer{grants: grants, tenants: tenants}
}

// Authorize checks, in order: a master-admin grant, an admin or staff grant scoped to
// tenantID, and tenant ownership. It fails with Forbidden when none applies.
func (a *Authorizer) Authorize(ctx context.Context, callerID, tenantID uuid.UUID) (Decision, error) {
	grants, err := a.grants.ListRoleGrants(ctx, callerID)
	if err != nil {
		return "", Upstream(err)
	}

	for _, g := range grants {
		if g.Role == model.RoleMasterAdmin {
			return a.allow(GrantedMasterAdmin)
		}
	}
	for _, g := range grants {
		if (g.Role == model.RoleAdmin || g.Role == model.RoleStaff) && g.TenantID != nil && *g.TenantID == tenantID {
			return a.allow(GrantedTenantRole)
		}
	}

	tenant, err := a.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return "", Upstream(err)
	}
	if tenant != nil && tenant.OwnerID != nil && *tenant.OwnerID == callerID {
		return a.allow(GrantedOwner)
	}

	monitoring.AuthorizationDecisions.WithLabelValues("denied").Inc()
	return "", Forbidden()
}

func (a *Authorizer) allow(d Decision) (Decision, error) {
	monitoring.AuthorizationDecisions.WithLabelValues(string(d)).Inc()
	return d, nil
}
