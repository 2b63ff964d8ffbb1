package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
)

var grantRoles = []string{
	string(model.RoleMasterAdmin),
	string(model.RoleAdmin),
	string(model.RoleStaff),
}

// GetTenantByID retrieves a tenant by ID
func (s *Store) GetTenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	query := `
		SELECT id, name, subdomain, owner_id, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	tenant := &model.Tenant{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.OwnerID,
		&tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", id, err)
	}
	return tenant, nil
}

// ListRoleGrants returns every recognised role grant held by a user.
func (s *Store) ListRoleGrants(ctx context.Context, userID uuid.UUID) ([]model.RoleGrant, error) {
	query := `
		SELECT user_id, role, tenant_id
		FROM user_roles
		WHERE user_id = $1 AND role = ANY($2)
	`
	rows, err := s.db.QueryContext(ctx, query, userID, pq.Array(grantRoles))
	if err != nil {
		return nil, fmt.Errorf("failed to load role grants: %w", err)
	}
	defer rows.Close()

	var grants []model.RoleGrant
	for rows.Next() {
		var g model.RoleGrant
		var role string
		if err := rows.Scan(&g.UserID, &role, &g.TenantID); err != nil {
			return nil, fmt.Errorf("failed to scan role grant: %w", err)
		}
		g.Role = model.Role(role)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role grants: %w", err)
	}
	return grants, nil
}
