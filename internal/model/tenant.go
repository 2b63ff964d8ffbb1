package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents the tenants table
type Tenant struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Subdomain string     `json:"subdomain"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Role is the role column of user_roles
type Role string

const (
	RoleMasterAdmin Role = "master_admin"
	RoleAdmin       Role = "admin"
	RoleStaff       Role = "staff"
)

// RoleGrant represents one user_roles row. TenantID is nil for platform-wide grants.
type RoleGrant struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     Role       `json:"role"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
}

// BillingCustomer represents the tenant_billing_customers table
type BillingCustomer struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	CreatedAt          time.Time `json:"created_at"`
}
