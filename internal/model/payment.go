package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a tenant's payment configuration.
type PaymentStatus string

const (
	StatusNotConfigured PaymentStatus = "not_configured"
	StatusPending       PaymentStatus = "pending"
	StatusRestricted    PaymentStatus = "restricted"
	StatusConnected     PaymentStatus = "connected"
	StatusDisabled      PaymentStatus = "disabled"
)

// ProviderStripe is the only payment provider the platform integrates with.
const ProviderStripe = "stripe"

// TenantPaymentSettings represents the tenant_payment_settings table
type TenantPaymentSettings struct {
	TenantID           uuid.UUID     `json:"tenant_id"`
	Provider           string        `json:"provider"`
	ConnectedAccountID *string       `json:"connected_account_id"`
	Status             PaymentStatus `json:"status"`
	ChargesEnabled     bool          `json:"charges_enabled"`
	PayoutsEnabled     bool          `json:"payouts_enabled"`
	DetailsSubmitted   bool          `json:"details_submitted"`
	Country            *string       `json:"country"`
	Currency           *string       `json:"currency"`
	PlatformFeePercent *float64      `json:"platform_fee_percent"`
	PlatformFeeFlat    *int64        `json:"platform_fee_flat"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// HasConnectedAccount reports whether onboarding produced an account id.
func (s *TenantPaymentSettings) HasConnectedAccount() bool {
	return s != nil && s.ConnectedAccountID != nil && *s.ConnectedAccountID != ""
}

// FeePercent returns the configured percentage, 0 when unset.
func (s *TenantPaymentSettings) FeePercent() float64 {
	if s == nil || s.PlatformFeePercent == nil {
		return 0
	}
	return *s.PlatformFeePercent
}

// FeeFlat returns the configured flat fee in minor units, 0 when unset.
func (s *TenantPaymentSettings) FeeFlat() int64 {
	if s == nil || s.PlatformFeeFlat == nil {
		return 0
	}
	return *s.PlatformFeeFlat
}

// PaymentAuditEntry represents the payment_audit_log table
type PaymentAuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	ActorID   uuid.UUID   `json:"actor_id"`
	Step      string      `json:"step"`
	Status    string      `json:"status"`
	Details   interface{} `json:"details,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
