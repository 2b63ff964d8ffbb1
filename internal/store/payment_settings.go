package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
)

var (
	// ErrStaleWrite is returned when settings changed between read and write.
	ErrStaleWrite = errors.New("payment settings were modified concurrently")
	// ErrSettingsExist is returned when creating settings for a tenant that already has them.
	ErrSettingsExist = errors.New("payment settings already exist")
)

const settingsColumns = `tenant_id, provider, connected_account_id, status,
		charges_enabled, payouts_enabled, details_submitted, country, currency,
		platform_fee_percent, platform_fee_flat, created_at, updated_at`

// GetPaymentSettings returns the tenant's settings, or nil when none exist.
func (s *Store) GetPaymentSettings(ctx context.Context, tenantID uuid.UUID) (*model.TenantPaymentSettings, error) {
	query := `SELECT ` + settingsColumns + `
		FROM tenant_payment_settings
		WHERE tenant_id = $1`

	settings := &model.TenantPaymentSettings{}
	var status string
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&settings.TenantID, &settings.Provider, &settings.ConnectedAccountID, &status,
		&settings.ChargesEnabled, &settings.PayoutsEnabled, &settings.DetailsSubmitted,
		&settings.Country, &settings.Currency,
		&settings.PlatformFeePercent, &settings.PlatformFeeFlat,
		&settings.CreatedAt, &settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment settings: %w", err)
	}
	settings.Status = model.PaymentStatus(status)
	return settings, nil
}

// CreatePaymentSettings inserts the first settings row for a tenant.
func (s *Store) CreatePaymentSettings(ctx context.Context, settings *model.TenantPaymentSettings) error {
	if settings.Provider == "" {
		settings.Provider = model.ProviderStripe
	}
	query := `
		INSERT INTO tenant_payment_settings (` + settingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (tenant_id) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		settings.TenantID, settings.Provider, settings.ConnectedAccountID, string(settings.Status),
		settings.ChargesEnabled, settings.PayoutsEnabled, settings.DetailsSubmitted,
		settings.Country, settings.Currency,
		settings.PlatformFeePercent, settings.PlatformFeeFlat,
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSettingsExist
	}
	if err != nil {
		return fmt.Errorf("failed to create payment settings: %w", err)
	}
	return nil
}

// UpdatePaymentSettings writes settings only if the row's updated_at still equals
// settings.UpdatedAt, then advances it.
func (s *Store) UpdatePaymentSettings(ctx context.Context, settings *model.TenantPaymentSettings) error {
	query := `
		UPDATE tenant_payment_settings
		SET connected_account_id = $2, status = $3,
		    charges_enabled = $4, payouts_enabled = $5, details_submitted = $6,
		    country = $7, currency = $8, updated_at = now()
		WHERE tenant_id = $1 AND updated_at = $9
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		settings.TenantID, settings.ConnectedAccountID, string(settings.Status),
		settings.ChargesEnabled, settings.PayoutsEnabled, settings.DetailsSubmitted,
		settings.Country, settings.Currency, settings.UpdatedAt,
	).Scan(&settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleWrite
	}
	if err != nil {
		return fmt.Errorf("failed to update payment settings: %w", err)
	}
	return nil
}

// GetBillingCustomer returns the provider customer that pays the tenant's own
// subscription, or nil when the tenant has none.
func (s *Store) GetBillingCustomer(ctx context.Context, tenantID uuid.UUID) (*model.BillingCustomer, error) {
	query := `
		SELECT tenant_id, provider_customer_id, created_at
		FROM tenant_billing_customers
		WHERE tenant_id = $1
	`
	c := &model.BillingCustomer{}
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&c.TenantID, &c.ProviderCustomerID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load billing customer: %w", err)
	}
	return c, nil
}

// CreateAuditEntry records one payment configuration action.
func (s *Store) CreateAuditEntry(ctx context.Context, entry *model.PaymentAuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `INSERT INTO payment_audit_log (id, tenant_id, actor_id, step, status, details, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, query, entry.ID, entry.TenantID, entry.ActorID, entry.Step, entry.Status, detailsJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}
