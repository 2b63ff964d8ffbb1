package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/monitoring"
	"github.com/teresa-solution/tenant-payment-service/internal/provider"
)

// SettingsReader loads a tenant's payment settings; (nil, nil) means never onboarded.
type SettingsReader interface {
	GetPaymentSettings(ctx context.Context, tenantID uuid.UUID) (*model.TenantPaymentSettings, error)
}

type ChargeCreator interface {
	CreatePaymentIntent(ctx context.Context, params provider.PaymentIntentParams) (*provider.PaymentIntent, error)
}

type Mode string

const (
	ModeDirect   Mode = "direct"
	ModePlatform Mode = "platform"
)

type ChargeRequest struct {
	TenantID       uuid.UUID
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type ChargeResult struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Connected       bool   `json:"connected"`
	Mode            Mode   `json:"mode"`
	ApplicationFee  int64  `json:"application_fee,omitempty"`
}

// ChargeRouter creates a charge either directly on a tenant's connected account or on
// the platform account.
type ChargeRouter struct {
	settings SettingsReader
	charges  ChargeCreator
}

func NewChargeRouter(settings SettingsReader, charges ChargeCreator) *ChargeRouter {
	return &ChargeRouter{settings: settings, charges: charges}
}

func (r *ChargeRouter) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	settings, err := r.settings.GetPaymentSettings(ctx, req.TenantID)
	if err != nil {
		return nil, Upstream(err)
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["tenant_id"] = req.TenantID.String()

	params := provider.PaymentIntentParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Metadata:       metadata,
		IdempotencyKey: req.IdempotencyKey,
	}
	result := &ChargeResult{Mode: ModePlatform}

	if ConnectEligible(settings) {
		params.ConnectedAccountID = *settings.ConnectedAccountID
		if fee := ComputeFee(req.Amount, settings.FeePercent(), settings.FeeFlat()); fee > 0 {
			params.ApplicationFeeAmount = &fee
			result.ApplicationFee = fee
		}
		result.Mode = ModeDirect
		result.Connected = true
	}

	pi, err := r.charges.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, Upstream(err)
	}
	monitoring.ChargesCreated.WithLabelValues(string(result.Mode)).Inc()

	result.PaymentIntentID = pi.ID
	result.ClientSecret = pi.ClientSecret
	return result, nil
}
