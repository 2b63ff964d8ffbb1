package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/monitoring"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
	"github.com/teresa-solution/tenant-payment-service/internal/provider"
	"github.com/teresa-solution/tenant-payment-service/internal/store"
)

// Store is the persistence the payment operations need; *store.Store implements it.
type Store interface {
	payment.GrantReader
	payment.TenantReader
	payment.SettingsReader
	CreatePaymentSettings(ctx context.Context, settings *model.TenantPaymentSettings) error
	UpdatePaymentSettings(ctx context.Context, settings *model.TenantPaymentSettings) error
	GetBillingCustomer(ctx context.Context, tenantID uuid.UUID) (*model.BillingCustomer, error)
	CreateAuditEntry(ctx context.Context, entry *model.PaymentAuditEntry) error
}

// ReplayStore remembers charge results per client idempotency key.
type ReplayStore interface {
	Lookup(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
	Save(ctx context.Context, req payment.ChargeRequest, res *payment.ChargeResult) error
}

// PaymentService implements the tenant payment entry points. Each operation
// authorizes the caller against the database before touching tenant data.
type PaymentService struct {
	store           Store
	provider        provider.Provider
	replays         ReplayStore
	authorizer      *payment.Authorizer
	router          *payment.ChargeRouter
	defaultCurrency string
	defaultCountry  string
}

type Options struct {
	DefaultCurrency string
	DefaultCountry  string
}

// NewPaymentService wires the core components. replays may be nil, which disables replay.
func NewPaymentService(st Store, p provider.Provider, replays ReplayStore, opts Options) *PaymentService {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "nok"
	}
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = "NO"
	}
	return &PaymentService{
		store:           st,
		provider:        p,
		replays:         replays,
		authorizer:      payment.NewAuthorizer(st, st),
		router:          payment.NewChargeRouter(st, p),
		defaultCurrency: opts.DefaultCurrency,
		defaultCountry:  opts.DefaultCountry,
	}
}

type CreatePaymentIntentRequest struct {
	TenantID       string
	AmountOre      *int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// CreatePaymentIntent routes a storefront checkout charge. It needs no caller identity.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (*payment.ChargeResult, error) {
	tenantID, err := parseTenantID(req.TenantID)
	if err != nil {
		return nil, err
	}
	if req.AmountOre == nil {
		return nil, payment.InvalidInput("amount_ore is required")
	}
	if *req.AmountOre <= 0 {
		return nil, payment.InvalidInput("amount_ore must be a positive integer")
	}
	currency, err := normalizeCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, payment.InvalidInput("idempotency key exceeds %d characters", maxIdempotencyKeyLen)
	}

	tenant, err := s.store.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, payment.Upstream(err)
	}
	if tenant == nil {
		return nil, payment.NotFound("tenant not found")
	}

	charge := payment.ChargeRequest{
		TenantID:       tenantID,
		Amount:         *req.AmountOre,
		Currency:       currency,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	}

	replayable := charge.IdempotencyKey != "" && s.replays != nil
	if replayable {
		prev, err := s.replays.Lookup(ctx, charge)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to look up idempotency record")
			return nil, payment.Upstream(err)
		}
		if prev != nil {
			monitoring.ChargeReplays.Inc()
			return prev, nil
		}
	}

	if charge.IdempotencyKey == "" {
		charge.IdempotencyKey = uuid.NewString()
	}
	res, err := s.router.CreateCharge(ctx, charge)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to create payment intent")
		monitoring.Alert("create_payment_intent failed", map[string]string{"tenant_id": tenantID.String()})
		return nil, err
	}

	if replayable {
		if err := s.replays.Save(ctx, charge, res); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to store idempotency record")
		}
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("mode", string(res.Mode)).
		Int64("amount", charge.Amount).
		Msg("Payment intent created")
	return res, nil
}

// SyncStatus refreshes the tenant's settings from its connected account.
func (s *PaymentService) SyncStatus(ctx context.Context, caller *auth.Identity, rawTenantID string) (*model.TenantPaymentSettings, error) {
	tenantID, err := s.authorize(ctx, caller, rawTenantID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetPaymentSettings(ctx, tenantID)
	if err != nil {
		return nil, payment.Upstream(err)
	}
	if !settings.HasConnectedAccount() {
		return nil, payment.NotFound("no connected account")
	}

	acct, err := s.provider.GetAccount(ctx, *settings.ConnectedAccountID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, payment.NotFound("no connected account")
	}
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to retrieve connected account")
		monitoring.Alert("sync_status failed", map[string]string{"tenant_id": tenantID.String()})
		return nil, payment.Upstream(err)
	}

	previous := settings.Status
	payment.ApplyAccount(settings, acct)
	if err := s.update(ctx, settings); err != nil {
		return nil, err
	}
	monitoring.StatusSyncs.WithLabelValues(string(settings.Status)).Inc()

	s.audit(ctx, tenantID, caller.UserID, "sync_status", string(settings.Status), map[string]interface{}{
		"previous_status": previous,
		"charges_enabled": settings.ChargesEnabled,
		"payouts_enabled": settings.PayoutsEnabled,
	})
	return settings, nil
}

// Disable marks the tenant's payment settings disabled. Later syncs never re-enable them.
func (s *PaymentService) Disable(ctx context.Context, caller *auth.Identity, rawTenantID string) (*model.TenantPaymentSettings, error) {
	tenantID, err := s.authorize(ctx, caller, rawTenantID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetPaymentSettings(ctx, tenantID)
	if err != nil {
		return nil, payment.Upstream(err)
	}

	var previous model.PaymentStatus
	switch {
	case settings == nil:
		previous = model.StatusNotConfigured
		settings = &model.TenantPaymentSettings{
			TenantID: tenantID,
			Provider: model.ProviderStripe,
			Status:   model.StatusDisabled,
		}
		if err := s.store.CreatePaymentSettings(ctx, settings); err != nil {
			if errors.Is(err, store.ErrSettingsExist) {
				return nil, payment.Conflict("payment settings changed concurrently, retry")
			}
			return nil, payment.Upstream(err)
		}
	case settings.Status == model.StatusDisabled:
		return settings, nil
	default:
		previous = settings.Status
		settings.Status = model.StatusDisabled
		if err := s.update(ctx, settings); err != nil {
			return nil, err
		}
	}

	log.Info().Str("tenant_id", tenantID.String()).Str("actor_id", caller.UserID.String()).Msg("Payments disabled")
	s.audit(ctx, tenantID, caller.UserID, "disable", string(model.StatusDisabled), map[string]interface{}{
		"previous_status": previous,
	})
	return settings, nil
}

// CreateBillingPortalSession opens the provider's billing portal for the tenant's
// own platform subscription.
func (s *PaymentService) CreateBillingPortalSession(ctx context.Context, caller *auth.Identity, rawTenantID, returnURL string) (string, error) {
	if caller == nil {
		return "", payment.Unauthenticated("authorization header required")
	}
	if _, err := parseTenantID(rawTenantID); err != nil {
		return "", err
	}
	if err := validateRedirectURL("return_url", returnURL); err != nil {
		return "", err
	}
	tenantID, err := s.authorize(ctx, caller, rawTenantID)
	if err != nil {
		return "", err
	}

	customer, err := s.store.GetBillingCustomer(ctx, tenantID)
	if err != nil {
		return "", payment.Upstream(err)
	}
	if customer == nil {
		return "", payment.NotFound("no customer")
	}

	url, err := s.provider.CreatePortalSession(ctx, provider.PortalSessionParams{
		CustomerID: customer.ProviderCustomerID,
		ReturnURL:  returnURL,
	})
	if errors.Is(err, provider.ErrNotFound) {
		return "", payment.NotFound("no customer")
	}
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to create billing portal session")
		return "", payment.Upstream(err)
	}
	return url, nil
}

type OnboardingRequest struct {
	TenantID   string
	RefreshURL string
	ReturnURL  string
	Country    string
}

type OnboardingResult struct {
	URL       string `json:"url"`
	AccountID string `json:"account_id"`
}

// StartOnboarding creates the tenant's connected account on first use and returns a
// provider-hosted onboarding link.
func (s *PaymentService) StartOnboarding(ctx context.Context, caller *auth.Identity, req OnboardingRequest) (*OnboardingResult, error) {
	if caller == nil {
		return nil, payment.Unauthenticated("authorization header required")
	}
	if _, err := parseTenantID(req.TenantID); err != nil {
		return nil, err
	}
	if err := validateRedirectURL("refresh_url", req.RefreshURL); err != nil {
		return nil, err
	}
	if err := validateRedirectURL("return_url", req.ReturnURL); err != nil {
		return nil, err
	}
	tenantID, err := s.authorize(ctx, caller, req.TenantID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetPaymentSettings(ctx, tenantID)
	if err != nil {
		return nil, payment.Upstream(err)
	}
	if settings != nil && settings.Status == model.StatusDisabled {
		return nil, payment.Conflict("payments are disabled for this tenant")
	}

	if !settings.HasConnectedAccount() {
		settings, err = s.createConnectedAccount(ctx, caller, tenantID, req.Country, settings)
		if err != nil {
			return nil, err
		}
	}

	url, err := s.provider.CreateAccountLink(ctx, provider.AccountLinkParams{
		AccountID:  *settings.ConnectedAccountID,
		RefreshURL: req.RefreshURL,
		ReturnURL:  req.ReturnURL,
	})
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to create onboarding link")
		return nil, payment.Upstream(err)
	}
	s.audit(ctx, tenantID, caller.UserID, "onboarding_link", string(settings.Status), map[string]interface{}{
		"account_id": *settings.ConnectedAccountID,
	})
	return &OnboardingResult{URL: url, AccountID: *settings.ConnectedAccountID}, nil
}

func (s *PaymentService) createConnectedAccount(ctx context.Context, caller *auth.Identity, tenantID uuid.UUID, country string, settings *model.TenantPaymentSettings) (*model.TenantPaymentSettings, error) {
	if country == "" {
		country = s.defaultCountry
	}
	acct, err := s.provider.CreateAccount(ctx, provider.CreateAccountParams{
		TenantID:       tenantID.String(),
		Country:        country,
		Email:          caller.Email,
		IdempotencyKey: "connect-account-" + tenantID.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Failed to create connected account")
		monitoring.Alert("connect_account failed", map[string]string{"tenant_id": tenantID.String()})
		return nil, payment.Upstream(err)
	}

	if settings == nil {
		settings = &model.TenantPaymentSettings{TenantID: tenantID, Provider: model.ProviderStripe}
		settings.ConnectedAccountID = &acct.ID
		settings.Status = model.StatusPending
		payment.ApplyAccount(settings, acct)
		if err := s.store.CreatePaymentSettings(ctx, settings); err != nil {
			if errors.Is(err, store.ErrSettingsExist) {
				return nil, payment.Conflict("payment settings changed concurrently, retry")
			}
			return nil, payment.Upstream(err)
		}
	} else {
		settings.ConnectedAccountID = &acct.ID
		payment.ApplyAccount(settings, acct)
		if err := s.update(ctx, settings); err != nil {
			return nil, err
		}
	}

	s.audit(ctx, tenantID, caller.UserID, "connect_account", string(settings.Status), map[string]interface{}{
		"account_id": acct.ID,
	})
	return settings, nil
}

// GetSettings returns the tenant's stored payment settings.
func (s *PaymentService) GetSettings(ctx context.Context, caller *auth.Identity, rawTenantID string) (*model.TenantPaymentSettings, error) {
	tenantID, err := s.authorize(ctx, caller, rawTenantID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetPaymentSettings(ctx, tenantID)
	if err != nil {
		return nil, payment.Upstream(err)
	}
	if settings == nil {
		return nil, payment.NotFound("payment settings not configured")
	}
	return settings, nil
}

func (s *PaymentService) authorize(ctx context.Context, caller *auth.Identity, rawTenantID string) (uuid.UUID, error) {
	if caller == nil {
		return uuid.Nil, payment.Unauthenticated("authorization header required")
	}
	tenantID, err := parseTenantID(rawTenantID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, caller.UserID, tenantID); err != nil {
		if payment.KindOf(err) == payment.KindForbidden {
			log.Warn().Str("tenant_id", tenantID.String()).Str("caller_id", caller.UserID.String()).Msg("Tenant access denied")
		}
		return uuid.Nil, err
	}
	return tenantID, nil
}

func (s *PaymentService) update(ctx context.Context, settings *model.TenantPaymentSettings) error {
	err := s.store.UpdatePaymentSettings(ctx, settings)
	if errors.Is(err, store.ErrStaleWrite) {
		return payment.Conflict("payment settings changed concurrently, retry")
	}
	if err != nil {
		return payment.Upstream(err)
	}
	return nil
}

func (s *PaymentService) audit(ctx context.Context, tenantID, actorID uuid.UUID, step, status string, details interface{}) {
	entry := &model.PaymentAuditEntry{
		TenantID: tenantID,
		ActorID:  actorID,
		Step:     step,
		Status:   status,
		Details:  details,
	}
	if err := s.store.CreateAuditEntry(ctx, entry); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Str("step", step).Msg("Failed to write audit entry")
	}
}
