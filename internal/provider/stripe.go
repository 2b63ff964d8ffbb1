package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/account"
	"github.com/stripe/stripe-go/v83/accountlink"
	portalsession "github.com/stripe/stripe-go/v83/billingportal/session"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/teresa-solution/tenant-payment-service/internal/monitoring"
)

// StripeConfig holds the platform's Stripe credentials.
type StripeConfig struct {
	SecretKey string
}

func (c StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return errors.New("stripe secret key must start with sk_ or rk_")
	}
	return nil
}

// StripeProvider implements Provider using Stripe Connect.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider sets the global Stripe key and disables SDK-level network retries.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stripe configuration: %w", err)
	}

	stripe.Key = config.SecretKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
	}))

	return &StripeProvider{config: config}, nil
}

func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx
	if len(params.Metadata) > 0 {
		piParams.Metadata = params.Metadata
	}
	if params.ConnectedAccountID != "" {
		piParams.SetStripeAccount(params.ConnectedAccountID)
	}
	if params.ApplicationFeeAmount != nil {
		piParams.ApplicationFeeAmount = stripe.Int64(*params.ApplicationFeeAmount)
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	var pi *stripe.PaymentIntent
	err := observe("create_payment_intent", func() (err error) {
		pi, err = paymentintent.New(piParams)
		return err
	})
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &PaymentIntent{
		ID:                   pi.ID,
		ClientSecret:         pi.ClientSecret,
		Amount:               pi.Amount,
		Currency:             string(pi.Currency),
		ApplicationFeeAmount: pi.ApplicationFeeAmount,
	}, nil
}

func (s *StripeProvider) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	var acct *stripe.Account
	err := observe("get_account", func() (err error) {
		acctParams := &stripe.AccountParams{}
		acctParams.Context = ctx
		acct, err = account.GetByID(accountID, acctParams)
		return err
	})
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return buildAccount(acct), nil
}

func (s *StripeProvider) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	acctParams := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
	}
	acctParams.Context = ctx
	if params.Country != "" {
		acctParams.Country = stripe.String(strings.ToUpper(params.Country))
	}
	if params.Email != "" {
		acctParams.Email = stripe.String(params.Email)
	}
	if params.TenantID != "" {
		acctParams.AddMetadata("tenant_id", params.TenantID)
	}
	if params.IdempotencyKey != "" {
		acctParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	var acct *stripe.Account
	err := observe("create_account", func() (err error) {
		acct, err = account.New(acctParams)
		return err
	})
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return buildAccount(acct), nil
}

func (s *StripeProvider) CreateAccountLink(ctx context.Context, params AccountLinkParams) (string, error) {
	linkParams := &stripe.AccountLinkParams{
		Account:    stripe.String(params.AccountID),
		RefreshURL: stripe.String(params.RefreshURL),
		ReturnURL:  stripe.String(params.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	linkParams.Context = ctx

	var link *stripe.AccountLink
	err := observe("create_account_link", func() (err error) {
		link, err = accountlink.New(linkParams)
		return err
	})
	if err != nil {
		return "", wrapStripeError(err)
	}
	return link.URL, nil
}

func (s *StripeProvider) CreatePortalSession(ctx context.Context, params PortalSessionParams) (string, error) {
	sessionParams := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(params.CustomerID),
		ReturnURL: stripe.String(params.ReturnURL),
	}
	sessionParams.Context = ctx

	var session *stripe.BillingPortalSession
	err := observe("create_portal_session", func() (err error) {
		session, err = portalsession.New(sessionParams)
		return err
	})
	if err != nil {
		return "", wrapStripeError(err)
	}
	return session.URL, nil
}

func buildAccount(acct *stripe.Account) *Account {
	a := &Account{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		Country:          acct.Country,
		DefaultCurrency:  string(acct.DefaultCurrency),
	}
	if acct.Requirements != nil {
		a.CurrentlyDue = acct.Requirements.CurrentlyDue
		a.PastDue = acct.Requirements.PastDue
		a.PendingVerification = acct.Requirements.PendingVerification
	}
	return a
}

func observe(operation string, call func() error) error {
	start := time.Now()
	err := call()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitoring.ProviderCallDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	return err
}

func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	if stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return &Error{
			Message:    stripeErr.Msg,
			Code:       string(stripeErr.Code),
			HTTPStatus: stripeErr.HTTPStatusCode,
			RequestID:  stripeErr.RequestID,
			Err:        ErrNotFound,
		}
	}

	return &Error{
		Message:    stripeErr.Msg,
		Code:       string(stripeErr.Code),
		HTTPStatus: stripeErr.HTTPStatusCode,
		RequestID:  stripeErr.RequestID,
		Err:        err,
	}
}
