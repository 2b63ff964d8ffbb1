// Package provider is the boundary to the external payment provider.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the provider has no object with the requested id.
var ErrNotFound = errors.New("provider object not found")

// PaymentIntentParams describes one charge. An empty ConnectedAccountID creates the
// charge on the platform account.
type PaymentIntentParams struct {
	Amount               int64
	Currency             string
	Metadata             map[string]string
	ConnectedAccountID   string
	ApplicationFeeAmount *int64 // nil omits the attribute entirely
	IdempotencyKey       string
}

type PaymentIntent struct {
	ID                   string
	ClientSecret         string
	Amount               int64
	Currency             string
	ApplicationFeeAmount int64
}

// Account is the subset of a connected account the platform mirrors.
type Account struct {
	ID                  string
	ChargesEnabled      bool
	PayoutsEnabled      bool
	DetailsSubmitted    bool
	Country             string
	DefaultCurrency     string
	CurrentlyDue        []string
	PastDue             []string
	PendingVerification []string
}

// HasOutstandingRequirements reports whether the provider lists any currently-due,
// past-due, or pending-verification requirement.
func (a *Account) HasOutstandingRequirements() bool {
	return len(a.CurrentlyDue) > 0 || len(a.PastDue) > 0 || len(a.PendingVerification) > 0
}

type CreateAccountParams struct {
	TenantID       string
	Country        string
	Email          string
	IdempotencyKey string
}

type AccountLinkParams struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

type PortalSessionParams struct {
	CustomerID string
	ReturnURL  string
}

// Provider is implemented by StripeProvider and by test fakes.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)
	CreateAccountLink(ctx context.Context, params AccountLinkParams) (string, error)
	CreatePortalSession(ctx context.Context, params PortalSessionParams) (string, error)
}

// Error is a provider-side failure with the provider's own message.
type Error struct {
	Message    string
	Code       string
	HTTPStatus int
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
