package payment

import (
	"strings"

	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/provider"
)

// ComputeStatus derives the settings status from a provider account. A disabled
// status is sticky and is returned unchanged.
func ComputeStatus(current model.PaymentStatus, acct *provider.Account) model.PaymentStatus {
	if current == model.StatusDisabled {
		return model.StatusDisabled
	}
	switch {
	case acct.ChargesEnabled:
		return model.StatusConnected
	case acct.HasOutstandingRequirements():
		return model.StatusRestricted
	default:
		return model.StatusPending
	}
}

// ApplyAccount mirrors the provider-reported account state onto settings.
func ApplyAccount(settings *model.TenantPaymentSettings, acct *provider.Account) {
	settings.ChargesEnabled = acct.ChargesEnabled
	settings.PayoutsEnabled = acct.PayoutsEnabled
	settings.DetailsSubmitted = acct.DetailsSubmitted
	if acct.Country != "" {
		country := strings.ToUpper(acct.Country)
		settings.Country = &country
	}
	if acct.DefaultCurrency != "" {
		currency := strings.ToLower(acct.DefaultCurrency)
		settings.Currency = &currency
	}
	settings.Status = ComputeStatus(settings.Status, acct)
}

// ConnectEligible reports whether charges for this tenant go directly to its
// connected account.
func ConnectEligible(settings *model.TenantPaymentSettings) bool {
	return settings.HasConnectedAccount() &&
		settings.ChargesEnabled &&
		settings.Status != model.StatusDisabled
}
