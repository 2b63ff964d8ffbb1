package service

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
)

const (
	maxMetadataKeys        = 50
	maxMetadataKeyLength   = 40
	maxMetadataValueLength = 500
	maxIdempotencyKeyLen   = 255

	tenantMetadataKey = "tenant_id"
)

// parseTenantID validates the tenant_id field
func parseTenantID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, payment.InvalidInput("tenant_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, payment.InvalidInput("tenant_id must be a valid uuid")
	}
	return id, nil
}

// normalizeCurrency lower-cases a three-letter ISO currency code
func normalizeCurrency(currency, fallback string) (string, error) {
	if currency == "" {
		currency = fallback
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", payment.InvalidInput("currency must be a three-letter code")
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return "", payment.InvalidInput("currency must be a three-letter code")
		}
	}
	return currency, nil
}

// validateMetadata keeps caller metadata within the provider limits. One key is
// reserved for the tenant_id tag added to every charge.
func validateMetadata(metadata map[string]string) error {
	callerKeys := len(metadata)
	if _, ok := metadata[tenantMetadataKey]; ok {
		callerKeys--
	}
	if callerKeys > maxMetadataKeys-1 {
		return payment.InvalidInput("metadata supports at most %d keys", maxMetadataKeys-1)
	}
	for k, v := range metadata {
		if k == "" || len(k) > maxMetadataKeyLength {
			return payment.InvalidInput("metadata keys must be 1-%d characters", maxMetadataKeyLength)
		}
		if len(v) > maxMetadataValueLength {
			return payment.InvalidInput("metadata value for %q exceeds %d characters", k, maxMetadataValueLength)
		}
	}
	return nil
}

// validateRedirectURL checks that field holds an absolute http(s) URL
func validateRedirectURL(field, raw string) error {
	if raw == "" {
		return payment.InvalidInput("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return payment.InvalidInput("%s must be an absolute http(s) URL", field)
	}
	return nil
}
