// Package api exposes the payment operations over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
	"github.com/teresa-solution/tenant-payment-service/internal/service"
)

// PaymentService is implemented by *service.PaymentService.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req service.CreatePaymentIntentRequest) (*payment.ChargeResult, error)
	SyncStatus(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error)
	Disable(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error)
	CreateBillingPortalSession(ctx context.Context, caller *auth.Identity, tenantID, returnURL string) (string, error)
	StartOnboarding(ctx context.Context, caller *auth.Identity, req service.OnboardingRequest) (*service.OnboardingResult, error)
	GetSettings(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error)
}

type createPaymentIntentRequest struct {
	TenantID       string            `json:"tenant_id"`
	AmountOre      *int64            `json:"amount_ore"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"idempotency_key"`
}

type tenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type billingPortalRequest struct {
	TenantID  string `json:"tenant_id"`
	ReturnURL string `json:"return_url"`
}

type onboardingRequest struct {
	TenantID   string `json:"tenant_id"`
	RefreshURL string `json:"refresh_url"`
	ReturnURL  string `json:"return_url"`
	Country    string `json:"country"`
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, payment.InvalidInput("invalid request body"))
		return false
	}
	return true
}

// CreatePaymentIntent handles POST /create-payment-intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req createPaymentIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	res, err := h.payments.CreatePaymentIntent(c.Request.Context(), service.CreatePaymentIntentRequest{
		TenantID:       req.TenantID,
		AmountOre:      req.AmountOre,
		Currency:       req.Currency,
		Metadata:       req.Metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncStatus handles POST /sync-status
func (h *PaymentHandler) SyncStatus(c *gin.Context) {
	var req tenantRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.payments.SyncStatus(c.Request.Context(), callerFrom(c), req.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Disable handles POST /disable
func (h *PaymentHandler) Disable(c *gin.Context) {
	var req tenantRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.payments.Disable(c.Request.Context(), callerFrom(c), req.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// CreateBillingPortalSession handles POST /create-billing-portal-session
func (h *PaymentHandler) CreateBillingPortalSession(c *gin.Context) {
	var req billingPortalRequest
	if !bindJSON(c, &req) {
		return
	}
	url, err := h.payments.CreateBillingPortalSession(c.Request.Context(), callerFrom(c), req.TenantID, req.ReturnURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StartOnboarding handles POST /connect-onboarding
func (h *PaymentHandler) StartOnboarding(c *gin.Context) {
	var req onboardingRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.payments.StartOnboarding(c.Request.Context(), callerFrom(c), service.OnboardingRequest{
		TenantID:   req.TenantID,
		RefreshURL: req.RefreshURL,
		ReturnURL:  req.ReturnURL,
		Country:    req.Country,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetSettings handles GET /settings/:tenant_id
func (h *PaymentHandler) GetSettings(c *gin.Context) {
	settings, err := h.payments.GetSettings(c.Request.Context(), callerFrom(c), c.Param("tenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
