package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
	"github.com/teresa-solution/tenant-payment-service/internal/model"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
	"github.com/teresa-solution/tenant-payment-service/internal/service"
)

type fakeVerifier struct {
	identities map[string]*auth.Identity
	err        error
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	id, ok := v.identities[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

type fakePayments struct {
	lastIntent service.CreatePaymentIntentRequest
	lastCaller *auth.Identity
	lastTenant string
	lastURL    string
	err        error
}

func (f *fakePayments) CreatePaymentIntent(ctx context.Context, req service.CreatePaymentIntentRequest) (*payment.ChargeResult, error) {
	f.lastIntent = req
	if f.err != nil {
		return nil, f.err
	}
	return &payment.ChargeResult{PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret", Mode: payment.ModePlatform}, nil
}

func (f *fakePayments) settings(caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error) {
	f.lastCaller, f.lastTenant = caller, tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &model.TenantPaymentSettings{TenantID: uuid.MustParse(tenantID), Status: model.StatusDisabled}, nil
}

func (f *fakePayments) SyncStatus(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error) {
	return f.settings(caller, tenantID)
}

func (f *fakePayments) Disable(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error) {
	return f.settings(caller, tenantID)
}

func (f *fakePayments) CreateBillingPortalSession(ctx context.Context, caller *auth.Identity, tenantID, returnURL string) (string, error) {
	f.lastCaller, f.lastTenant, f.lastURL = caller, tenantID, returnURL
	if f.err != nil {
		return "", f.err
	}
	return "https://billing.example.com/s", nil
}

func (f *fakePayments) StartOnboarding(ctx context.Context, caller *auth.Identity, req service.OnboardingRequest) (*service.OnboardingResult, error) {
	f.lastCaller, f.lastTenant = caller, req.TenantID
	if f.err != nil {
		return nil, f.err
	}
	return &service.OnboardingResult{URL: "https://connect.example.com/x", AccountID: "acct_1"}, nil
}

func (f *fakePayments) GetSettings(ctx context.Context, caller *auth.Identity, tenantID string) (*model.TenantPaymentSettings, error) {
	return f.settings(caller, tenantID)
}

var owner = &auth.Identity{UserID: uuid.New(), Email: "owner@example.com"}

func setupRouter() (*gin.Engine, *fakePayments) {
	gin.SetMode(gin.TestMode)
	payments := &fakePayments{}
	verifier := &fakeVerifier{identities: map[string]*auth.Identity{"good-token": owner}}
	return NewRouter(NewPaymentHandler(payments), verifier), payments
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestCORSPreflight(t *testing.T) {
	r, _ := setupRouter()

	for _, path := range []string{"/create-payment-intent", "/sync-status", "/disable", "/create-billing-portal-session"} {
		w := doRequest(r, http.MethodOptions, path, "", nil)
		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, corsAllowHeaders, w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, corsAllowMethods, w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	r, payments := setupRouter()
	tenantID := uuid.New().String()

	w := doRequest(r, http.MethodPost, "/create-payment-intent",
		`{"tenant_id":"`+tenantID+`","amount_ore":25000,"idempotency_key":"body-key","metadata":{"order":"42"}}`,
		map[string]string{"Idempotency-Key": "header-key"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "pi_1_secret", res["client_secret"])
	assert.Equal(t, "platform", res["mode"])
	assert.Equal(t, false, res["connected"])
	assert.NotContains(t, res, "application_fee")

	assert.Equal(t, "header-key", payments.lastIntent.IdempotencyKey)
	assert.Equal(t, int64(25000), *payments.lastIntent.AmountOre)
	assert.Equal(t, "42", payments.lastIntent.Metadata["order"])
}

func TestCreatePaymentIntent_BadBodies(t *testing.T) {
	r, _ := setupRouter()

	for name, body := range map[string]string{
		"not json":        `amount=5`,
		"fractional":      `{"tenant_id":"` + uuid.New().String() + `","amount_ore":10.5}`,
		"string amount":   `{"tenant_id":"` + uuid.New().String() + `","amount_ore":"100"}`,
		"metadata object": `{"tenant_id":"` + uuid.New().String() + `","amount_ore":100,"metadata":{"a":{"b":1}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/create-payment-intent", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid request body", errorBody(t, w))
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{payment.InvalidInput("amount_ore must be a positive integer"), http.StatusBadRequest, "amount_ore must be a positive integer"},
		{payment.Forbidden(), http.StatusForbidden, "forbidden"},
		{payment.NotFound("no customer"), http.StatusNotFound, "no customer"},
		{payment.Conflict("payment settings changed concurrently, retry"), http.StatusConflict, "payment settings changed concurrently, retry"},
		{payment.Upstream(errors.New("No such account: acct_x")), http.StatusInternalServerError, "No such account: acct_x"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			r, payments := setupRouter()
			payments.err = tt.err

			w := doRequest(r, http.MethodPost, "/disable", `{"tenant_id":"`+uuid.New().String()+`"}`,
				map[string]string{"Authorization": "Bearer good-token"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, errorBody(t, w))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	r, payments := setupRouter()
	body := `{"tenant_id":"` + uuid.New().String() + `"}`

	w := doRequest(r, http.MethodPost, "/sync-status", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authorization header required", errorBody(t, w))

	w = doRequest(r, http.MethodPost, "/sync-status", body, map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/sync-status", body, map[string]string{"Authorization": "Bearer stale"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, payments.lastCaller)

	w = doRequest(r, http.MethodPost, "/sync-status", body, map[string]string{"Authorization": "Bearer good-token"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, owner, payments.lastCaller)
}

func TestAuthMiddleware_VerifierUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(NewPaymentHandler(&fakePayments{}), &fakeVerifier{err: errors.New("auth API returned status 502")})

	w := doRequest(r, http.MethodPost, "/disable", `{"tenant_id":"`+uuid.New().String()+`"}`,
		map[string]string{"Authorization": "Bearer good-token"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBillingPortalAndOnboarding(t *testing.T) {
	r, payments := setupRouter()
	tenantID := uuid.New().String()
	headers := map[string]string{"Authorization": "Bearer good-token"}

	w := doRequest(r, http.MethodPost, "/create-billing-portal-session",
		`{"tenant_id":"`+tenantID+`","return_url":"https://acme.example.com/admin"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://billing.example.com/s"}`, w.Body.String())
	assert.Equal(t, "https://acme.example.com/admin", payments.lastURL)

	w = doRequest(r, http.MethodPost, "/connect-onboarding",
		`{"tenant_id":"`+tenantID+`","refresh_url":"https://a.example.com/r","return_url":"https://a.example.com/d"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://connect.example.com/x","account_id":"acct_1"}`, w.Body.String())
}

func TestGetSettings(t *testing.T) {
	r, payments := setupRouter()
	tenantID := uuid.New().String()

	w := doRequest(r, http.MethodGet, "/settings/"+tenantID, "", map[string]string{"Authorization": "Bearer good-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, payments.lastTenant)

	var settings model.TenantPaymentSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, model.StatusDisabled, settings.Status)
}
