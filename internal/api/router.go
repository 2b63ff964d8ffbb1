package api

import (
	"github.com/gin-gonic/gin"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
)

// NewRouter builds the gin engine serving the payment endpoints.
func NewRouter(handler *PaymentHandler, verifier auth.Verifier) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORSMiddleware())

	// storefront checkout, no caller identity
	router.POST("/create-payment-intent", handler.CreatePaymentIntent)

	protected := router.Group("/")
	protected.Use(AuthMiddleware(verifier))
	{
		protected.POST("/sync-status", handler.SyncStatus)
		protected.POST("/disable", handler.Disable)
		protected.POST("/create-billing-portal-session", handler.CreateBillingPortalSession)
		protected.POST("/connect-onboarding", handler.StartOnboarding)
		protected.GET("/settings/:tenant_id", handler.GetSettings)
	}

	return router
}
