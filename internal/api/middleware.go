package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
)

const callerKey = "caller"

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type, idempotency-key"
	corsAllowMethods = "GET, POST, OPTIONS"
)

// CORSMiddleware answers preflight requests and tags every response with the CORS headers.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request through the global zerolog logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

// AuthMiddleware resolves the bearer token into the caller identity.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				respondError(c, payment.Unauthenticated("authorization header required"))
				return
			}
			respondError(c, payment.Unauthenticated("invalid authorization format"))
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(c, payment.Unauthenticated("invalid or expired token"))
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to verify bearer token")
			respondError(c, payment.Upstream(err))
			return
		}

		c.Set(callerKey, identity)
		c.Next()
	}
}

func callerFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}
