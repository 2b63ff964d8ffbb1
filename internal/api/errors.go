package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
)

func statusFor(kind payment.Kind) int {
	switch kind {
	case payment.KindInvalidInput:
		return http.StatusBadRequest
	case payment.KindUnauthenticated:
		return http.StatusUnauthorized
	case payment.KindForbidden:
		return http.StatusForbidden
	case payment.KindNotFound:
		return http.StatusNotFound
	case payment.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message} with the status of its kind.
func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(payment.KindOf(err)), gin.H{"error": payment.MessageOf(err)})
}
