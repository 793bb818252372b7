package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/expired"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/report"
	"go.uber.org/zap"
)

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	var le *ratelimit.LimitExceededError
	switch {
	case errors.As(err, &le):
		secs := int(math.Ceil(le.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "retry_after": secs})
	case errors.Is(err, expired.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
	case errors.Is(err, expired.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, report.ErrUnknownReport):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification, retry"})
	default:
		log.WithDD(c.Request.Context(), log.L()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(headerRequestID)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
