package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/metrics"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/security"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	ctxUser         = "user"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func Logger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithDD(c.Request.Context(), l).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(headerRequestID)),
		)
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.InFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.InFlight.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}
	return ip
}

// RateLimitByIP applies rule per client address.
func RateLimitByIP(l ratelimit.Limiter, rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ratelimit.Check(c.Request.Context(), l, ClientIP(c), rule); err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthJWT requires a bearer token whose uid names an existing user.
func AuthJWT(v security.Verifier, users domain.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, v, users) {
			return
		}
		if _, ok := c.Get(ctxUser); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer"})
			return
		}
		c.Next()
	}
}

// OptionalAuth resolves the user when a token is sent. A bad token is
// still rejected.
func OptionalAuth(v security.Verifier, users domain.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, v, users) {
			c.Next()
		}
	}
}

func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).Staff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

// authenticate stores the user when a valid token is present. It returns
// false after aborting the request.
func authenticate(c *gin.Context, v security.Verifier, users domain.UserStore) bool {
	h := c.GetHeader("Authorization")
	if h == "" {
		return true
	}
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer"})
		return false
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	claims, err := v.ParseAndVerify(c.Request.Context(), tok)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return false
	}
	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	id, err := strconv.ParseInt(strings.TrimSpace(uid), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no uid"})
		return false
	}
	u, err := users.FindUser(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return false
	}
	c.Set(ctxUser, u)
	return true
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
