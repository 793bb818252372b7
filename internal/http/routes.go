package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/security"
)

func NewRouter(h *Handler, v security.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Metrics())
	r.Use(Logger(log.L()))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })

	auth := AuthJWT(v, h.Store)
	optional := OptionalAuth(v, h.Store)

	solution := r.Group("/solution", auth)
	{
		solution.POST("/expire", h.Expire)
		solution.POST("/unexpire", h.Unexpire)
	}

	r.GET("/t/:id", optional, h.GetTopic)
	r.GET("/posts/:id", optional, h.GetPost)
	r.GET("/latest", optional, h.Latest)

	searchChain := []gin.HandlerFunc{optional}
	if h.Limiter != nil && h.SearchPerMin > 0 {
		rule := ratelimit.Rule{Prefix: "search-ip", Max: h.SearchPerMin, Window: time.Minute}
		searchChain = append(searchChain, RateLimitByIP(h.Limiter, rule))
	}
	r.GET("/search", append(searchChain, h.SearchTopics)...)

	r.GET("/notifications", auth, h.Notifications)

	admin := r.Group("/admin", auth, RequireStaff())
	{
		admin.GET("/reports", h.ListReports)
		admin.GET("/reports/:type", h.GetReport)
		admin.PUT("/categories/:id/custom_fields", h.SaveCategoryFields)
	}
	return r
}
