package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/expired"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/report"
	"github.com/tazhibayda/expired-service/internal/search"
	"github.com/tazhibayda/expired-service/internal/view"
)

type Handler struct {
	Store   domain.ForumStore
	Expired *expired.Service
	Views   *view.Registry
	Search  *search.Service
	Reports *report.Registry

	// Limiter backs the per-IP search limit; SearchPerMin 0 disables it.
	Limiter      ratelimit.Limiter
	SearchPerMin int
}

func NewHandler(store domain.ForumStore, svc *expired.Service, views *view.Registry, srch *search.Service, reports *report.Registry, limiter ratelimit.Limiter, searchPerMin int) *Handler {
	return &Handler{
		Store:        store,
		Expired:      svc,
		Views:        views,
		Search:       srch,
		Reports:      reports,
		Limiter:      limiter,
		SearchPerMin: searchPerMin,
	}
}

// Healthz godoc
// @Summary Liveness and store ping
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type postIDReq struct {
	ID json.Number `json:"id"`
}

// postID reads id from the query string, a form body or a JSON body.
func postID(c *gin.Context) (int64, bool) {
	raw := c.Query("id")
	if raw == "" {
		if strings.HasPrefix(c.ContentType(), "application/json") {
			var in postIDReq
			if err := c.ShouldBindJSON(&in); err == nil {
				raw = in.ID.String()
			}
		} else {
			raw = c.PostForm("id")
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Expire godoc
// @Summary Mark a post as the topic's expired answer
// @Tags expired
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id query int true "post id"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]interface{}
// @Router /solution/expire [post]
func (h *Handler) Expire(c *gin.Context) {
	h.mutate(c, h.Expired.Expire)
}

// Unexpire godoc
// @Summary Clear the topic's expired answer
// @Tags expired
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id query int true "post id"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]interface{}
// @Router /solution/unexpire [post]
func (h *Handler) Unexpire(c *gin.Context) {
	h.mutate(c, h.Expired.Unexpire)
}

func (h *Handler) mutate(c *gin.Context, op func(context.Context, *domain.User, int64) error) {
	id, ok := postID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := op(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "OK"})
}

// GetTopic godoc
// @Summary Topic with its posts
// @Tags topics
// @Produce json
// @Param id path int true "topic id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /t/{id} [get]
func (h *Handler) GetTopic(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	ctx := c.Request.Context()
	t, err := h.Store.FindTopic(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Views.TopicView(ctx, h.Store, view.Scope{User: currentUser(c)}, t)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetPost godoc
// @Summary Single post
// @Tags topics
// @Produce json
// @Param id path int true "post id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	ctx := c.Request.Context()
	p, err := h.Store.FindPost(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Views.PostView(ctx, h.Store, view.Scope{User: currentUser(c)}, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Latest godoc
// @Summary Latest topics
// @Tags topics
// @Produce json
// @Param category_id query int false "category"
// @Param limit query int false "page size"
// @Param skip query int false "offset"
// @Success 200 {object} map[string]interface{}
// @Router /latest [get]
func (h *Handler) Latest(c *gin.Context) {
	p := domain.TopicListParams{
		CategoryID: optionalID(c.Query("category_id")),
		Limit:      atoi(c.Query("limit")),
		Skip:       atoi(c.Query("skip")),
	}
	ctx := c.Request.Context()
	topics, err := h.Store.ListTopics(ctx, p)
	if err != nil {
		writeError(c, err)
		return
	}
	items, err := h.Views.TopicList(ctx, h.Store, view.Scope{User: currentUser(c)}, topics)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic_list": gin.H{"topics": items}})
}

// SearchTopics godoc
// @Summary Search topics
// @Description Supports in:expired and in:unexpired.
// @Tags search
// @Produce json
// @Param q query string false "search term"
// @Param category_id query int false "category"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /search [get]
func (h *Handler) SearchTopics(c *gin.Context) {
	ctx := c.Request.Context()
	topics, err := h.Search.Search(ctx, c.Query("q"), optionalID(c.Query("category_id")), atoi(c.Query("limit")))
	if err != nil {
		writeError(c, err)
		return
	}
	items, err := h.Views.TopicList(ctx, h.Store, view.Scope{User: currentUser(c)}, topics)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": items})
}

// ListReports godoc
// @Summary Dashboard reports
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/reports [get]
func (h *Handler) ListReports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reports": h.Reports.Global()})
}

// GetReport godoc
// @Summary Run a dashboard report
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param type path string true "report name"
// @Param start_date query string false "YYYY-MM-DD, default end_date-30d"
// @Param end_date query string false "YYYY-MM-DD, default today"
// @Param category_id query int false "category"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/reports/{type} [get]
func (h *Handler) GetReport(c *gin.Context) {
	end := time.Now().UTC()
	if v := c.Query("end_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad end_date"})
			return
		}
		end = d.Add(24*time.Hour - time.Nanosecond)
	}
	start := end.Add(-30 * 24 * time.Hour).Truncate(24 * time.Hour)
	if v := c.Query("start_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad start_date"})
			return
		}
		start = d
	}
	if start.After(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date after end_date"})
		return
	}

	var rep *report.Report
	err := WithSpan(c.Request.Context(), "report."+c.Param("type"), func(ctx context.Context) error {
		var err error
		rep, err = h.Reports.Run(ctx, c.Param("type"), report.Params{
			Start:      start,
			End:        end,
			CategoryID: optionalID(c.Query("category_id")),
		})
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

type categoryFieldsReq struct {
	CustomFields map[string]*string `json:"custom_fields"`
}

// SaveCategoryFields godoc
// @Summary Set category custom fields
// @Description A null value deletes the field. Saving resets the expired-category cache.
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "category id"
// @Param payload body categoryFieldsReq true "custom_fields"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/categories/{id}/custom_fields [put]
func (h *Handler) SaveCategoryFields(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var in categoryFieldsReq
	if err := c.ShouldBindJSON(&in); err != nil || len(in.CustomFields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "custom_fields required"})
		return
	}
	changes := make([]domain.FieldChange, 0, len(in.CustomFields))
	for name, v := range in.CustomFields {
		if strings.TrimSpace(name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty field name"})
			return
		}
		changes = append(changes, domain.FieldChange{OwnerID: id, Name: name, Value: v})
	}
	ctx := c.Request.Context()
	if err := h.Store.SaveCategoryFields(ctx, id, changes); err != nil {
		writeError(c, err)
		return
	}
	fields, err := h.Store.CategoryFields(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if fields == nil {
		fields = domain.Fields{}
	}
	c.JSON(http.StatusOK, gin.H{
		"category_id":           id,
		"custom_fields":         fields,
		"enable_expired_topics": expired.CategoryEnabled(fields),
	})
}

// Notifications godoc
// @Summary The current user's notifications
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /notifications [get]
func (h *Handler) Notifications(c *gin.Context) {
	u := currentUser(c)
	ns, err := h.Store.ListNotifications(c.Request.Context(), u.ID, atoi(c.Query("limit")))
	if err != nil {
		writeError(c, err)
		return
	}
	if ns == nil {
		ns = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": ns})
}

func optionalID(s string) *int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
