package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/monitor"
	"github.com/miradorstack/learnsense/internal/personalize"
	"github.com/miradorstack/learnsense/internal/services"
)

// PredictionAPI is the prediction surface used by transports.
type PredictionAPI interface {
	Predict(ctx context.Context, req models.PredictionRequest) (services.PredictionResult, error)
	Decisions(ctx context.Context, learnerID string, limit int) ([]models.DecisionRecord, error)
	LessonPlan(ctx context.Context, learnerID string, profile personalize.Profile) (personalize.Plan, error)
}

// CaseAPI is the review-queue surface.
type CaseAPI interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error)
	Label(ctx context.Context, id string, req models.LabelRequest) (models.ActiveLearningCase, error)
	Dismiss(ctx context.Context, id string) (models.ActiveLearningCase, error)
}

// RealtimeAPI is the real-time signal surface.
type RealtimeAPI interface {
	Collect(ctx context.Context, req models.CollectRequest) (models.DataPoint, error)
	Recent(ctx context.Context, q models.RecentQuery) ([]models.DataPoint, error)
	Summary(ctx context.Context, learnerID string, windowHours float64) (models.LearnerSummary, error)
}

// MonitorAPI builds monitoring snapshots.
type MonitorAPI interface {
	Report(ctx context.Context) (monitor.Report, error)
}

// RouterConfig carries the dependencies of the HTTP router. Nil surfaces are
// not routed.
type RouterConfig struct {
	Logger      *slog.Logger
	Predictions PredictionAPI
	Cases       CaseAPI
	Realtime    RealtimeAPI
	Monitor     MonitorAPI
	// Health reports readiness of backing stores; nil means always healthy.
	Health      func(ctx context.Context) error
	CORSOrigins []string
}

type httpHandler struct {
	log         *slog.Logger
	predictions PredictionAPI
	cases       CaseAPI
	realtime    RealtimeAPI
	monitor     MonitorAPI
	health      func(ctx context.Context) error
}

// NewRouter builds the gin engine serving the JSON API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{
		log:         logger,
		predictions: cfg.Predictions,
		cases:       cfg.Cases,
		realtime:    cfg.Realtime,
		monitor:     cfg.Monitor,
		health:      cfg.Health,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.GET("/healthz", h.healthz)

	v1 := r.Group("/api/v1")
	if h.predictions != nil {
		v1.POST("/predictions", h.predict)
		v1.GET("/learners/:id/decisions", h.decisions)
		v1.GET("/learners/:id/lesson-plan", h.lessonPlan)
	}
	if h.cases != nil {
		v1.GET("/active-learning", h.listCases)
		v1.POST("/active-learning/:id/label", h.labelCase)
		v1.POST("/active-learning/:id/dismiss", h.dismissCase)
	}
	if h.realtime != nil {
		v1.POST("/realtime/collect", h.collect)
		v1.GET("/realtime/:userId", h.recent)
		v1.GET("/realtime/:userId/summary", h.summary)
	}
	if h.monitor != nil {
		v1.GET("/monitoring/report", h.monitoringReport)
	}
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error, fallback string) {
	status, body := envelopeFor(err, fallback)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("route", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{Message: msg, Code: "invalid_input"}})
}

// GET /healthz
func (h *httpHandler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.log.Warn("health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /api/v1/predictions
func (h *httpHandler) predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	result, err := h.predictions.Predict(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "prediction failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/learners/:id/decisions
func (h *httpHandler) decisions(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 20)
	if !ok {
		return
	}
	records, err := h.predictions.Decisions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.respondError(c, err, "failed to list decisions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records})
}

// GET /api/v1/learners/:id/lesson-plan
func (h *httpHandler) lessonPlan(c *gin.Context) {
	if strings.TrimSpace(c.Query("age")) == "" {
		badRequest(c, "age is required")
		return
	}
	age, ok := intQuery(c, "age", 0)
	if !ok {
		return
	}
	profile := personalize.Profile{
		Age:             age,
		DeviceType:      c.Query("device_type"),
		PrimaryLanguage: c.Query("primary_language"),
	}
	plan, err := h.predictions.LessonPlan(c.Request.Context(), c.Param("id"), profile)
	if err != nil {
		h.respondError(c, err, "failed to build lesson plan")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GET /api/v1/active-learning
func (h *httpHandler) listCases(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	filter := models.CaseFilter{Status: models.CaseStatus(strings.ToLower(c.Query("status"))), Limit: limit}
	cases, err := h.cases.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "failed to list cases")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// POST /api/v1/active-learning/:id/label
func (h *httpHandler) labelCase(c *gin.Context) {
	var req models.LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	updated, err := h.cases.Label(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err, "failed to label case")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// POST /api/v1/active-learning/:id/dismiss
func (h *httpHandler) dismissCase(c *gin.Context) {
	updated, err := h.cases.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to dismiss case")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// POST /api/v1/realtime/collect
func (h *httpHandler) collect(c *gin.Context) {
	var req models.CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	point, err := h.realtime.Collect(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "failed to collect data point")
		return
	}
	c.JSON(http.StatusAccepted, point)
}

// GET /api/v1/realtime/:userId
func (h *httpHandler) recent(c *gin.Context) {
	window, ok := floatQuery(c, "window_minutes")
	if !ok {
		return
	}
	q := models.RecentQuery{
		LearnerID:     c.Param("userId"),
		Type:          models.SignalType(c.Query("type")),
		WindowMinutes: window,
	}
	points, err := h.realtime.Recent(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err, "failed to load data points")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": q.LearnerID, "points": points})
}

// GET /api/v1/realtime/:userId/summary
func (h *httpHandler) summary(c *gin.Context) {
	hours, ok := floatQuery(c, "window_hours")
	if !ok {
		return
	}
	summary, err := h.realtime.Summary(c.Request.Context(), c.Param("userId"), hours)
	if err != nil {
		h.respondError(c, err, "failed to summarise data points")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GET /api/v1/monitoring/report
func (h *httpHandler) monitoringReport(c *gin.Context) {
	report, err := h.monitor.Report(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to build monitoring report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, key+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func floatQuery(c *gin.Context, key string) (float64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v != v {
		badRequest(c, key+" must be a non-negative number")
		return 0, false
	}
	return v, true
}
