package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/middleware"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// EndpointStore is the endpoint CRUD surface.
type EndpointStore interface {
	CreateEndpoint(ctx context.Context, c *model.EndpointCreate) (*model.Endpoint, error)
	GetEndpoint(ctx context.Context, id int64) (*model.Endpoint, error)
	ListEndpoints(ctx context.Context) ([]model.Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *model.Endpoint) error
	DeleteEndpoint(ctx context.Context, id int64) error
}

// CheckStore reads probe history.
type CheckStore interface {
	LoadRecentChecks(ctx context.Context, endpointID int64, n int) ([]model.HealthCheck, error)
}

// MetricStore reads stored uptime rollups.
type MetricStore interface {
	ListUptimeMetrics(ctx context.Context, endpointID int64, periodType model.PeriodType, limit int) ([]model.UptimeMetric, error)
}

// AlertStore reads alert history. endpointID 0 means all endpoints.
type AlertStore interface {
	ListAlerts(ctx context.Context, endpointID int64, activeOnly bool, limit int) ([]model.Alert, error)
}

// ConfigStore reads and writes system tunables.
type ConfigStore interface {
	ListConfig(ctx context.Context) ([]model.SystemConfig, error)
	SetConfig(ctx context.Context, c *model.SystemConfig) error
}

// StatusService assembles live endpoint status.
type StatusService interface {
	EndpointStatus(ctx context.Context, id int64) (*model.EndpointStatus, error)
	Overview(ctx context.Context) ([]model.EndpointStatus, error)
}

// StatsSource computes on-demand rolling-window stats.
type StatsSource interface {
	RollingStats(ctx context.Context, endpointID int64, period string) (*model.UptimeStats, error)
}

// Deps wires the API's collaborators. MetricsHandler and OnConfigChange are
// optional.
type Deps struct {
	Endpoints EndpointStore
	Checks    CheckStore
	Metrics   MetricStore
	Alerts    AlertStore
	Config    ConfigStore
	Status    StatusService
	Stats     StatsSource

	BearerToken    string
	MetricsHandler http.Handler
	// OnConfigChange runs after a tunable is written, so the alert engine can
	// pick the new value up without waiting for its reload tick.
	OnConfigChange func(ctx context.Context)
}

type Api struct {
	deps Deps
}

func NewApi(router *gin.Engine, deps Deps) *Api {
	api := &Api{deps: deps}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if api.deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(api.deps.MetricsHandler))
	}

	v1 := router.Group("/v1", middleware.BearerAuth(api.deps.BearerToken))
	v1.POST("/endpoints", api.createEndpoint)
	v1.GET("/endpoints", api.listEndpoints)
	v1.GET("/endpoints/:id", api.getEndpoint)
	v1.PATCH("/endpoints/:id", api.updateEndpoint)
	v1.DELETE("/endpoints/:id", api.deleteEndpoint)
	v1.GET("/endpoints/:id/status", api.endpointStatus)
	v1.GET("/endpoints/:id/checks", api.endpointChecks)
	v1.GET("/endpoints/:id/stats", api.endpointStats)
	v1.GET("/endpoints/:id/metrics", api.endpointMetrics)
	v1.GET("/endpoints/:id/alerts", api.endpointAlerts)
	v1.GET("/status", api.overview)
	v1.GET("/alerts", api.listAlerts)
	v1.GET("/config", api.listConfig)
	v1.PUT("/config/:key", api.setConfig)
}

func errJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}
