package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/database"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

func (api *Api) overview(c *gin.Context) {
	statuses, err := api.deps.Status.Overview(c.Request.Context())
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": statuses})
}

func (api *Api) endpointStatus(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	st, err := api.deps.Status.EndpointStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, st)
}

func (api *Api) endpointStats(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	period := c.DefaultQuery("period", "24h")
	stats, err := api.deps.Stats.RollingStats(c.Request.Context(), id, period)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (api *Api) endpointMetrics(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	pt := model.PeriodType(c.DefaultQuery("period_type", string(model.PeriodHour)))
	switch pt {
	case model.PeriodHour, model.PeriodDay, model.PeriodWeek, model.PeriodMonth:
	default:
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "period_type must be hour, day, week or month")
		return
	}
	limit := 24
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be 1-500")
			return
		}
		limit = v
	}
	metrics, err := api.deps.Metrics.ListUptimeMetrics(c.Request.Context(), id, pt, limit)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": metrics})
}
