package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (api *Api) listAlerts(c *gin.Context) {
	var endpointID int64
	if raw := c.Query("endpoint_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "endpoint_id must be a positive integer")
			return
		}
		endpointID = v
	}
	api.alerts(c, endpointID)
}

func (api *Api) endpointAlerts(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	api.alerts(c, id)
}

func (api *Api) alerts(c *gin.Context, endpointID int64) {
	activeOnly := c.Query("active") == "true"
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be 1-500")
			return
		}
		limit = v
	}
	alerts, err := api.deps.Alerts.ListAlerts(c.Request.Context(), endpointID, activeOnly, limit)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": alerts})
}
