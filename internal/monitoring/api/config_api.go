package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

func (api *Api) listConfig(c *gin.Context) {
	items, err := api.deps.Config.ListConfig(c.Request.Context())
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": items})
}

type setConfigRequest struct {
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Description string `json:"description"`
}

func (api *Api) setConfig(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "missing config key")
		return
	}
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "value must not be empty")
		return
	}
	if req.ValueType == "" {
		req.ValueType = "string"
	}

	ctx := c.Request.Context()
	row := &model.SystemConfig{
		Key:         key,
		Value:       req.Value,
		ValueType:   req.ValueType,
		Description: req.Description,
	}
	if err := api.deps.Config.SetConfig(ctx, row); err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	log.Info().Str("key", key).Str("value", req.Value).Msg("system config updated")
	if api.deps.OnConfigChange != nil {
		api.deps.OnConfigChange(ctx)
	}
	c.JSON(http.StatusOK, row)
}
