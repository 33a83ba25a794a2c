package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/database"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

func endpointID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (api *Api) createEndpoint(c *gin.Context) {
	var req model.EndpointCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	ep, err := api.deps.Endpoints.CreateEndpoint(c.Request.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("create endpoint failed")
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	log.Info().Int64("endpoint_id", ep.ID).Str("url", ep.URL).Msg("endpoint registered")
	c.JSON(http.StatusCreated, ep)
}

func (api *Api) listEndpoints(c *gin.Context) {
	eps, err := api.deps.Endpoints.ListEndpoints(c.Request.Context())
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": eps})
}

func (api *Api) getEndpoint(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	ep, err := api.deps.Endpoints.GetEndpoint(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (api *Api) updateEndpoint(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	var req model.EndpointUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	ctx := c.Request.Context()
	ep, err := api.deps.Endpoints.GetEndpoint(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	req.Apply(ep)
	if err := api.deps.Endpoints.UpdateEndpoint(ctx, ep); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (api *Api) deleteEndpoint(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	if err := api.deps.Endpoints.DeleteEndpoint(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	log.Info().Int64("endpoint_id", id).Msg("endpoint deleted")
	c.Status(http.StatusNoContent)
}

func (api *Api) endpointChecks(c *gin.Context) {
	id, ok := endpointID(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be 1-500")
			return
		}
		limit = v
	}
	checks, err := api.deps.Checks.LoadRecentChecks(c.Request.Context(), id, limit)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": checks})
}
