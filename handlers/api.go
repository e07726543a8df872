package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/middleware"
)

// APIHandler serves the caller-scoped profile and crop endpoints.
type APIHandler struct {
	profiles *profiles.Service
	crops    *crops.Service
}

func NewAPIHandler(p *profiles.Service, c *crops.Service) *APIHandler {
	return &APIHandler{profiles: p, crops: c}
}

// Register mounts /api/profile and /api/crops behind RequireIdentity, so
// no handler runs for an anonymous request. perCaller middlewares (rate
// limiters) run after identity is resolved and can key on CallerID.
func (h *APIHandler) Register(rg *gin.RouterGroup, resolver middleware.IdentityResolver, perCaller ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{countRequests(), middleware.RequireIdentity(resolver)}, perCaller...)
	api := rg.Group("/api", chain...)
	api.POST("/profile", h.SaveProfile)
	api.PUT("/profile", h.SaveProfile)
	api.GET("/profile", h.GetProfile)
	api.POST("/crops", h.AddCrop)
	api.GET("/crops", h.ListCrops)
}

// bindBody decodes a JSON body; a missing body counts as {}.
func bindBody(c *gin.Context, v interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	return true
}

// fail writes err as {error} with the status of its kind.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// SaveProfile upserts the caller's profile from {name, email, district}.
func (h *APIHandler) SaveProfile(c *gin.Context) {
	var in profiles.Input
	if !bindBody(c, &in) {
		return
	}
	if _, err := h.profiles.Save(c.Request.Context(), middleware.CallerID(c), in); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetProfile returns the caller's profile, or {} when there is none.
func (h *APIHandler) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, p)
}

// AddCrop accepts {name} and returns {id}.
func (h *APIHandler) AddCrop(c *gin.Context) {
	var in crops.Input
	if !bindBody(c, &in) {
		return
	}
	id, err := h.crops.Add(c.Request.Context(), middleware.CallerID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// ListCrops returns the caller's crops, newest first.
func (h *APIHandler) ListCrops(c *gin.Context) {
	list, err := h.crops.List(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
