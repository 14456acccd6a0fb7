package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-repo-api/internal/middleware"
	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/response"
)

type dashboardService interface {
	Get(ctx context.Context, actor models.Actor) (*models.Dashboard, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Get godoc
// @Summary Role based dashboard
// @Description Summary shaped by the caller's role (admin, supervisor, student or faculty)
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Get(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, "role", actor.Role)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
