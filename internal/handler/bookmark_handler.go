package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/pkg/response"
)

type bookmarkService interface {
	Add(ctx context.Context, resourceID string, actor models.Actor) (*models.Bookmark, error)
	Remove(ctx context.Context, resourceID string, actor models.Actor) error
	List(ctx context.Context, actor models.Actor, page, pageSize int) ([]models.BookmarkedResource, *models.Pagination, error)
}

// BookmarkHandler manages a user's saved resources.
type BookmarkHandler struct {
	service bookmarkService
}

// NewBookmarkHandler constructs the handler.
func NewBookmarkHandler(svc bookmarkService) *BookmarkHandler {
	return &BookmarkHandler{service: svc}
}

// List godoc
// @Summary My bookmarks
// @Tags Bookmarks
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookmarks [get]
func (h *BookmarkHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Add godoc
// @Summary Bookmark resource
// @Tags Bookmarks
// @Produce json
// @Param id path string true "Resource ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/{id}/bookmark [post]
func (h *BookmarkHandler) Add(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	bookmark, err := h.service.Add(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bookmark)
}

// Remove godoc
// @Summary Remove bookmark
// @Tags Bookmarks
// @Param id path string true "Resource ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/bookmark [delete]
func (h *BookmarkHandler) Remove(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Remove(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
