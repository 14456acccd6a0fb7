package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/service"
	"github.com/noah-isme/academic-repo-api/pkg/response"
)

type commentService interface {
	List(ctx context.Context, resourceID string, actor models.Actor, page, pageSize int) ([]models.Comment, *models.Pagination, error)
	Create(ctx context.Context, resourceID string, actor models.Actor, req service.CommentRequest) (*models.Comment, error)
	Update(ctx context.Context, id string, actor models.Actor, req service.CommentRequest) (*models.Comment, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// CommentHandler serves resource discussion threads.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(svc commentService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// List godoc
// @Summary List comments
// @Tags Comments
// @Produce json
// @Param id path string true "Resource ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)

	comments, pagination, err := h.service.List(c.Request.Context(), c.Param("id"), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comments, pagination)
}

// Create godoc
// @Summary Add comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid payload")
		return
	}

	comment, err := h.service.Create(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, comment)
}

// Update godoc
// @Summary Edit comment
// @Description Author or admin only
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param payload body service.CommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /comments/{id} [put]
func (h *CommentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid payload")
		return
	}

	comment, err := h.service.Update(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comment, nil)
}

// Delete godoc
// @Summary Delete comment
// @Description Author, admin or the resource uploader
// @Tags Comments
// @Param id path string true "Comment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
