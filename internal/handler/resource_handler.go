package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-repo-api/internal/middleware"
	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/service"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/response"
	"github.com/noah-isme/academic-repo-api/pkg/storage"
)

type resourceService interface {
	Upload(ctx context.Context, actor models.Actor, req service.UploadResourceRequest, file service.UploadedFile) (*models.Resource, error)
	Find(ctx context.Context, id string, actor models.Actor) (*models.Resource, error)
	Get(ctx context.Context, id string, actor models.Actor, meta service.AccessMeta) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error)
	Update(ctx context.Context, id string, actor models.Actor, req service.UpdateResourceRequest) (*models.Resource, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	SetStatus(ctx context.Context, id string, actor models.Actor, status models.ResourceStatus, rejectionReason *string) (*models.Resource, error)
	Download(ctx context.Context, id string, actor models.Actor, meta service.AccessMeta) (*models.Resource, *storage.Object, error)
	PreviewURL(ctx context.Context, id string, actor models.Actor) (*service.PreviewLink, error)
	Preview(ctx context.Context, id, token string, meta service.AccessMeta) (*models.Resource, *storage.Object, error)
	AccessLogs(ctx context.Context, id string, actor models.Actor, page, pageSize int) ([]models.AccessLog, *models.Pagination, error)
	Stats(ctx context.Context) (*models.ResourceStats, bool, error)
}

type approvalNotifier interface {
	NotifyApproval(ctx context.Context, res *models.Resource) (*models.FanOutResult, error)
}

type resourceExporter interface {
	Resources(ctx context.Context, filter models.ResourceFilter, format models.ReportFormat) (*models.ReportDocument, error)
}

// StatusRequest is the moderation decision payload. The reason is accepted
// as rejectionReason or rejection_reason.
type StatusRequest struct {
	Status               models.ResourceStatus `json:"status" binding:"required"`
	RejectionReason      *string               `json:"rejectionReason"`
	RejectionReasonSnake *string               `json:"rejection_reason"`
}

// Reason returns the rejection reason from whichever key was sent.
func (r StatusRequest) Reason() *string {
	if r.RejectionReason != nil {
		return r.RejectionReason
	}
	return r.RejectionReasonSnake
}

// ResourceHandler exposes resource upload, moderation and access endpoints.
type ResourceHandler struct {
	resources resourceService
	notifier  approvalNotifier
	exporter  resourceExporter
}

// NewResourceHandler constructs the handler.
func NewResourceHandler(resources resourceService, notifier approvalNotifier, exporter resourceExporter) *ResourceHandler {
	return &ResourceHandler{resources: resources, notifier: notifier, exporter: exporter}
}

// List godoc
// @Summary List resources
// @Description Resources visible to the caller. Non-moderators only see approved items plus their own.
// @Tags Resources
// @Produce json
// @Param type query string false "Resource type"
// @Param department query string false "Department"
// @Param status query string false "Status"
// @Param search query string false "Search in title and description"
// @Param year query int false "Academic year"
// @Param course query string false "Course"
// @Param mine query bool false "Only my uploads"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := resourceFilterFromQuery(c, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.resources.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Upload godoc
// @Summary Upload resource
// @Description Multipart upload; the resource starts pending review
// @Tags Resources
// @Accept mpfd
// @Produce json
// @Param file formData file true "Resource file"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param type formData string true "past-exam, mini-project, final-project or thesis"
// @Param department formData string true "Department"
// @Param student_id formData string false "Student ID"
// @Param supervisor_id formData string false "Supervisor ID"
// @Param supervisor_name formData string false "Supervisor full name"
// @Param year formData int false "Year"
// @Param semester formData string false "Semester"
// @Param course formData string false "Course"
// @Param tags formData string false "Comma separated tags"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		invalidPayload(c, err, "file is required")
		return
	}
	req, err := uploadRequestFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		invalidPayload(c, err, "unable to read uploaded file")
		return
	}
	defer file.Close()

	res, err := h.resources.Upload(c.Request.Context(), actor, req, uploadedFile(header, file))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Get godoc
// @Summary Get resource
// @Description Returns the resource and records a view
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	res, err := h.resources.Get(c.Request.Context(), c.Param("id"), actor, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Update godoc
// @Summary Update resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.UpdateResourceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req service.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid payload")
		return
	}

	res, err := h.resources.Update(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Delete godoc
// @Summary Delete resource
// @Description Removes the resource, its comments, bookmarks, logs and the stored file
// @Tags Resources
// @Param id path string true "Resource ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.resources.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SetStatus godoc
// @Summary Approve or reject resource
// @Description Rejections require a reason. Admin approvals broadcast to all active users.
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body StatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/status [patch]
func (h *ResourceHandler) SetStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "status is required")
		return
	}

	res, err := h.resources.SetStatus(c.Request.Context(), c.Param("id"), actor, req.Status, req.Reason())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, fmt.Sprintf("resource %s", res.Status), res)
}

// Download godoc
// @Summary Download resource file
// @Tags Resources
// @Produce octet-stream
// @Param id path string true "Resource ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/download [get]
func (h *ResourceHandler) Download(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	res, obj, err := h.resources.Download(c.Request.Context(), c.Param("id"), actor, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, res.MimeType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", res.FileName),
	})
}

// PreviewURL godoc
// @Summary Issue preview link
// @Description Returns a short-lived signed URL for inline viewing
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/preview-url [get]
func (h *ResourceHandler) PreviewURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	link, err := h.resources.PreviewURL(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, link, nil)
}

// Preview godoc
// @Summary Inline preview
// @Description Streams the file inline when the signed token is valid
// @Tags Resources
// @Produce octet-stream
// @Param id path string true "Resource ID"
// @Param token query string true "Signed preview token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /resources/{id}/preview [get]
func (h *ResourceHandler) Preview(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "preview token required"))
		return
	}

	res, obj, err := h.resources.Preview(c.Request.Context(), c.Param("id"), token, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, res.MimeType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", res.FileName),
		"Cache-Control":       "private, no-store",
	})
}

// AccessLogs godoc
// @Summary Resource access history
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/access-logs [get]
func (h *ResourceHandler) AccessLogs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)

	logs, pagination, err := h.resources.AccessLogs(c.Request.Context(), c.Param("id"), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}

// NotifyApproval godoc
// @Summary Broadcast approval
// @Description Synchronously emails every active user about an approved resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/{id}/notify-approval [post]
func (h *ResourceHandler) NotifyApproval(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if h.notifier == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	res, err := h.resources.Find(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Status != models.ResourceStatusApproved {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "resource is not approved"))
		return
	}

	result, err := h.notifier.NotifyApproval(c.Request.Context(), res)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export resource report
// @Tags Resources
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Param type query string false "Resource type"
// @Param status query string false "Status"
// @Param department query string false "Department"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /resources/export [get]
func (h *ResourceHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := resourceFilterFromQuery(c, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := models.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ReportFormatCSV))))
	doc, err := h.exporter.Resources(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// Stats godoc
// @Summary Resource counters
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /resources/stats [get]
func (h *ResourceHandler) Stats(c *gin.Context) {
	stats, hit, err := h.resources.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)

	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

func accessMeta(c *gin.Context) service.AccessMeta {
	return service.AccessMeta{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func resourceFilterFromQuery(c *gin.Context, actor models.Actor) (models.ResourceFilter, error) {
	filter := models.ResourceFilter{
		Type:       models.ResourceType(strings.TrimSpace(c.Query("type"))),
		Department: strings.TrimSpace(c.Query("department")),
		Status:     models.ResourceStatus(strings.TrimSpace(c.Query("status"))),
		Search:     strings.TrimSpace(c.Query("search")),
		Course:     strings.TrimSpace(c.Query("course")),
		Viewer:     actor,
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "year must be a number")
		}
		filter.Year = &year
	}
	if mine, err := strconv.ParseBool(c.Query("mine")); err == nil && mine {
		filter.UploadedBy = actor.ID
	}

	return filter, nil
}

func uploadRequestFromForm(c *gin.Context) (service.UploadResourceRequest, error) {
	req := service.UploadResourceRequest{
		Title:          c.PostForm("title"),
		Description:    c.PostForm("description"),
		Type:           models.ResourceType(strings.TrimSpace(c.PostForm("type"))),
		Department:     c.PostForm("department"),
		StudentID:      optionalForm(c, "studentId", "student_id"),
		SupervisorID:   optionalForm(c, "supervisorId", "supervisor_id"),
		SupervisorName: optionalForm(c, "supervisorName", "supervisor_name"),
		Semester:       optionalForm(c, "semester"),
		Course:         optionalForm(c, "course"),
		Tags:           formTags(c),
	}
	if raw := strings.TrimSpace(c.PostForm("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return req, appErrors.Clone(appErrors.ErrValidation, "year must be a number")
		}
		req.Year = &year
	}
	return req, nil
}

// optionalForm returns the first non-blank value among keys.
func optionalForm(c *gin.Context, keys ...string) *string {
	for _, key := range keys {
		value, ok := c.GetPostForm(key)
		if ok && strings.TrimSpace(value) != "" {
			return &value
		}
	}
	return nil
}

// formTags accepts repeated tags fields as well as a comma separated list.
func formTags(c *gin.Context) []string {
	var tags []string
	for _, raw := range c.PostFormArray("tags") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func uploadedFile(header *multipart.FileHeader, file multipart.File) service.UploadedFile {
	return service.UploadedFile{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
}
