package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/dto"
	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/service"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/response"
)

type changeRequestService interface {
	Submit(ctx context.Context, req dto.SubmitChangeRequest, actorID string) (*models.ChangeRequest, error)
	Approve(ctx context.Context, id, actorID string) (*models.ChangeRequest, error)
	Reject(ctx context.Context, id string, req dto.RejectChangeRequest, actorID string) (*models.ChangeRequest, error)
	Complete(ctx context.Context, id, actorID string) (*models.ChangeRequest, error)
	Cancel(ctx context.Context, id, actorID string) error
	Get(ctx context.Context, id string) (*dto.ChangeRequestDetail, error)
	List(ctx context.Context, query dto.ChangeRequestQuery) ([]models.ChangeRequest, error)
}

type changeRequestExporter interface {
	Export(ctx context.Context, query dto.ExportChangeRequestsQuery) (*service.ExportFile, error)
}

// AuditHistoryReader lists the decision trail of a request.
type AuditHistoryReader interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.AuditLog, error)
}

// ChangeRequestHandler exposes the change request workflow.
type ChangeRequestHandler struct {
	service  changeRequestService
	exporter changeRequestExporter
	audit    AuditHistoryReader
}

// NewChangeRequestHandler constructs the handler. exporter and audit may be nil.
func NewChangeRequestHandler(svc changeRequestService, exporter changeRequestExporter, audit AuditHistoryReader) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: svc, exporter: exporter, audit: audit}
}

// Submit godoc
// @Summary Submit a change request
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitChangeRequest true "Change request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	var req dto.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid change request payload"))
		return
	}
	created, err := h.service.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List change requests
// @Tags ChangeRequests
// @Produce json
// @Param kind query string false "Subject kind"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	query, err := changeRequestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := parsePagination(c)
	items, pagination := paginate(requests, page, size)
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get change request detail
// @Tags ChangeRequests
// @Produce json
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a pending change request
// @Tags ChangeRequests
// @Produce json
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /change-requests/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	approved, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approved, nil)
}

// Reject godoc
// @Summary Reject a pending change request
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param id path string true "Change request ID"
// @Param payload body dto.RejectChangeRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /change-requests/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	var req dto.RejectChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	rejected, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rejected, nil)
}

// Complete godoc
// @Summary Finalise an approved change request
// @Tags ChangeRequests
// @Produce json
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id}/complete [post]
func (h *ChangeRequestHandler) Complete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	completed, err := h.service.Complete(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, completed, nil)
}

// Cancel godoc
// @Summary Cancel a change request
// @Tags ChangeRequests
// @Param id path string true "Change request ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /change-requests/{id} [delete]
func (h *ChangeRequestHandler) Cancel(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "change request service not configured"))
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export change request history
// @Tags ChangeRequests
// @Produce text/csv
// @Produce application/pdf
// @Param kind query string false "Subject kind"
// @Param status query string false "Comma separated statuses"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /change-requests/export [get]
func (h *ChangeRequestHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	query, err := changeRequestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), dto.ExportChangeRequestsQuery{
		Kind:   query.Kind,
		Status: query.Status,
		Format: dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format")))),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// AuditHistory godoc
// @Summary List audit entries for a change request
// @Tags ChangeRequests
// @Produce json
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Router /change-requests/{id}/audit [get]
func (h *ChangeRequestHandler) AuditHistory(c *gin.Context) {
	if h.audit == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "audit trail disabled"))
		return
	}
	logs, err := h.audit.ListByRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

func changeRequestQuery(c *gin.Context) (dto.ChangeRequestQuery, error) {
	var query dto.ChangeRequestQuery
	if rawKind := strings.TrimSpace(c.Query("kind")); rawKind != "" {
		kind := models.SubjectKind(strings.ToLower(rawKind))
		if !kind.Valid() {
			return query, appErrors.Clone(appErrors.ErrValidation, "unknown subject kind "+rawKind)
		}
		query.Kind = kind
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return query, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	query.Status = statuses
	return query, nil
}
