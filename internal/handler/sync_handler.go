package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/response"
)

type syncController interface {
	Pull(ctx context.Context, kind models.SubjectKind) error
	PullAll(ctx context.Context) error
	Push(ctx context.Context, kind models.SubjectKind) error
	Flush(ctx context.Context) error
	Status(ctx context.Context, window time.Duration) (models.SyncStatus, error)
}

type recordLoader interface {
	Load(ctx context.Context, kind models.SubjectKind) ([]models.Record, error)
}

// SyncHandler lets operators inspect and drive the dual-store sync.
type SyncHandler struct {
	loop    syncController
	records recordLoader
	window  time.Duration
}

// NewSyncHandler constructs a sync handler. window is the unread recency window reported in status.
func NewSyncHandler(loop syncController, records recordLoader, window time.Duration) *SyncHandler {
	return &SyncHandler{loop: loop, records: records, window: window}
}

// Status godoc
// @Summary Sync status per subject kind
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	if h.loop == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sync loop not configured"))
		return
	}
	status, err := h.loop.Status(c.Request.Context(), h.window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Pull godoc
// @Summary Pull and reconcile from the shared store
// @Tags Sync
// @Produce json
// @Param kind query string false "Subject kind, all kinds when empty"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sync/pull [post]
func (h *SyncHandler) Pull(c *gin.Context) {
	if h.loop == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sync loop not configured"))
		return
	}
	kind, err := optionalKind(c.Query("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if kind == "" {
		err = h.loop.PullAll(c.Request.Context())
	} else {
		err = h.loop.Pull(c.Request.Context(), kind)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.Status(c)
}

// Push godoc
// @Summary Push local changes to the shared store
// @Tags Sync
// @Produce json
// @Param kind query string false "Subject kind, every dirty kind when empty"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sync/push [post]
func (h *SyncHandler) Push(c *gin.Context) {
	if h.loop == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sync loop not configured"))
		return
	}
	kind, err := optionalKind(c.Query("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if kind == "" {
		err = h.loop.Flush(c.Request.Context())
	} else {
		err = h.loop.Push(c.Request.Context(), kind)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.Status(c)
}

// Records godoc
// @Summary List the locally cached records of a kind
// @Tags Sync
// @Produce json
// @Param kind path string true "Subject kind"
// @Success 200 {object} response.Envelope
// @Router /records/{kind} [get]
func (h *SyncHandler) Records(c *gin.Context) {
	if h.records == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record store not configured"))
		return
	}
	kind, err := optionalKind(c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if kind == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind is required"))
		return
	}
	records, err := h.records.Load(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := parsePagination(c)
	items, pagination := paginate(records, page, size)
	response.JSON(c, http.StatusOK, items, pagination)
}

func optionalKind(raw string) (models.SubjectKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	kind := models.SubjectKind(strings.ToLower(raw))
	if !kind.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown subject kind "+raw)
	}
	return kind, nil
}
