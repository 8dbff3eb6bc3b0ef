package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/dto"
	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

type changeRequestStore interface {
	List(ctx context.Context, kind models.SubjectKind) ([]models.ChangeRequest, error)
	Find(ctx context.Context, id string) (models.ChangeRequest, bool, error)
	Update(ctx context.Context, kind models.SubjectKind, fn func(*repository.Collection) error) ([]models.ChangeRequest, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// pushScheduler is notified after every local change so the kind reaches the remote store.
type pushScheduler interface {
	SchedulePush(kind models.SubjectKind)
}

const defaultRecencyWindow = 5 * time.Minute

// ChangeRequestService runs the approval workflow: submit, approve, reject, complete and cancel.
type ChangeRequestService struct {
	store         changeRequestStore
	registry      *SubjectRegistry
	pushes        pushScheduler
	audit         auditLogger
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
	uniquePending bool
	window        time.Duration
	clientID      string
}

// ChangeRequestServiceOption configures the service.
type ChangeRequestServiceOption func(*ChangeRequestService)

// WithChangeRequestClock overrides the time source.
func WithChangeRequestClock(now func() time.Time) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeRequestIDs overrides id generation.
func WithChangeRequestIDs(newID func() string) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithUniquePending rejects a second pending request for the same subject.
func WithUniquePending(enabled bool) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		s.uniquePending = enabled
	}
}

// WithRecencyWindow sets how long a pending request counts as unread after creation.
func WithRecencyWindow(window time.Duration) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithPushScheduler wires the sync loop.
func WithPushScheduler(pushes pushScheduler) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		s.pushes = pushes
	}
}

// WithChangeRequestAudit enables the decision audit trail.
func WithChangeRequestAudit(audit auditLogger, clientID string) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		s.audit = audit
		s.clientID = clientID
	}
}

// WithChangeRequestMetrics wires Prometheus counters.
func WithChangeRequestMetrics(metrics *MetricsService) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		s.metrics = metrics
	}
}

// NewChangeRequestService constructs the service with defaults.
func NewChangeRequestService(store changeRequestStore, registry *SubjectRegistry, validate *validator.Validate, logger *zap.Logger, opts ...ChangeRequestServiceOption) *ChangeRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewSubjectRegistry()
	}
	svc := &ChangeRequestService{
		store:         store,
		registry:      registry,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
		uniquePending: true,
		window:        defaultRecencyWindow,
	}
	registerChangeRequestValidations(svc.validator)
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func registerChangeRequestValidations(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("subject_kind", func(fl validator.FieldLevel) bool {
		return models.SubjectKind(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(dto.SubmitChangeRequest)
		if req.Action == models.ChangeActionEdit {
			trimmed := strings.TrimSpace(string(req.ProposedData))
			if trimmed == "" || trimmed == "null" || !json.Valid(req.ProposedData) {
				sl.ReportError(req.ProposedData, "ProposedData", "proposedData", "required_for_edit", "")
			}
		}
		if req.IsGlobal && req.SubjectKind != models.SubjectKindStockAdjustment {
			sl.ReportError(req.IsGlobal, "IsGlobal", "isGlobal", "stock_adjustment_only", "")
		}
	}, dto.SubmitChangeRequest{})
}

// Submit records a new pending request after checking the subject exists.
func (s *ChangeRequestService) Submit(ctx context.Context, req dto.SubmitChangeRequest, actorID string) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	applier, ok := s.registry.Lookup(req.SubjectKind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject kind %s is not registered", req.SubjectKind))
	}

	snapshot, err := applier.Snapshot(ctx, req.SubjectID)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", req.SubjectKind.DisplayName(), req.SubjectID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to capture current snapshot")
	}

	request := models.ChangeRequest{
		ID:              s.newID(),
		SubjectKind:     req.SubjectKind,
		SubjectID:       strings.TrimSpace(req.SubjectID),
		Action:          req.Action,
		Reason:          strings.TrimSpace(req.Reason),
		CurrentSnapshot: snapshot,
		Status:          models.ChangeRequestStatusPending,
		IsNew:           true,
		RequestedBy:     actorID,
		CreatedAt:       s.now().UTC(),
	}
	if req.Action == models.ChangeActionEdit {
		request.ProposedData = append(json.RawMessage(nil), req.ProposedData...)
	}
	if req.IsGlobal {
		if err := s.attachBatch(ctx, applier, &request, req.VoucherNo, snapshot); err != nil {
			return nil, err
		}
	}

	_, err = s.store.Update(ctx, request.SubjectKind, func(col *repository.Collection) error {
		if s.uniquePending {
			for _, existing := range col.Requests {
				if existing.Status == models.ChangeRequestStatusPending && targetsSameSubject(existing, request) {
					return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("change request %s is already pending for this subject", existing.ID))
				}
			}
		}
		col.Append(request)
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to store change request")
	}

	s.afterChange(ctx, request, models.AuditActionChangeRequestSubmit, actorID, nil, request.ProposedData)
	return &request, nil
}

func (s *ChangeRequestService) attachBatch(ctx context.Context, applier SubjectApplier, request *models.ChangeRequest, voucherNo string, snapshot json.RawMessage) error {
	resolver, ok := applier.(BatchResolver)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "subject kind does not support global requests")
	}
	if voucherNo == "" {
		var subject models.Record
		if err := json.Unmarshal(snapshot, &subject); err == nil {
			voucherNo = subject.String(models.FieldVoucherNo)
		}
	}
	if voucherNo == "" {
		return appErrors.Clone(appErrors.ErrValidation, "voucherNo is required for global requests")
	}
	members, err := resolver.ResolveBatch(ctx, voucherNo)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
			return appErrors.Clone(appErrors.ErrNotFound, err.Error())
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve batch")
	}
	request.IsGlobal = true
	request.VoucherNo = voucherNo
	request.BatchMembers = members
	return nil
}

// Approve decides a pending request. Edits are applied to the subject right away; deletions
// wait for Complete. When applying fails the request stays pending.
//
// The status re-check, the edit and the transition run under the kind's lock, so a
// concurrent Reject or pull can never leave an edit applied for a request that is not approved.
func (s *ChangeRequestService) Approve(ctx context.Context, id, actorID string) (*models.ChangeRequest, error) {
	current, err := s.findWithStatus(ctx, id, models.ChangeRequestStatusPending)
	if err != nil {
		return nil, err
	}

	var applier SubjectApplier
	if current.Action == models.ChangeActionEdit {
		var ok bool
		applier, ok = s.registry.Lookup(current.SubjectKind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrApply, fmt.Sprintf("no applier registered for %s", current.SubjectKind))
		}
	}

	decidedAt := s.now().UTC()
	var updated models.ChangeRequest
	_, err = s.store.Update(ctx, current.SubjectKind, func(col *repository.Collection) error {
		idx := col.Index(id)
		if idx < 0 || col.Requests[idx].Status != models.ChangeRequestStatusPending {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no pending change request with id %s", id))
		}

		work := col.Requests[idx].Clone()
		if applier != nil {
			if err := applier.ApplyEdit(ctx, &work); err != nil {
				s.logger.Warn("change request apply failed",
					zap.String("request_id", id),
					zap.String("kind", string(work.SubjectKind)),
					zap.Error(err),
				)
				return appErrors.Wrap(err, appErrors.ErrApply.Code, appErrors.ErrApply.Status, applyMessage(err))
			}
		}

		r := &col.Requests[idx]
		r.Status = models.ChangeRequestStatusApproved
		r.DecidedAt = &decidedAt
		r.DecidedBy = actorID
		r.IsNew = false
		if work.IsGlobal {
			r.BatchMembers = work.BatchMembers
		}
		updated = r.Clone()
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to approve change request")
	}

	s.afterChange(ctx, updated, models.AuditActionChangeRequestApprove, actorID, current.CurrentSnapshot, updated.ProposedData)
	return &updated, nil
}

// Reject decides a pending request without touching the subject.
func (s *ChangeRequestService) Reject(ctx context.Context, id string, req dto.RejectChangeRequest, actorID string) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	current, err := s.findWithStatus(ctx, id, models.ChangeRequestStatusPending)
	if err != nil {
		return nil, err
	}

	decidedAt := s.now().UTC()
	updated, err := s.transition(ctx, current.SubjectKind, id, models.ChangeRequestStatusPending, func(r *models.ChangeRequest) {
		r.Status = models.ChangeRequestStatusRejected
		r.RejectionReason = strings.TrimSpace(req.Reason)
		r.DecidedAt = &decidedAt
		r.DecidedBy = actorID
		r.IsNew = false
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, *updated, models.AuditActionChangeRequestReject, actorID, nil, nil)
	return updated, nil
}

// Complete finishes an approved request. For deletions the subject is removed now and every
// other request targeting it is dropped from the collection.
func (s *ChangeRequestService) Complete(ctx context.Context, id, actorID string) (*models.ChangeRequest, error) {
	current, ok, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load change request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
	}
	if !models.CanTransition(current.Status, models.ChangeRequestStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("change request is %s and cannot be completed", current.Status))
	}

	if current.Action == models.ChangeActionDelete {
		applier, ok := s.registry.Lookup(current.SubjectKind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrApply, fmt.Sprintf("no applier registered for %s", current.SubjectKind))
		}
		work := current.Clone()
		if err := applier.ApplyDelete(ctx, &work); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrApply.Code, appErrors.ErrApply.Status, applyMessage(err))
		}
	}

	completedAt := s.now().UTC()
	var completed models.ChangeRequest
	_, err = s.store.Update(ctx, current.SubjectKind, func(col *repository.Collection) error {
		idx := col.Index(id)
		if idx < 0 || col.Requests[idx].Status != models.ChangeRequestStatusApproved {
			return appErrors.Clone(appErrors.ErrConflict, "change request changed while completing")
		}
		col.Requests[idx].Status = models.ChangeRequestStatusCompleted
		col.Requests[idx].CompletedAt = &completedAt
		col.Requests[idx].IsNew = false
		completed = col.Requests[idx].Clone()
		if completed.Action == models.ChangeActionDelete {
			removed := col.RemoveWhere(func(r models.ChangeRequest) bool {
				return r.ID != id && targetsSameSubject(r, completed)
			})
			if len(removed) > 0 {
				s.logger.Info("dropped requests for deleted subject",
					zap.String("kind", string(completed.SubjectKind)),
					zap.String("subject_id", completed.SubjectID),
					zap.Int("count", len(removed)),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to complete change request")
	}

	s.afterChange(ctx, completed, models.AuditActionChangeRequestComplete, actorID, nil, nil)
	return &completed, nil
}

// Cancel removes a request that is approved but not completed, or a pending request of the
// caller's own.
func (s *ChangeRequestService) Cancel(ctx context.Context, id, actorID string) error {
	current, ok, err := s.store.Find(ctx, id)
	if err != nil {
		return storeError(err, "failed to load change request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "change request not found")
	}
	if err := canCancel(current, actorID); err != nil {
		return err
	}

	_, err = s.store.Update(ctx, current.SubjectKind, func(col *repository.Collection) error {
		idx := col.Index(id)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		if err := canCancel(col.Requests[idx], actorID); err != nil {
			return err
		}
		col.RemoveWhere(func(r models.ChangeRequest) bool { return r.ID == id })
		return nil
	})
	if err != nil {
		return storeError(err, "failed to cancel change request")
	}

	cancelled := current.Clone()
	cancelled.Status = models.ChangeRequestStatusCancelled
	s.afterChange(ctx, cancelled, models.AuditActionChangeRequestCancel, actorID, nil, nil)
	return nil
}

func canCancel(r models.ChangeRequest, actorID string) error {
	if !models.CanTransition(r.Status, models.ChangeRequestStatusCancelled) {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("change request is %s and cannot be cancelled", r.Status))
	}
	if r.Status == models.ChangeRequestStatusPending && r.RequestedBy != "" && r.RequestedBy != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester can withdraw a pending request")
	}
	return nil
}

// Get returns a request with its confirmation text.
func (s *ChangeRequestService) Get(ctx context.Context, id string) (*dto.ChangeRequestDetail, error) {
	request, ok, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load change request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
	}
	return &dto.ChangeRequestDetail{
		Request:      request,
		ActionLabel:  request.Action.Label(request.SubjectKind),
		Confirmation: Describe(request),
	}, nil
}

// ListByKind returns the kind's requests, optionally restricted to statuses.
func (s *ChangeRequestService) ListByKind(ctx context.Context, kind models.SubjectKind, statuses ...models.ChangeRequestStatus) ([]models.ChangeRequest, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject kind %q", kind))
	}
	requests, err := s.store.List(ctx, kind)
	if err != nil {
		return nil, storeError(err, "failed to list change requests")
	}
	filter := models.ChangeRequestFilter{Kind: kind, Status: statuses}
	result := make([]models.ChangeRequest, 0, len(requests))
	for _, r := range requests {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	SortChangeRequests(result)
	return result, nil
}

// List returns requests across every kind matching the query.
func (s *ChangeRequestService) List(ctx context.Context, query dto.ChangeRequestQuery) ([]models.ChangeRequest, error) {
	if query.Kind != "" {
		return s.ListByKind(ctx, query.Kind, query.Status...)
	}
	var result []models.ChangeRequest
	for _, kind := range models.SubjectKinds {
		requests, err := s.ListByKind(ctx, kind, query.Status...)
		if err != nil {
			return nil, err
		}
		result = append(result, requests...)
	}
	SortChangeRequests(result)
	return result, nil
}

// UnreadCount counts pending requests that are unacknowledged or created within the recency window.
func (s *ChangeRequestService) UnreadCount(ctx context.Context) (int, error) {
	now := s.now()
	count := 0
	for _, kind := range models.SubjectKinds {
		requests, err := s.store.List(ctx, kind)
		if err != nil {
			return 0, storeError(err, "failed to count notifications")
		}
		for _, r := range requests {
			if r.IsUnread(now, s.window) {
				count++
			}
		}
	}
	s.metrics.SetUnread(count)
	return count, nil
}

// MarkAllRead acknowledges every pending request across kinds and pushes the touched kinds.
func (s *ChangeRequestService) MarkAllRead(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range models.SubjectKinds {
		touched := 0
		_, err := s.store.Update(ctx, kind, func(col *repository.Collection) error {
			for i := range col.Requests {
				if col.Requests[i].Status == models.ChangeRequestStatusPending && col.Requests[i].IsNew {
					col.Requests[i].IsNew = false
					touched++
				}
			}
			return nil
		})
		if err != nil {
			return total, storeError(err, "failed to mark notifications read")
		}
		if touched > 0 {
			total += touched
			s.schedulePush(kind)
		}
	}
	if _, err := s.UnreadCount(ctx); err != nil {
		s.logger.Warn("failed to refresh unread count", zap.Error(err))
	}
	return total, nil
}

// Describe builds the confirmation sentence shown before an approver decides.
func Describe(r models.ChangeRequest) string {
	name := r.SubjectID
	var subject models.Record
	if len(r.CurrentSnapshot) > 0 && json.Unmarshal(r.CurrentSnapshot, &subject) == nil {
		for _, key := range []string{"name", "nama", models.FieldVoucherNo, "code"} {
			if v := subject.String(key); v != "" {
				name = v
				break
			}
		}
	}
	target := fmt.Sprintf("%s %q", r.SubjectKind.DisplayName(), name)
	if name != r.SubjectID {
		target += " (" + r.SubjectID + ")"
	}
	if r.IsGlobal {
		target = fmt.Sprintf("%s voucher %s (%d item)", r.SubjectKind.DisplayName(), r.VoucherNo, len(r.BatchMembers))
	}
	return fmt.Sprintf("%s %s dengan alasan: %s", r.Action.Label(r.SubjectKind), target, r.Reason)
}

func (s *ChangeRequestService) findWithStatus(ctx context.Context, id string, status models.ChangeRequestStatus) (models.ChangeRequest, error) {
	request, ok, err := s.store.Find(ctx, id)
	if err != nil {
		return models.ChangeRequest{}, storeError(err, "failed to load change request")
	}
	if !ok || request.Status != status {
		return models.ChangeRequest{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s change request with id %s", strings.ToLower(string(status)), id))
	}
	return request, nil
}

// transition mutates one request under its kind's lock after re-checking its status.
func (s *ChangeRequestService) transition(ctx context.Context, kind models.SubjectKind, id string, from models.ChangeRequestStatus, mutate func(*models.ChangeRequest)) (*models.ChangeRequest, error) {
	var updated models.ChangeRequest
	_, err := s.store.Update(ctx, kind, func(col *repository.Collection) error {
		idx := col.Index(id)
		if idx < 0 || col.Requests[idx].Status != from {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s change request with id %s", strings.ToLower(string(from)), id))
		}
		mutate(&col.Requests[idx])
		updated = col.Requests[idx].Clone()
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to update change request")
	}
	return &updated, nil
}

func (s *ChangeRequestService) afterChange(ctx context.Context, r models.ChangeRequest, action, actorID string, oldValues, newValues []byte) {
	s.schedulePush(r.SubjectKind)
	s.metrics.RecordTransition(r.SubjectKind, action)
	s.logger.Info("change request updated",
		zap.String("action", action),
		zap.String("request_id", r.ID),
		zap.String("kind", string(r.SubjectKind)),
		zap.String("status", string(r.Status)),
	)
	s.emitAudit(ctx, r, action, actorID, oldValues, newValues)
}

func (s *ChangeRequestService) schedulePush(kind models.SubjectKind) {
	if s.pushes != nil {
		s.pushes.SchedulePush(kind)
	}
}

func (s *ChangeRequestService) emitAudit(ctx context.Context, r models.ChangeRequest, action, actorID string, oldValues, newValues []byte) {
	if s.audit == nil {
		return
	}
	requestID, subjectID := r.ID, r.SubjectID
	log := &models.AuditLog{
		Action:     action,
		Resource:   string(r.SubjectKind),
		ResourceID: &subjectID,
		RequestID:  &requestID,
		OldValues:  oldValues,
		NewValues:  newValues,
		ClientID:   s.clientID,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func targetsSameSubject(a, b models.ChangeRequest) bool {
	if a.SubjectKind != b.SubjectKind {
		return false
	}
	if a.SubjectID == b.SubjectID {
		return true
	}
	return a.VoucherNo != "" && a.VoucherNo == b.VoucherNo
}

func storeError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func applyMessage(err error) string {
	var typed *appErrors.Error
	if errors.As(err, &typed) && typed.Message != "" {
		return "failed to apply change: " + typed.Message
	}
	return appErrors.ErrApply.Message
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid payload"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required_for_edit":
			parts = append(parts, "proposedData is required for EDIT_DATA")
		case "stock_adjustment_only":
			parts = append(parts, "isGlobal is only supported for stock adjustments")
		case "subject_kind":
			parts = append(parts, fmt.Sprintf("unknown subject kind %q", fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s is %s", lowerFirst(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
