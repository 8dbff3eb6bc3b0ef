package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// SubjectApplier mutates the subject records of one kind when a change request is approved or completed.
type SubjectApplier interface {
	ApplyEdit(ctx context.Context, req *models.ChangeRequest) error
	ApplyDelete(ctx context.Context, req *models.ChangeRequest) error
	Snapshot(ctx context.Context, subjectID string) (json.RawMessage, error)
}

// BatchResolver expands a voucher number into the records a global request covers.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, voucherNo string) ([]models.BatchMember, error)
}

// SubjectApplierFuncs allows using plain functions. Nil functions are no-ops.
type SubjectApplierFuncs struct {
	Edit   func(ctx context.Context, req *models.ChangeRequest) error
	Delete func(ctx context.Context, req *models.ChangeRequest) error
	Snap   func(ctx context.Context, subjectID string) (json.RawMessage, error)
}

// ApplyEdit implements SubjectApplier.
func (f SubjectApplierFuncs) ApplyEdit(ctx context.Context, req *models.ChangeRequest) error {
	if f.Edit == nil {
		return nil
	}
	return f.Edit(ctx, req)
}

// ApplyDelete implements SubjectApplier.
func (f SubjectApplierFuncs) ApplyDelete(ctx context.Context, req *models.ChangeRequest) error {
	if f.Delete == nil {
		return nil
	}
	return f.Delete(ctx, req)
}

// Snapshot implements SubjectApplier.
func (f SubjectApplierFuncs) Snapshot(ctx context.Context, subjectID string) (json.RawMessage, error) {
	if f.Snap == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.Snap(ctx, subjectID)
}

// SubjectRegistry maps subject kinds to their appliers.
type SubjectRegistry struct {
	mu       sync.RWMutex
	appliers map[models.SubjectKind]SubjectApplier
}

// NewSubjectRegistry returns an empty registry.
func NewSubjectRegistry() *SubjectRegistry {
	return &SubjectRegistry{appliers: make(map[models.SubjectKind]SubjectApplier)}
}

// NewDefaultSubjectRegistry registers record-backed appliers for every known kind, with the
// per-location stock logic for stock adjustments.
func NewDefaultSubjectRegistry(records recordMutator) *SubjectRegistry {
	registry := NewSubjectRegistry()
	for _, kind := range models.SubjectKinds {
		if kind == models.SubjectKindStockAdjustment {
			registry.Register(kind, NewStockAdjustmentApplier(records))
			continue
		}
		registry.Register(kind, NewRecordApplier(kind, records))
	}
	return registry
}

// Register sets or replaces the applier for kind.
func (r *SubjectRegistry) Register(kind models.SubjectKind, applier SubjectApplier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[kind] = applier
}

// Lookup returns the applier for kind.
func (r *SubjectRegistry) Lookup(kind models.SubjectKind) (SubjectApplier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	applier, ok := r.appliers[kind]
	return applier, ok
}

// Kinds lists registered kinds in canonical order.
func (r *SubjectRegistry) Kinds() []models.SubjectKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]models.SubjectKind, 0, len(r.appliers))
	for _, kind := range models.SubjectKinds {
		if _, ok := r.appliers[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
