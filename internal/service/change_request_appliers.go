package service

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

type recordMutator interface {
	Load(ctx context.Context, kind models.SubjectKind) ([]models.Record, error)
	Mutate(ctx context.Context, kinds []models.SubjectKind, fn func(repository.RecordSet) error) error
}

// RecordApplier merges proposed data into a record as an RFC 7396 merge patch and removes
// records on delete. The record id cannot be changed.
type RecordApplier struct {
	kind    models.SubjectKind
	records recordMutator
}

// NewRecordApplier constructs an applier for kind.
func NewRecordApplier(kind models.SubjectKind, records recordMutator) *RecordApplier {
	return &RecordApplier{kind: kind, records: records}
}

// ApplyEdit implements SubjectApplier.
func (a *RecordApplier) ApplyEdit(ctx context.Context, req *models.ChangeRequest) error {
	return a.records.Mutate(ctx, []models.SubjectKind{a.kind}, func(set repository.RecordSet) error {
		idx, record, ok := set.Find(a.kind, req.SubjectID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", a.kind, req.SubjectID))
		}
		merged, err := mergeRecord(record, req.ProposedData)
		if err != nil {
			return err
		}
		set[a.kind][idx] = merged
		return nil
	})
}

// ApplyDelete implements SubjectApplier. Deleting an already missing record succeeds.
func (a *RecordApplier) ApplyDelete(ctx context.Context, req *models.ChangeRequest) error {
	return a.records.Mutate(ctx, []models.SubjectKind{a.kind}, func(set repository.RecordSet) error {
		set.Remove(a.kind, req.SubjectID)
		return nil
	})
}

// Snapshot implements SubjectApplier.
func (a *RecordApplier) Snapshot(ctx context.Context, subjectID string) (json.RawMessage, error) {
	return snapshotRecord(ctx, a.records, a.kind, subjectID)
}

func snapshotRecord(ctx context.Context, records recordMutator, kind models.SubjectKind, subjectID string) (json.RawMessage, error) {
	collection, err := records.Load(ctx, kind)
	if err != nil {
		return nil, err
	}
	set := repository.RecordSet{kind: collection}
	_, record, ok := set.Find(kind, subjectID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", kind, subjectID))
	}
	return json.Marshal(record)
}

func mergeRecord(record models.Record, patch json.RawMessage) (models.Record, error) {
	if len(patch) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposedData is required")
	}
	original, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	mergedRaw, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "proposedData is not a mergeable object")
	}
	var merged models.Record
	if err := json.Unmarshal(mergedRaw, &merged); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "proposedData must be an object")
	}
	merged["id"] = record.ID()
	return merged, nil
}
