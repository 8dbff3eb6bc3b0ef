package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

// StockAdjustmentApplier keeps product stock per location in step with stock adjustment
// records. Every member of a request is written in one local transaction.
type StockAdjustmentApplier struct {
	records recordMutator
}

// NewStockAdjustmentApplier constructs the applier.
func NewStockAdjustmentApplier(records recordMutator) *StockAdjustmentApplier {
	return &StockAdjustmentApplier{records: records}
}

var stockKinds = []models.SubjectKind{models.SubjectKindProduct, models.SubjectKindStockAdjustment}

// stockProposal is the proposed quantity for one adjustment record.
type stockProposal struct {
	delta     *int
	afterQty  *int
	beforeQty *int
	extra     map[string]json.RawMessage
}

func (p stockProposal) newDelta(before int) (int, error) {
	if p.delta != nil {
		return *p.delta, nil
	}
	if p.afterQty != nil {
		if p.beforeQty != nil {
			before = *p.beforeQty
		}
		return *p.afterQty - before, nil
	}
	return 0, appErrors.Clone(appErrors.ErrValidation, "stock adjustment proposal needs delta or afterQty")
}

// stockProposals holds either one proposal shared by every member or one per record id.
type stockProposals struct {
	shared   *stockProposal
	byRecord map[string]stockProposal
}

func (p stockProposals) forRecord(id string) (stockProposal, error) {
	if proposal, ok := p.byRecord[id]; ok {
		return proposal, nil
	}
	if p.shared != nil {
		return *p.shared, nil
	}
	return stockProposal{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no proposed quantity for adjustment %s", id))
}

// parseStockProposals accepts an object (shared), an array of per-record objects, or an
// object with a "members" array.
func parseStockProposals(raw json.RawMessage) (stockProposals, error) {
	var out stockProposals
	if len(raw) == 0 {
		return out, appErrors.Clone(appErrors.ErrValidation, "proposedData is required")
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(raw, &object); err != nil {
			return out, appErrors.Clone(appErrors.ErrValidation, "invalid stock adjustment payload")
		}
		members, ok := object["members"]
		if !ok {
			proposal, err := parseStockProposal(object)
			if err != nil {
				return out, err
			}
			out.shared = &proposal
			return out, nil
		}
		if err := json.Unmarshal(members, &items); err != nil {
			return out, appErrors.Clone(appErrors.ErrValidation, "members must be an array")
		}
	}

	out.byRecord = make(map[string]stockProposal, len(items))
	for _, item := range items {
		id, ok, err := readString(item, "id", "subjectId")
		if err != nil || !ok || *id == "" {
			return out, appErrors.Clone(appErrors.ErrValidation, "every member proposal needs an id")
		}
		proposal, err := parseStockProposal(item)
		if err != nil {
			return out, err
		}
		out.byRecord[*id] = proposal
	}
	return out, nil
}

func parseStockProposal(payload map[string]json.RawMessage) (stockProposal, error) {
	var p stockProposal
	var err error
	if p.delta, err = readInt(payload, models.FieldDelta, "qty"); err != nil {
		return p, appErrors.Clone(appErrors.ErrValidation, "delta must be a number")
	}
	if p.afterQty, err = readInt(payload, models.FieldAfterQty); err != nil {
		return p, appErrors.Clone(appErrors.ErrValidation, "afterQty must be a number")
	}
	if p.beforeQty, err = readInt(payload, models.FieldBeforeQty); err != nil {
		return p, appErrors.Clone(appErrors.ErrValidation, "beforeQty must be a number")
	}
	p.extra = make(map[string]json.RawMessage)
	for key, value := range payload {
		switch key {
		case "id", "subjectId", "qty", models.FieldDelta, models.FieldAfterQty, models.FieldBeforeQty, models.FieldAppliedDelta:
			continue
		}
		p.extra[key] = value
	}
	return p, nil
}

func stockMembers(req *models.ChangeRequest) ([]models.BatchMember, error) {
	if !req.IsGlobal {
		return []models.BatchMember{{SubjectID: req.SubjectID}}, nil
	}
	if len(req.BatchMembers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "global stock adjustment has no batch members")
	}
	return req.BatchMembers, nil
}

// ApplyEdit writes each member's new quantity into product stock. A member whose applied
// delta already equals the proposed one is skipped, so approving twice changes nothing.
func (a *StockAdjustmentApplier) ApplyEdit(ctx context.Context, req *models.ChangeRequest) error {
	members, err := stockMembers(req)
	if err != nil {
		return err
	}
	proposals, err := parseStockProposals(req.ProposedData)
	if err != nil {
		return err
	}

	updated := make([]models.BatchMember, len(members))
	err = a.records.Mutate(ctx, stockKinds, func(set repository.RecordSet) error {
		for i, member := range members {
			applied, err := applyStockMember(set, member, proposals)
			if err != nil {
				return err
			}
			updated[i] = applied
		}
		return nil
	})
	if err != nil {
		return err
	}

	if req.IsGlobal {
		req.BatchMembers = updated
	}
	return nil
}

func applyStockMember(set repository.RecordSet, member models.BatchMember, proposals stockProposals) (models.BatchMember, error) {
	idx, record, ok := set.Find(models.SubjectKindStockAdjustment, member.SubjectID)
	if !ok {
		return member, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("stock adjustment %s not found", member.SubjectID))
	}
	proposal, err := proposals.forRecord(member.SubjectID)
	if err != nil {
		return member, err
	}

	current := models.BatchMemberFromRecord(record)
	if current.ProductID == "" {
		current.ProductID = member.ProductID
	}
	if current.LocationID == "" {
		current.LocationID = member.LocationID
	}
	_, product, ok := set.Find(models.SubjectKindProduct, current.ProductID)
	if !ok {
		return member, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("product %s not found", current.ProductID))
	}

	before, ok := record.Int(models.FieldBeforeQty)
	if !ok {
		before = product.StockAt(current.LocationID)
	}
	newDelta, err := proposal.newDelta(before)
	if err != nil {
		return member, err
	}

	applied := current.AppliedDelta
	if applied == nil {
		applied = member.AppliedDelta
	}
	if applied != nil && *applied == newDelta {
		current.AppliedDelta = applied
		return current, nil
	}

	if len(proposal.extra) > 0 {
		patch, err := json.Marshal(proposal.extra)
		if err != nil {
			return member, fmt.Errorf("encode adjustment patch: %w", err)
		}
		if record, err = mergeRecord(record, patch); err != nil {
			return member, err
		}
	}

	after := before + newDelta
	product.SetStockAt(current.LocationID, after)

	record[models.FieldProductID] = current.ProductID
	record[models.FieldLocationID] = current.LocationID
	record[models.FieldBeforeQty] = before
	record[models.FieldDelta] = newDelta
	record[models.FieldAfterQty] = after
	record[models.FieldAppliedDelta] = newDelta
	set[models.SubjectKindStockAdjustment][idx] = record

	current.BeforeQty = before
	current.Delta = newDelta
	current.AppliedDelta = &newDelta
	return current, nil
}

// ApplyDelete reverses the applied delta of every member and removes the adjustment records.
// Members already gone are skipped.
func (a *StockAdjustmentApplier) ApplyDelete(ctx context.Context, req *models.ChangeRequest) error {
	members, err := stockMembers(req)
	if err != nil {
		return err
	}

	return a.records.Mutate(ctx, stockKinds, func(set repository.RecordSet) error {
		for _, member := range members {
			_, record, ok := set.Find(models.SubjectKindStockAdjustment, member.SubjectID)
			if !ok {
				continue
			}
			current := models.BatchMemberFromRecord(record)
			if current.ProductID == "" {
				current.ProductID = member.ProductID
			}
			if current.LocationID == "" {
				current.LocationID = member.LocationID
			}

			reverse := current.Delta
			switch {
			case current.AppliedDelta != nil:
				reverse = *current.AppliedDelta
			case member.AppliedDelta != nil:
				reverse = *member.AppliedDelta
			}

			if _, product, ok := set.Find(models.SubjectKindProduct, current.ProductID); ok {
				product.SetStockAt(current.LocationID, product.StockAt(current.LocationID)-reverse)
			}
			set.Remove(models.SubjectKindStockAdjustment, member.SubjectID)
		}
		return nil
	})
}

// Snapshot implements SubjectApplier.
func (a *StockAdjustmentApplier) Snapshot(ctx context.Context, subjectID string) (json.RawMessage, error) {
	return snapshotRecord(ctx, a.records, models.SubjectKindStockAdjustment, subjectID)
}

// ResolveBatch implements BatchResolver.
func (a *StockAdjustmentApplier) ResolveBatch(ctx context.Context, voucherNo string) ([]models.BatchMember, error) {
	records, err := a.records.Load(ctx, models.SubjectKindStockAdjustment)
	if err != nil {
		return nil, err
	}
	var members []models.BatchMember
	for _, record := range records {
		if record.String(models.FieldVoucherNo) == voucherNo {
			members = append(members, models.BatchMemberFromRecord(record))
		}
	}
	if len(members) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no stock adjustments with voucher %s", voucherNo))
	}
	return members, nil
}

func readString(payload map[string]json.RawMessage, keys ...string) (*string, bool, error) {
	for _, key := range keys {
		if raw, ok := payload[key]; ok {
			var val string
			if err := json.Unmarshal(raw, &val); err != nil {
				return nil, false, err
			}
			return &val, true, nil
		}
	}
	return nil, false, nil
}

func readInt(payload map[string]json.RawMessage, keys ...string) (*int, error) {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var val float64
		if err := json.Unmarshal(raw, &val); err != nil {
			return nil, err
		}
		n := int(val)
		return &n, nil
	}
	return nil, nil
}
