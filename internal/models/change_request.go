package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SubjectKind identifies the record collection a change request targets.
type SubjectKind string

const (
	SubjectKindCategory        SubjectKind = "category"
	SubjectKindUnit            SubjectKind = "unit"
	SubjectKindSupplier        SubjectKind = "supplier"
	SubjectKindCustomer        SubjectKind = "customer"
	SubjectKindProduct         SubjectKind = "product"
	SubjectKindRecipeFormula   SubjectKind = "recipe_formula"
	SubjectKindPurchaseOrder   SubjectKind = "purchase_order"
	SubjectKindGoodsReceipt    SubjectKind = "goods_receipt"
	SubjectKindStockAdjustment SubjectKind = "stock_adjustment"
	SubjectKindStockTransfer   SubjectKind = "stock_transfer"
)

// SubjectKinds lists every kind in registration order.
var SubjectKinds = []SubjectKind{
	SubjectKindCategory,
	SubjectKindUnit,
	SubjectKindSupplier,
	SubjectKindCustomer,
	SubjectKindProduct,
	SubjectKindRecipeFormula,
	SubjectKindPurchaseOrder,
	SubjectKindGoodsReceipt,
	SubjectKindStockAdjustment,
	SubjectKindStockTransfer,
}

// Valid reports whether the kind is known.
func (k SubjectKind) Valid() bool {
	for _, kind := range SubjectKinds {
		if kind == k {
			return true
		}
	}
	return false
}

var subjectKindNames = map[SubjectKind]string{
	SubjectKindCategory:        "Kategori",
	SubjectKindUnit:            "Satuan",
	SubjectKindSupplier:        "Supplier",
	SubjectKindCustomer:        "Pelanggan",
	SubjectKindProduct:         "Produk",
	SubjectKindRecipeFormula:   "Formula Racikan",
	SubjectKindPurchaseOrder:   "Pesanan Pembelian",
	SubjectKindGoodsReceipt:    "Penerimaan Barang",
	SubjectKindStockAdjustment: "Penyesuaian Stok",
	SubjectKindStockTransfer:   "Transfer Stok",
}

// DisplayName is the back-office label of the kind.
func (k SubjectKind) DisplayName() string {
	if name, ok := subjectKindNames[k]; ok {
		return name
	}
	return string(k)
}

// Transactional reports whether the kind is a warehouse/purchasing transaction rather than master data.
func (k SubjectKind) Transactional() bool {
	switch k {
	case SubjectKindPurchaseOrder, SubjectKindGoodsReceipt, SubjectKindStockAdjustment, SubjectKindStockTransfer:
		return true
	default:
		return false
	}
}

// ChangeAction enumerates what a change request proposes to do with its subject.
type ChangeAction string

const (
	ChangeActionEdit   ChangeAction = "EDIT_DATA"
	ChangeActionDelete ChangeAction = "DELETE_DATA"
)

// ParseChangeAction normalises canonical and legacy labels ("Edit Data", "Hapus Transaksi", ...).
func ParseChangeAction(raw string) (ChangeAction, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch normalized {
	case "EDIT_DATA", "EDIT_TRANSAKSI", "EDIT":
		return ChangeActionEdit, nil
	case "DELETE_DATA", "HAPUS_DATA", "HAPUS_TRANSAKSI", "DELETE", "HAPUS":
		return ChangeActionDelete, nil
	default:
		return "", fmt.Errorf("unknown change action %q", raw)
	}
}

// Label returns the operator-facing label used by the back-office screens for the kind.
func (a ChangeAction) Label(kind SubjectKind) string {
	noun := "Data"
	if kind.Transactional() {
		noun = "Transaksi"
	}
	if a == ChangeActionDelete {
		return "Hapus " + noun
	}
	return "Edit " + noun
}

// UnmarshalJSON accepts both canonical and legacy labels.
func (a *ChangeAction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseChangeAction(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ChangeRequestStatus captures workflow states for change requests.
type ChangeRequestStatus string

const (
	ChangeRequestStatusPending   ChangeRequestStatus = "PENDING"
	ChangeRequestStatusApproved  ChangeRequestStatus = "APPROVED"
	ChangeRequestStatusRejected  ChangeRequestStatus = "REJECTED"
	ChangeRequestStatusCompleted ChangeRequestStatus = "COMPLETED"
	ChangeRequestStatusCancelled ChangeRequestStatus = "CANCELLED"
)

var statusTransitions = map[ChangeRequestStatus][]ChangeRequestStatus{
	ChangeRequestStatusPending:  {ChangeRequestStatusApproved, ChangeRequestStatusRejected, ChangeRequestStatusCancelled},
	ChangeRequestStatusApproved: {ChangeRequestStatusCompleted, ChangeRequestStatusCancelled},
}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to ChangeRequestStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Decided reports whether the status is a decision record that reconciliation must not overwrite.
func (s ChangeRequestStatus) Decided() bool {
	switch s {
	case ChangeRequestStatusApproved, ChangeRequestStatusRejected, ChangeRequestStatusCompleted:
		return true
	default:
		return false
	}
}

// ParseChangeRequestStatus is case-insensitive.
func ParseChangeRequestStatus(raw string) (ChangeRequestStatus, error) {
	status := ChangeRequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case ChangeRequestStatusPending, ChangeRequestStatusApproved, ChangeRequestStatusRejected,
		ChangeRequestStatusCompleted, ChangeRequestStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown change request status %q", raw)
	}
}

// BatchMember is one stock adjustment record covered by a global request.
type BatchMember struct {
	SubjectID    string `json:"subjectId"`
	ProductID    string `json:"productId"`
	LocationID   string `json:"locationId"`
	BeforeQty    int    `json:"beforeQty"`
	Delta        int    `json:"delta"`
	AppliedDelta *int   `json:"appliedDelta,omitempty"`
}

// ChangeRequest is a proposal to edit or delete a subject record, subject to approval.
type ChangeRequest struct {
	ID              string              `json:"id"`
	SubjectKind     SubjectKind         `json:"subjectKind"`
	SubjectID       string              `json:"subjectId"`
	Action          ChangeAction        `json:"action"`
	Reason          string              `json:"reason"`
	ProposedData    json.RawMessage     `json:"proposedData,omitempty"`
	CurrentSnapshot json.RawMessage     `json:"currentSnapshot,omitempty"`
	Status          ChangeRequestStatus `json:"status"`
	IsNew           bool                `json:"isNew"`
	RequestedBy     string              `json:"requestedBy,omitempty"`
	DecidedBy       string              `json:"decidedBy,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	DecidedAt       *time.Time          `json:"decidedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
	IsGlobal        bool                `json:"isGlobal,omitempty"`
	VoucherNo       string              `json:"voucherNo,omitempty"`
	BatchMembers    []BatchMember       `json:"batchMembers,omitempty"`
}

// Clone returns a deep copy safe to mutate independently.
func (r ChangeRequest) Clone() ChangeRequest {
	clone := r
	if r.ProposedData != nil {
		clone.ProposedData = append(json.RawMessage(nil), r.ProposedData...)
	}
	if r.CurrentSnapshot != nil {
		clone.CurrentSnapshot = append(json.RawMessage(nil), r.CurrentSnapshot...)
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		clone.DecidedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	if r.BatchMembers != nil {
		clone.BatchMembers = make([]BatchMember, len(r.BatchMembers))
		for i, member := range r.BatchMembers {
			clone.BatchMembers[i] = member
			if member.AppliedDelta != nil {
				d := *member.AppliedDelta
				clone.BatchMembers[i].AppliedDelta = &d
			}
		}
	}
	return clone
}

// IsUnread reports whether the request counts towards the notification badge at now.
func (r ChangeRequest) IsUnread(now time.Time, window time.Duration) bool {
	if r.Status != ChangeRequestStatusPending {
		return false
	}
	if r.IsNew {
		return true
	}
	return now.Sub(r.CreatedAt) <= window
}

// ChangeRequestFilter constrains listing queries.
type ChangeRequestFilter struct {
	Kind      SubjectKind
	Status    []ChangeRequestStatus
	SubjectID string
}

// Matches reports whether the request satisfies the filter.
func (f ChangeRequestFilter) Matches(r ChangeRequest) bool {
	if f.Kind != "" && r.SubjectKind != f.Kind {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if len(f.Status) == 0 {
		return true
	}
	for _, status := range f.Status {
		if r.Status == status {
			return true
		}
	}
	return false
}

// DecodeChangeRequests reads a stored collection. A lone object is accepted as a one-element collection.
func DecodeChangeRequests(raw []byte) ([]ChangeRequest, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if firstNonSpace(raw) == '{' {
		var single ChangeRequest
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		return []ChangeRequest{single}, nil
	}
	var requests []ChangeRequest
	if err := json.Unmarshal(raw, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// CloneChangeRequests deep-copies a collection.
func CloneChangeRequests(in []ChangeRequest) []ChangeRequest {
	if in == nil {
		return nil
	}
	out := make([]ChangeRequest, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
