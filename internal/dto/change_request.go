package dto

import (
	"encoding/json"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// SubmitChangeRequest is the payload for proposing an edit or deletion.
type SubmitChangeRequest struct {
	SubjectKind  models.SubjectKind  `json:"subjectKind" validate:"required,subject_kind"`
	SubjectID    string              `json:"subjectId" validate:"required,notblank"`
	Action       models.ChangeAction `json:"action" validate:"required,oneof=EDIT_DATA DELETE_DATA"`
	Reason       string              `json:"reason" validate:"required,notblank"`
	ProposedData json.RawMessage     `json:"proposedData,omitempty"`
	IsGlobal     bool                `json:"isGlobal"`
	VoucherNo    string              `json:"voucherNo,omitempty"`
}

// RejectChangeRequest carries the approver's reason.
type RejectChangeRequest struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

// ChangeRequestQuery mirrors supported listing filters.
type ChangeRequestQuery struct {
	Kind   models.SubjectKind
	Status []models.ChangeRequestStatus
}

// ChangeRequestDetail is a request plus the operator-facing confirmation text.
type ChangeRequestDetail struct {
	Request      models.ChangeRequest `json:"request"`
	ActionLabel  string               `json:"actionLabel"`
	Confirmation string               `json:"confirmation"`
}

// UnreadCountResponse is the notification badge payload.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkReadResponse reports how many requests were acknowledged.
type MarkReadResponse struct {
	Updated int `json:"updated"`
}

// ExportFormat selects the history export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportChangeRequestsQuery filters the history export.
type ExportChangeRequestsQuery struct {
	Kind   models.SubjectKind
	Status []models.ChangeRequestStatus
	Format ExportFormat
}
