package models

import "time"

// AuditAction constants represent change request actions to be logged.
const (
	AuditActionChangeRequestSubmit   = "CHANGE_REQUEST_SUBMIT"
	AuditActionChangeRequestApprove  = "CHANGE_REQUEST_APPROVE"
	AuditActionChangeRequestReject   = "CHANGE_REQUEST_REJECT"
	AuditActionChangeRequestComplete = "CHANGE_REQUEST_COMPLETE"
	AuditActionChangeRequestCancel   = "CHANGE_REQUEST_CANCEL"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	RequestID  *string   `db:"request_id" json:"request_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	ClientID   string    `db:"client_id" json:"client_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
