package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// AuditRepository persists change request decisions into audit_logs.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID         string         `db:"id"`
	UserID     sql.NullString `db:"user_id"`
	Action     string         `db:"action"`
	Resource   string         `db:"resource"`
	ResourceID sql.NullString `db:"resource_id"`
	RequestID  sql.NullString `db:"request_id"`
	OldValues  sql.NullString `db:"old_values"`
	NewValues  sql.NullString `db:"new_values"`
	ClientID   string         `db:"client_id"`
	CreatedAt  time.Time      `db:"created_at"`
}

func toAuditRow(log *models.AuditLog) auditRow {
	return auditRow{
		ID:         log.ID,
		UserID:     nullString(log.UserID),
		Action:     log.Action,
		Resource:   log.Resource,
		ResourceID: nullString(log.ResourceID),
		RequestID:  nullString(log.RequestID),
		OldValues:  nullJSON(log.OldValues),
		NewValues:  nullJSON(log.NewValues),
		ClientID:   log.ClientID,
		CreatedAt:  log.CreatedAt,
	}
}

func (r auditRow) model() models.AuditLog {
	log := models.AuditLog{
		ID:        r.ID,
		Action:    r.Action,
		Resource:  r.Resource,
		ClientID:  r.ClientID,
		CreatedAt: r.CreatedAt,
	}
	if r.UserID.Valid {
		log.UserID = &r.UserID.String
	}
	if r.ResourceID.Valid {
		log.ResourceID = &r.ResourceID.String
	}
	if r.RequestID.Valid {
		log.RequestID = &r.RequestID.String
	}
	if r.OldValues.Valid {
		log.OldValues = []byte(r.OldValues.String)
	}
	if r.NewValues.Valid {
		log.NewValues = []byte(r.NewValues.String)
	}
	return log
}

// CreateAuditLog stores an audit log entry.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, request_id, old_values, new_values, client_id, created_at)
	VALUES (:id, :user_id, :action, :resource, :resource_id, :request_id, :old_values, :new_values, :client_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, toAuditRow(log)); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByRequest returns the audit trail of one change request, oldest first.
func (r *AuditRepository) ListByRequest(ctx context.Context, requestID string) ([]models.AuditLog, error) {
	const query = `SELECT id, user_id, action, resource, resource_id, request_id, old_values, new_values, client_id, created_at
	FROM audit_logs WHERE request_id = $1 ORDER BY created_at ASC`
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, requestID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	logs := make([]models.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.model())
	}
	return logs, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullJSON(v []byte) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(v), Valid: true}
}
