package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

func TestAuditRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newSQLXMock(t, "postgres")
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), "user-1", models.AuditActionChangeRequestApprove, "product", "prd-1", "cr-1",
			nil, `{"price":1500}`, "kasir-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	userID, subjectID, requestID := "user-1", "prd-1", "cr-1"
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionChangeRequestApprove,
		Resource:   "product",
		ResourceID: &subjectID,
		RequestID:  &requestID,
		NewValues:  []byte(`{"price":1500}`),
		ClientID:   "kasir-1",
	}
	require.NoError(t, repo.CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByRequest(t *testing.T) {
	db, mock, cleanup := newSQLXMock(t, "postgres")
	defer cleanup()

	repo := NewAuditRepository(db)
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "request_id", "old_values", "new_values", "client_id", "created_at"}).
		AddRow("log-1", nil, models.AuditActionChangeRequestSubmit, "unit", "unit-1", "cr-1", nil, `{"name":"Box"}`, "kasir-1", time.Now()).
		AddRow("log-2", "user-2", models.AuditActionChangeRequestReject, "unit", "unit-1", "cr-1", nil, nil, "kasir-2", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, action")).
		WithArgs("cr-1").
		WillReturnRows(rows)

	logs, err := repo.ListByRequest(context.Background(), "cr-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].UserID)
	assert.JSONEq(t, `{"name":"Box"}`, string(logs[0].NewValues))
	require.NotNil(t, logs[1].UserID)
	assert.Equal(t, "user-2", *logs[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
