package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

func pendingSlotApplicationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "beneficiary_id", "slot_id", "state", "compatibility", "compatible_blocks",
		"reviewer_id", "decided_at", "rejection_reason", "reviewer_notes", "created_at",
	}).AddRow("sa-1", "ben-1", "slot-1", models.SlotApplicationPending, 83.3, 5, nil, nil, nil, nil, time.Now())
}

func TestSlotApplicationRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM slot_applications WHERE id = .* FOR UPDATE").
		WithArgs("sa-1").
		WillReturnRows(pendingSlotApplicationRows())
	mock.ExpectQuery("SELECT slot_id FROM beneficiaries WHERE id = .* FOR UPDATE").
		WithArgs("ben-1").
		WillReturnRows(sqlmock.NewRows([]string{"slot_id"}).AddRow(nil))
	mock.ExpectQuery("SELECT capacity, status FROM slots WHERE id = .* FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "status"}).AddRow(2, models.SlotStatusActive))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM slot_assignments").
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO slot_assignments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE beneficiaries SET slot_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE slot_applications SET state").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sa, err := repo.Approve(context.Background(), "sa-1", "sup-1", nil)
	require.NoError(t, err)
	require.Equal(t, models.SlotApplicationApproved, sa.State)
	require.NotNil(t, sa.DecidedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotApplicationRepositoryApproveCapacityExceeded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM slot_applications WHERE id = .* FOR UPDATE").
		WithArgs("sa-1").
		WillReturnRows(pendingSlotApplicationRows())
	mock.ExpectQuery("SELECT slot_id FROM beneficiaries WHERE id = .* FOR UPDATE").
		WithArgs("ben-1").
		WillReturnRows(sqlmock.NewRows([]string{"slot_id"}).AddRow(nil))
	mock.ExpectQuery("SELECT capacity, status FROM slots WHERE id = .* FOR UPDATE").
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "status"}).AddRow(1, models.SlotStatusActive))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM slot_assignments").
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sa-1", "sup-1", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotApplicationRepositoryApproveSeatedElsewhere(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM slot_applications WHERE id = .* FOR UPDATE").
		WithArgs("sa-1").
		WillReturnRows(pendingSlotApplicationRows())
	mock.ExpectQuery("SELECT slot_id FROM beneficiaries WHERE id = .* FOR UPDATE").
		WithArgs("ben-1").
		WillReturnRows(sqlmock.NewRows([]string{"slot_id"}).AddRow("slot-other"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sa-1", "sup-1", nil)
	require.True(t, errors.Is(err, appErrors.ErrInvalidState))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotApplicationRepositoryApproveAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotApplicationRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "beneficiary_id", "slot_id", "state", "compatibility", "compatible_blocks",
		"reviewer_id", "decided_at", "rejection_reason", "reviewer_notes", "created_at",
	}).AddRow("sa-1", "ben-1", "slot-1", models.SlotApplicationApproved, 83.3, 5, nil, nil, nil, nil, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("FROM slot_applications WHERE id = .* FOR UPDATE").
		WithArgs("sa-1").
		WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sa-1", "sup-1", nil)
	require.True(t, errors.Is(err, appErrors.ErrInvalidState))
	require.NoError(t, mock.ExpectationsWereMet())
}
