package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sibec-dev/becas-api/internal/models"
)

func TestApplicationRepositoryCreateWithDocuments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO application_documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app := &models.Application{
		FullName:        "Ana Morales",
		NationalID:      "V-1234",
		Email:           "ana@example.edu",
		BirthDate:       time.Date(2002, 4, 1, 0, 0, 0, 0, time.UTC),
		Category:        models.CategoryUndergraduate,
		TargetProgram:   "Systems Engineering",
		ScholarshipType: models.ScholarshipAssistantship,
	}
	docs := []models.ApplicationDocument{{DocumentType: "transcript", StorageRef: "applications/x/transcript.pdf"}}

	err := repo.Create(context.Background(), app, docs)
	require.NoError(t, err)
	require.NotEmpty(t, app.ID)
	require.Equal(t, models.ApplicationStatePending, app.State)
	require.Equal(t, app.ID, docs[0].ApplicationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryMarkDecidedSingleShot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkDecided(context.Background(), "app-1", models.ApplicationStateApproved, "admin-1", nil, nil, time.Now())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
