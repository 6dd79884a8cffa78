package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/sibec-dev/becas-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConfigurationRepositoryFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "scholarship_type", "subtype", "min_average", "min_term", "max_term", "max_age",
		"special_requirements", "required_documents", "available_slots", "duration_months",
		"required_hours", "updated_by", "updated_at",
	}).AddRow("cfg-1", models.ScholarshipExcellence, string(models.SubtypeAcademic), 15.0, 2, 8, nil,
		"", pq.StringArray{"transcript", "id card"}, nil, nil, 60.0, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM scholarship_configurations WHERE scholarship_type = $1 AND subtype = $2")).
		WithArgs(models.ScholarshipExcellence, string(models.SubtypeAcademic)).
		WillReturnRows(rows)

	cfg, err := repo.Find(context.Background(), models.ScholarshipExcellence, string(models.SubtypeAcademic))
	require.NoError(t, err)
	require.Equal(t, 15.0, cfg.MinAverage)
	require.Len(t, cfg.RequiredDocuments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectExec("INSERT INTO scholarship_configurations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := &models.ScholarshipConfiguration{
		Type:              models.ScholarshipAssistantship,
		MinAverage:        14.0,
		RequiredDocuments: pq.StringArray{"transcript"},
	}
	err := repo.Upsert(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.ID)
	require.False(t, cfg.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
