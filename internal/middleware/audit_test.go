package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sibec-dev/becas-api/internal/repository"
)

func newAuditRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *observer.ObservedLogs) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	core, logs := observer.New(zap.WarnLevel)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/slots/:id/approve",
		Audit(repository.NewAuditRepository(db), zap.New(core), "APPROVE", "slot"),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, mock, logs
}

func TestAuditRecordsSuccessfulDecision(t *testing.T) {
	r, mock, logs := newAuditRouter(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/slots/slot-1/approve", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, logs.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogsWriteFailure(t *testing.T) {
	r, mock, logs := newAuditRouter(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/slots/slot-1/approve", nil))

	// The request itself must not fail, but the miss has to be logged.
	assert.Equal(t, http.StatusOK, w.Code)
	entries := logs.FilterMessage("audit write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	require.NoError(t, mock.ExpectationsWereMet())
}
