package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// ReportRepository handles persistence of weekly activity reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, beneficiary_id, academic_period, week, hours_worked, period_objectives,
        specific_goals, planned_activities, actual_activities, detailed_description, remarks, state,
        reviewer_id, decided_at, supervisor_remarks, rejection_reason, created_at`

// Exists reports whether a report already covers (beneficiary, period, week).
func (r *ReportRepository) Exists(ctx context.Context, beneficiaryID, period string, week int) (bool, error) {
	const query = `SELECT 1 FROM weekly_reports WHERE beneficiary_id = $1 AND academic_period = $2 AND week = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, beneficiaryID, period, week); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check report key: %w", err)
	}
	return true, nil
}

// Create persists a new pending report.
func (r *ReportRepository) Create(ctx context.Context, report *models.WeeklyReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if report.State == "" {
		report.State = models.ReportStatePending
	}
	const query = `INSERT INTO weekly_reports
        (id, beneficiary_id, academic_period, week, hours_worked, period_objectives, specific_goals,
         planned_activities, actual_activities, detailed_description, remarks, state, created_at)
        VALUES (:id, :beneficiary_id, :academic_period, :week, :hours_worked, :period_objectives, :specific_goals,
         :planned_activities, :actual_activities, :detailed_description, :remarks, :state, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		// The table carries a unique index on (beneficiary_id, academic_period,
		// week); a concurrent submit can slip past the Exists check, so the
		// constraint is the authoritative guard.
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicateKey,
				fmt.Sprintf("a report for week %d of %s already exists", report.Week, report.AcademicPeriod))
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// FindByID returns a report by its ID.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.WeeklyReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM weekly_reports WHERE id = $1`, reportColumns)
	var report models.WeeklyReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports filtered by the provided criteria.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.WeeklyReport, int, error) {
	base := "FROM weekly_reports"
	var conditions []string
	var args []interface{}

	if filter.BeneficiaryID != "" {
		conditions = append(conditions, fmt.Sprintf("beneficiary_id = $%d", len(args)+1))
		args = append(args, filter.BeneficiaryID)
	}
	if filter.AcademicPeriod != "" {
		conditions = append(conditions, fmt.Sprintf("academic_period = $%d", len(args)+1))
		args = append(args, filter.AcademicPeriod)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY academic_period DESC, week DESC LIMIT %d OFFSET %d`,
		reportColumns, base+clause, size, offset)
	var reports []models.WeeklyReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// StartReview claims a pending report. The state predicate keeps the claim
// single-shot.
func (r *ReportRepository) StartReview(ctx context.Context, id, reviewerID string) (bool, error) {
	const query = `UPDATE weekly_reports SET state = $2, reviewer_id = $3 WHERE id = $1 AND state = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.ReportStateInReview, reviewerID, models.ReportStatePending)
	if err != nil {
		return false, fmt.Errorf("start review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("start review rows: %w", err)
	}
	return affected == 1, nil
}

// Approve marks the report approved and accrues its hours on the beneficiary
// as one atomic unit. The report row is locked first, so a retried approval
// of an already-approved report fails without double-crediting hours, and a
// roll back of the accrual also rolls back the state transition.
func (r *ReportRepository) Approve(ctx context.Context, id, reviewerID string, remarks *string) (*models.WeeklyReport, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM weekly_reports WHERE id = $1 FOR UPDATE`, reportColumns)
	var report models.WeeklyReport
	if err := tx.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	if !models.DecidableReportState(report.State) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report already decided")
	}

	var status models.BeneficiaryStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM beneficiaries WHERE id = $1 FOR UPDATE`, report.BeneficiaryID); err != nil {
		return nil, fmt.Errorf("lock beneficiary: %w", err)
	}
	if status != models.BeneficiaryStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "beneficiary is not active")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE weekly_reports SET state = $2, reviewer_id = $3, supervisor_remarks = $4, decided_at = $5 WHERE id = $1`,
		report.ID, models.ReportStateApproved, reviewerID, remarks, now); err != nil {
		return nil, fmt.Errorf("approve report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE beneficiaries SET completed_hours = completed_hours + $2, updated_at = $3 WHERE id = $1`,
		report.BeneficiaryID, report.HoursWorked, now); err != nil {
		return nil, fmt.Errorf("accrue hours: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report approval: %w", err)
	}

	report.State = models.ReportStateApproved
	report.ReviewerID = &reviewerID
	report.SupervisorRemarks = remarks
	report.DecidedAt = &now
	return &report, nil
}

// Reject marks an undecided report rejected. No accrual side effect.
func (r *ReportRepository) Reject(ctx context.Context, id, reviewerID, reason string) (bool, error) {
	const query = `UPDATE weekly_reports
        SET state = $2, reviewer_id = $3, rejection_reason = $4, decided_at = $5
        WHERE id = $1 AND state IN ($6, $7)`
	res, err := r.db.ExecContext(ctx, query, id, models.ReportStateRejected, reviewerID, reason,
		time.Now().UTC(), models.ReportStatePending, models.ReportStateInReview)
	if err != nil {
		return false, fmt.Errorf("reject report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject report rows: %w", err)
	}
	return affected == 1, nil
}
