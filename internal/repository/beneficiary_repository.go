package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sibec-dev/becas-api/internal/models"
)

// BeneficiaryRepository handles persistence of beneficiaries.
type BeneficiaryRepository struct {
	db *sqlx.DB
}

// NewBeneficiaryRepository constructs the repository.
func NewBeneficiaryRepository(db *sqlx.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

const beneficiaryColumns = `id, application_id, full_name, national_id, email, scholarship_type, subtype,
        benefit_percent, status, slot_id, required_hours, completed_hours, period_start, period_end,
        created_at, updated_at`

// Create persists a new beneficiary.
func (r *BeneficiaryRepository) Create(ctx context.Context, b *models.Beneficiary) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = models.BeneficiaryStatusActive
	}
	const query = `INSERT INTO beneficiaries
        (id, application_id, full_name, national_id, email, scholarship_type, subtype, benefit_percent,
         status, slot_id, required_hours, completed_hours, period_start, period_end, created_at, updated_at)
        VALUES (:id, :application_id, :full_name, :national_id, :email, :scholarship_type, :subtype, :benefit_percent,
         :status, :slot_id, :required_hours, :completed_hours, :period_start, :period_end, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("create beneficiary: %w", err)
	}
	return nil
}

// FindByID returns a beneficiary by its ID.
func (r *BeneficiaryRepository) FindByID(ctx context.Context, id string) (*models.Beneficiary, error) {
	query := fmt.Sprintf(`SELECT %s FROM beneficiaries WHERE id = $1`, beneficiaryColumns)
	var b models.Beneficiary
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

// ExistsByApplication reports whether a beneficiary already originates from
// the given application.
func (r *BeneficiaryRepository) ExistsByApplication(ctx context.Context, applicationID string) (bool, error) {
	const query = `SELECT 1 FROM beneficiaries WHERE application_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, applicationID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check beneficiary origin: %w", err)
	}
	return true, nil
}

// List returns beneficiaries filtered by the provided criteria.
func (r *BeneficiaryRepository) List(ctx context.Context, filter models.BeneficiaryFilter) ([]models.Beneficiary, int, error) {
	base := "FROM beneficiaries"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ScholarshipType != "" {
		conditions = append(conditions, fmt.Sprintf("scholarship_type = $%d", len(args)+1))
		args = append(args, filter.ScholarshipType)
	}
	if filter.HasSlot != nil {
		if *filter.HasSlot {
			conditions = append(conditions, "slot_id IS NOT NULL")
		} else {
			conditions = append(conditions, "slot_id IS NULL")
		}
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR national_id ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":      "created_at",
		"full_name":       "full_name",
		"completed_hours": "completed_hours",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, beneficiaryColumns, base+clause, orderBy, order, size, offset)
	var beneficiaries []models.Beneficiary
	if err := r.db.SelectContext(ctx, &beneficiaries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list beneficiaries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count beneficiaries: %w", err)
	}
	return beneficiaries, total, nil
}

// UpdateStatus records an administrator-driven status transition.
func (r *BeneficiaryRepository) UpdateStatus(ctx context.Context, id string, status models.BeneficiaryStatus) (bool, error) {
	const query = `UPDATE beneficiaries SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update beneficiary status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update beneficiary status rows: %w", err)
	}
	return affected == 1, nil
}

// ReplaceAvailability swaps the beneficiary's weekly availability blocks.
func (r *BeneficiaryRepository) ReplaceAvailability(ctx context.Context, beneficiaryID string, blocks []models.TimeBlock) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM beneficiary_availability WHERE beneficiary_id = $1`, beneficiaryID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear availability: %w", err)
	}
	const insert = `INSERT INTO beneficiary_availability (id, beneficiary_id, day, start_time, end_time)
        VALUES ($1, $2, $3, $4, $5)`
	for _, b := range blocks {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), beneficiaryID, b.Day, b.StartTime, b.EndTime); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert availability block: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit availability: %w", err)
	}
	return nil
}

// Availability returns the beneficiary's weekly availability blocks.
func (r *BeneficiaryRepository) Availability(ctx context.Context, beneficiaryID string) ([]models.TimeBlock, error) {
	const query = `SELECT day, start_time, end_time FROM beneficiary_availability
        WHERE beneficiary_id = $1 ORDER BY day, start_time`
	var blocks []models.TimeBlock
	if err := r.db.SelectContext(ctx, &blocks, query, beneficiaryID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return blocks, nil
}

// HourLedger returns the approved reports backing a beneficiary's completed
// hours, oldest first, with a running total.
func (r *BeneficiaryRepository) HourLedger(ctx context.Context, beneficiaryID string) ([]models.HourLedgerEntry, error) {
	const query = `SELECT id AS report_id, academic_period, week, hours_worked, decided_at AS approved_at,
        SUM(hours_worked) OVER (ORDER BY decided_at, week) AS running_total
        FROM weekly_reports
        WHERE beneficiary_id = $1 AND state = $2
        ORDER BY decided_at, week`
	var entries []models.HourLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, beneficiaryID, models.ReportStateApproved); err != nil {
		return nil, fmt.Errorf("hour ledger: %w", err)
	}
	return entries, nil
}
