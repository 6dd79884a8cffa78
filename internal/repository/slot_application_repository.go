package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// SlotApplicationRepository handles persistence of slot postulations.
type SlotApplicationRepository struct {
	db *sqlx.DB
}

// NewSlotApplicationRepository constructs the repository.
func NewSlotApplicationRepository(db *sqlx.DB) *SlotApplicationRepository {
	return &SlotApplicationRepository{db: db}
}

const slotApplicationColumns = `id, beneficiary_id, slot_id, state, compatibility, compatible_blocks,
        reviewer_id, decided_at, rejection_reason, reviewer_notes, created_at`

// Create persists a new postulation with its frozen compatibility score.
func (r *SlotApplicationRepository) Create(ctx context.Context, sa *models.SlotApplication) error {
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	if sa.CreatedAt.IsZero() {
		sa.CreatedAt = time.Now().UTC()
	}
	if sa.State == "" {
		sa.State = models.SlotApplicationPending
	}
	const query = `INSERT INTO slot_applications
        (id, beneficiary_id, slot_id, state, compatibility, compatible_blocks, created_at)
        VALUES (:id, :beneficiary_id, :slot_id, :state, :compatibility, :compatible_blocks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sa); err != nil {
		return fmt.Errorf("create slot application: %w", err)
	}
	return nil
}

// FindByID returns a postulation by its ID.
func (r *SlotApplicationRepository) FindByID(ctx context.Context, id string) (*models.SlotApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM slot_applications WHERE id = $1`, slotApplicationColumns)
	var sa models.SlotApplication
	if err := r.db.GetContext(ctx, &sa, query, id); err != nil {
		return nil, err
	}
	return &sa, nil
}

// HasPending reports whether the beneficiary already has a pending
// postulation for the slot.
func (r *SlotApplicationRepository) HasPending(ctx context.Context, beneficiaryID, slotID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM slot_applications WHERE beneficiary_id = $1 AND slot_id = $2 AND state = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, beneficiaryID, slotID, models.SlotApplicationPending); err != nil {
		return false, fmt.Errorf("check pending postulation: %w", err)
	}
	return count > 0, nil
}

// List returns postulations filtered by the provided criteria.
func (r *SlotApplicationRepository) List(ctx context.Context, filter models.SlotApplicationFilter) ([]models.SlotApplicationDetail, int, error) {
	base := `FROM slot_applications sa
LEFT JOIN beneficiaries b ON b.id = sa.beneficiary_id
LEFT JOIN slots s ON s.id = sa.slot_id`
	var conditions []string
	var args []interface{}

	if filter.BeneficiaryID != "" {
		conditions = append(conditions, fmt.Sprintf("sa.beneficiary_id = $%d", len(args)+1))
		args = append(args, filter.BeneficiaryID)
	}
	if filter.SlotID != "" {
		conditions = append(conditions, fmt.Sprintf("sa.slot_id = $%d", len(args)+1))
		args = append(args, filter.SlotID)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("sa.state = $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT %s, b.full_name AS beneficiary_name, s.subject AS slot_subject
        %s ORDER BY sa.created_at DESC LIMIT %d OFFSET %d`,
		prefixColumns(slotApplicationColumns, "sa"), base+clause, size, offset)

	var applications []models.SlotApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slot applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slot applications: %w", err)
	}
	return applications, total, nil
}

// Approve performs the seat checks and the assignment as one atomic unit.
// The beneficiary and slot rows are locked for the duration, so concurrent
// approvals serialize: the loser observes either the seat already taken or
// the beneficiary already placed.
func (r *SlotApplicationRepository) Approve(ctx context.Context, id, reviewerID string, notes *string) (*models.SlotApplication, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM slot_applications WHERE id = $1 FOR UPDATE`, slotApplicationColumns)
	var sa models.SlotApplication
	if err := tx.GetContext(ctx, &sa, query, id); err != nil {
		return nil, err
	}
	if sa.State != models.SlotApplicationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "slot application already decided")
	}

	// The beneficiary may hold pending postulations to several slots; the
	// seat check has to happen here, under the row lock, or approving two of
	// them would seat the same person twice.
	var currentSlot *string
	if err := tx.GetContext(ctx, &currentSlot, `SELECT slot_id FROM beneficiaries WHERE id = $1 FOR UPDATE`, sa.BeneficiaryID); err != nil {
		return nil, fmt.Errorf("lock beneficiary: %w", err)
	}
	if currentSlot != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "beneficiary already holds a slot assignment")
	}

	var slot struct {
		Capacity int               `db:"capacity"`
		Status   models.SlotStatus `db:"status"`
	}
	if err := tx.GetContext(ctx, &slot, `SELECT capacity, status FROM slots WHERE id = $1 FOR UPDATE`, sa.SlotID); err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot.Status != models.SlotStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "slot is inactive")
	}

	var assigned int
	if err := tx.GetContext(ctx, &assigned, `SELECT COUNT(*) FROM slot_assignments WHERE slot_id = $1`, sa.SlotID); err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	if assigned >= slot.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "slot has no remaining capacity")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT INTO slot_assignments (slot_id, beneficiary_id, assigned_at) VALUES ($1, $2, $3)`,
		sa.SlotID, sa.BeneficiaryID, now); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE beneficiaries SET slot_id = $2, updated_at = $3 WHERE id = $1`,
		sa.BeneficiaryID, sa.SlotID, now); err != nil {
		return nil, fmt.Errorf("set beneficiary slot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE slot_applications SET state = $2, reviewer_id = $3, reviewer_notes = $4, decided_at = $5 WHERE id = $1`,
		sa.ID, models.SlotApplicationApproved, reviewerID, notes, now); err != nil {
		return nil, fmt.Errorf("approve slot application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit slot approval: %w", err)
	}

	sa.State = models.SlotApplicationApproved
	sa.ReviewerID = &reviewerID
	sa.ReviewerNotes = notes
	sa.DecidedAt = &now
	return &sa, nil
}

// Reject marks a pending postulation rejected. The state predicate keeps the
// transition single-shot.
func (r *SlotApplicationRepository) Reject(ctx context.Context, id, reviewerID, reason string, notes *string) (bool, error) {
	const query = `UPDATE slot_applications
        SET state = $2, reviewer_id = $3, rejection_reason = $4, reviewer_notes = $5, decided_at = $6
        WHERE id = $1 AND state = $7`
	res, err := r.db.ExecContext(ctx, query, id, models.SlotApplicationRejected, reviewerID, reason, notes,
		time.Now().UTC(), models.SlotApplicationPending)
	if err != nil {
		return false, fmt.Errorf("reject slot application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject slot application rows: %w", err)
	}
	return affected == 1, nil
}
