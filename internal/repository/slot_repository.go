package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sibec-dev/becas-api/internal/models"
)

// SlotRepository handles persistence of work slots and their schedules.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, subject, department, capacity, academic_period, period_start, period_end,
        supervisor_id, status, created_at, updated_at`

// Create persists a slot together with its weekly schedule blocks.
func (r *SlotRepository) Create(ctx context.Context, slot *models.Slot, blocks []models.TimeBlock) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	if slot.Status == "" {
		slot.Status = models.SlotStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const insertSlot = `INSERT INTO slots
        (id, subject, department, capacity, academic_period, period_start, period_end, supervisor_id, status, created_at, updated_at)
        VALUES (:id, :subject, :department, :capacity, :academic_period, :period_start, :period_end, :supervisor_id, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertSlot, slot); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create slot: %w", err)
	}
	if err := insertScheduleBlocks(ctx, tx, slot.ID, blocks); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot: %w", err)
	}
	return nil
}

// Update rewrites the mutable slot fields and replaces its schedule when
// blocks is non-nil.
func (r *SlotRepository) Update(ctx context.Context, slot *models.Slot, blocks []models.TimeBlock) error {
	slot.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const update = `UPDATE slots SET subject = :subject, department = :department, capacity = :capacity,
        academic_period = :academic_period, period_start = :period_start, period_end = :period_end,
        supervisor_id = :supervisor_id, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, slot); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update slot: %w", err)
	}
	if blocks != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM slot_schedule_blocks WHERE slot_id = $1`, slot.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("clear slot schedule: %w", err)
		}
		if err := insertScheduleBlocks(ctx, tx, slot.ID, blocks); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot update: %w", err)
	}
	return nil
}

func insertScheduleBlocks(ctx context.Context, tx *sqlx.Tx, slotID string, blocks []models.TimeBlock) error {
	const insert = `INSERT INTO slot_schedule_blocks (id, slot_id, day, start_time, end_time)
        VALUES ($1, $2, $3, $4, $5)`
	for _, b := range blocks {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), slotID, b.Day, b.StartTime, b.EndTime); err != nil {
			return fmt.Errorf("insert schedule block: %w", err)
		}
	}
	return nil
}

// FindByID returns a slot by its ID.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM slots WHERE id = $1`, slotColumns)
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ScheduleBlocks returns a slot's weekly schedule.
func (r *SlotRepository) ScheduleBlocks(ctx context.Context, slotID string) ([]models.ScheduleBlock, error) {
	const query = `SELECT id, slot_id, day, start_time, end_time FROM slot_schedule_blocks
        WHERE slot_id = $1 ORDER BY day, start_time`
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, slotID); err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}

// AssignedCount returns the current number of beneficiaries in a slot.
func (r *SlotRepository) AssignedCount(ctx context.Context, slotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM slot_assignments WHERE slot_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, slotID); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

// AssignedBeneficiaries returns the beneficiaries currently assigned to a slot.
func (r *SlotRepository) AssignedBeneficiaries(ctx context.Context, slotID string) ([]models.Beneficiary, error) {
	query := fmt.Sprintf(`SELECT %s FROM beneficiaries b
        JOIN slot_assignments sa ON sa.beneficiary_id = b.id
        WHERE sa.slot_id = $1 ORDER BY b.full_name`, prefixColumns(beneficiaryColumns, "b"))
	var beneficiaries []models.Beneficiary
	if err := r.db.SelectContext(ctx, &beneficiaries, query, slotID); err != nil {
		return nil, fmt.Errorf("list assigned beneficiaries: %w", err)
	}
	return beneficiaries, nil
}

// List returns slots with their occupancy, filtered by the provided criteria.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.SlotDetail, int, error) {
	base := `FROM slots s LEFT JOIN slot_assignments sa ON sa.slot_id = s.id`
	var conditions []string
	var args []interface{}

	if filter.AcademicPeriod != "" {
		conditions = append(conditions, fmt.Sprintf("s.academic_period = $%d", len(args)+1))
		args = append(args, filter.AcademicPeriod)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("s.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.subject ILIKE $%d OR s.department ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"subject":    "s.subject",
		"department": "s.department",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.created_at"
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

	query := fmt.Sprintf(`SELECT %s, COUNT(sa.beneficiary_id) AS assigned_count
        %s GROUP BY s.id ORDER BY %s %s LIMIT %d OFFSET %d`,
		prefixColumns(slotColumns, "s"), base+clause, orderBy, order, size, offset)

	var slots []models.SlotDetail
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
	}
	return slots, total, nil
}

// ReleaseAssignment detaches a beneficiary from its slot. The beneficiary
// row and the assignment row change together.
func (r *SlotRepository) ReleaseAssignment(ctx context.Context, beneficiaryID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM slot_assignments WHERE beneficiary_id = $1`, beneficiaryID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("delete assignment rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE beneficiaries SET slot_id = NULL, updated_at = $2 WHERE id = $1`, beneficiaryID, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("clear beneficiary slot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit release: %w", err)
	}
	return true, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
