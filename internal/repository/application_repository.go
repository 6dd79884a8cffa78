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

// ApplicationRepository handles persistence of scholarship applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, full_name, national_id, email, phone, birth_date, marital_status, category,
        target_program, current_term, cumulative_average, high_school_average, approved_courses,
        enrolled_credits, scholarship_type, subtype, state, reviewer_id, decided_at, rejection_reason,
        reviewer_notes, submitted_at`

// Create persists a new application together with its document descriptors.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, documents []models.ApplicationDocument) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = time.Now().UTC()
	}
	if app.State == "" {
		app.State = models.ApplicationStatePending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const insertApp = `INSERT INTO applications
        (id, full_name, national_id, email, phone, birth_date, marital_status, category, target_program,
         current_term, cumulative_average, high_school_average, approved_courses, enrolled_credits,
         scholarship_type, subtype, state, submitted_at)
        VALUES (:id, :full_name, :national_id, :email, :phone, :birth_date, :marital_status, :category, :target_program,
         :current_term, :cumulative_average, :high_school_average, :approved_courses, :enrolled_credits,
         :scholarship_type, :subtype, :state, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, insertApp, app); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create application: %w", err)
	}

	const insertDoc = `INSERT INTO application_documents (id, application_id, document_type, storage_ref, uploaded_at)
        VALUES (:id, :application_id, :document_type, :storage_ref, :uploaded_at)`
	now := time.Now().UTC()
	for i := range documents {
		if documents[i].ID == "" {
			documents[i].ID = uuid.NewString()
		}
		documents[i].ApplicationID = app.ID
		if documents[i].UploadedAt.IsZero() {
			documents[i].UploadedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertDoc, documents[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("create application document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application: %w", err)
	}
	return nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// Documents returns the document descriptors attached to an application.
func (r *ApplicationRepository) Documents(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	const query = `SELECT id, application_id, document_type, storage_ref, uploaded_at
        FROM application_documents WHERE application_id = $1 ORDER BY uploaded_at`
	var docs []models.ApplicationDocument
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

// FindDocumentByID returns one document descriptor.
func (r *ApplicationRepository) FindDocumentByID(ctx context.Context, id string) (*models.ApplicationDocument, error) {
	const query = `SELECT id, application_id, document_type, storage_ref, uploaded_at
        FROM application_documents WHERE id = $1`
	var doc models.ApplicationDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	base := "FROM applications"
	var conditions []string
	var args []interface{}

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.ScholarshipType != "" {
		conditions = append(conditions, fmt.Sprintf("scholarship_type = $%d", len(args)+1))
		args = append(args, filter.ScholarshipType)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
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
		"submitted_at": "submitted_at",
		"full_name":    "full_name",
		"state":        "state",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "submitted_at"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		applicationColumns, base+clause, orderBy, order, size, offset)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// MarkDecided records a terminal review decision. The state predicate makes
// the transition single-shot: it reports false when the application is no
// longer pending.
func (r *ApplicationRepository) MarkDecided(ctx context.Context, id string, state models.ApplicationState, reviewerID string, reason, notes *string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE applications
        SET state = $2, reviewer_id = $3, rejection_reason = $4, reviewer_notes = $5, decided_at = $6
        WHERE id = $1 AND state = $7`
	res, err := r.db.ExecContext(ctx, query, id, state, reviewerID, reason, notes, decidedAt, models.ApplicationStatePending)
	if err != nil {
		return false, fmt.Errorf("decide application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide application rows: %w", err)
	}
	return affected == 1, nil
}
