package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// EnrollmentTx is the narrow persistence surface handed to the
// enrollment engine inside one transaction. Lock order is fixed at
// every call site: the section row is locked first, enrollment rows
// second. Holding the section lock serializes all capacity decisions
// for that section, which is what keeps the count queries race-free.
type EnrollmentTx interface {
	LockSection(ctx context.Context, sectionID string) (*models.Section, error)
	FindForUpdate(ctx context.Context, studentID, sectionID string) (*models.SectionEnrollment, error)
	CountByStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error)
	NextWaitlisted(ctx context.Context, sectionID string) (*models.SectionEnrollment, error)
	Insert(ctx context.Context, enrollment *models.SectionEnrollment) error
	Update(ctx context.Context, enrollment *models.SectionEnrollment) error
}

// EnrollmentRepository handles persistence of section enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, section_id, student_id, branch_id, role, status, enrolled_at, waitlisted_at, dropped_at, created_at, updated_at`

// InTx runs fn inside a single transaction, committing when fn returns
// nil and rolling back otherwise.
func (r *EnrollmentRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx EnrollmentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &enrollmentTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

type enrollmentTx struct {
	tx *sqlx.Tx
}

// LockSection loads the section row under FOR UPDATE. Every engine
// operation takes this lock first.
func (t *enrollmentTx) LockSection(ctx context.Context, sectionID string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, sectionColumns)
	var section models.Section
	if err := t.tx.GetContext(ctx, &section, query, sectionID); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindForUpdate returns the (student, section) enrollment row locked for
// update, or nil when none exists yet.
func (t *enrollmentTx) FindForUpdate(ctx context.Context, studentID, sectionID string) (*models.SectionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM section_enrollments WHERE student_id = $1 AND section_id = $2 FOR UPDATE`, enrollmentColumns)
	var enrollment models.SectionEnrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, studentID, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock enrollment row: %w", err)
	}
	return &enrollment, nil
}

// CountByStatus counts a section's enrollments in the given status. Safe
// without its own lock because the caller already holds the section row
// lock, which serializes every writer of these rows.
func (t *enrollmentTx) CountByStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM section_enrollments WHERE section_id = $1 AND status = $2`
	var count int
	if err := t.tx.GetContext(ctx, &count, query, sectionID, status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// NextWaitlisted returns the earliest-waitlisted enrollment locked for
// update, or nil when nobody is waiting. Ordering falls back to row
// creation when waitlisted_at is null.
func (t *enrollmentTx) NextWaitlisted(ctx context.Context, sectionID string) (*models.SectionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM section_enrollments
        WHERE section_id = $1 AND status = $2
        ORDER BY waitlisted_at ASC NULLS LAST, created_at ASC
        LIMIT 1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.SectionEnrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, sectionID, models.EnrollmentStatusWaitlisted); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock next waitlisted: %w", err)
	}
	return &enrollment, nil
}

// Insert persists a new enrollment row.
func (t *enrollmentTx) Insert(ctx context.Context, enrollment *models.SectionEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO section_enrollments (id, section_id, student_id, branch_id, role, status, enrolled_at, waitlisted_at, dropped_at, created_at, updated_at)
        VALUES (:id, :section_id, :student_id, :branch_id, :role, :status, :enrolled_at, :waitlisted_at, :dropped_at, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing enrollment row.
// Re-enrollment after a drop reuses the same row, so role and all three
// status timestamps are written together.
func (t *enrollmentTx) Update(ctx context.Context, enrollment *models.SectionEnrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE section_enrollments
        SET role = :role, status = :status, enrolled_at = :enrolled_at, waitlisted_at = :waitlisted_at, dropped_at = :dropped_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM section_enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.SectionEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// HasCompleted reports whether the student holds a completed enrollment
// in any section of the given course, regardless of grade.
func (r *EnrollmentRepository) HasCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM section_enrollments e
        JOIN sections s ON s.id = e.section_id
        WHERE e.student_id = $1 AND s.course_id = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed enrollment: %w", err)
	}
	return true, nil
}

// ListBySection returns a section's roster with student context, active
// seats first, then the waitlist in promotion order.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT e.%s, u.full_name AS student_name, s.code AS section_code, c.code AS course_code
        FROM section_enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id
        WHERE e.section_id = $1 AND e.status IN ($2, $3)
        ORDER BY e.status ASC, e.waitlisted_at ASC NULLS LAST, e.created_at ASC`,
		strings.ReplaceAll(enrollmentColumns, ", ", ", e."))
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, sectionID, models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return details, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM section_enrollments e
JOIN users u ON u.id = e.student_id
JOIN sections s ON s.id = e.section_id
JOIN courses c ON c.id = s.course_id`
	var conditions []string
	var args []interface{}

	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "u.full_name",
		"status":       "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
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

	query := fmt.Sprintf(`SELECT e.%s, u.full_name AS student_name, s.code AS section_code, c.code AS course_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		strings.ReplaceAll(enrollmentColumns, ", ", ", e."), base+clause, orderBy, order, size, offset)

	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return details, total, nil
}
