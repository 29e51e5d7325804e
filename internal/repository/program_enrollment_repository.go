package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// ProgramEnrollmentRepository reads program memberships.
type ProgramEnrollmentRepository struct {
	db *sqlx.DB
}

// NewProgramEnrollmentRepository constructs the repository.
func NewProgramEnrollmentRepository(db *sqlx.DB) *ProgramEnrollmentRepository {
	return &ProgramEnrollmentRepository{db: db}
}

// FindProgramByID returns a program by its ID.
func (r *ProgramEnrollmentRepository) FindProgramByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, branch_id, created_at, updated_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ListActive returns active program enrollments, optionally filtered by
// cohort label. Ordered by creation so batch enrollment is deterministic.
func (r *ProgramEnrollmentRepository) ListActive(ctx context.Context, programID, cohort string) ([]models.ProgramEnrollment, error) {
	query := `SELECT id, program_id, student_id, cohort, status, created_at, updated_at
        FROM program_enrollments WHERE program_id = $1 AND status = $2`
	args := []interface{}{programID, models.ProgramEnrollmentStatusActive}
	if cohort != "" {
		query += " AND cohort = $3"
		args = append(args, cohort)
	}
	query += " ORDER BY created_at ASC"
	var enrollments []models.ProgramEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list program enrollments: %w", err)
	}
	return enrollments, nil
}
