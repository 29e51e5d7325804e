package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// SectionRepository reads course sections. Soft-deleted sections are
// excluded everywhere.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `id, course_id, term_id, branch_id, code, capacity, waitlist_cap, status, created_at, updated_at, deleted_at`

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1 AND deleted_at IS NULL`, sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountEnrollmentsByStatus returns the number of enrollments in the
// given status for a section. Unlocked; used only for advisory
// availability snapshots, never for admission decisions.
func (r *SectionRepository) CountEnrollmentsByStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM section_enrollments WHERE section_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID, status); err != nil {
		return 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return count, nil
}
