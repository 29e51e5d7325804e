package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// TranscriptRepository reads finalized grade records.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs the repository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// ListByStudentAndCourse returns every transcript row for the pair. A
// student retaking a course across terms may hold several rows; any one
// meeting the threshold satisfies a prerequisite.
func (r *TranscriptRepository) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Transcript, error) {
	const query = `SELECT id, student_id, course_id, term_id, final_grade, grade_points, created_at
        FROM transcripts WHERE student_id = $1 AND course_id = $2`
	var rows []models.Transcript
	if err := r.db.SelectContext(ctx, &rows, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return rows, nil
}
