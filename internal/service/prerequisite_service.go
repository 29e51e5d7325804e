package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

type prerequisiteCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListPrerequisites(ctx context.Context, courseID string) ([]models.CoursePrerequisite, error)
}

type transcriptReader interface {
	ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Transcript, error)
}

type completionReader interface {
	HasCompleted(ctx context.Context, studentID, courseID string) (bool, error)
}

// PrerequisiteService determines unmet prerequisite requirements from
// transcript grade points and completed enrollment history.
type PrerequisiteService struct {
	courses     prerequisiteCourseReader
	transcripts transcriptReader
	completions completionReader
	logger      *zap.Logger
}

// NewPrerequisiteService constructs PrerequisiteService.
func NewPrerequisiteService(courses prerequisiteCourseReader, transcripts transcriptReader, completions completionReader, logger *zap.Logger) *PrerequisiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerequisiteService{courses: courses, transcripts: transcripts, completions: completions, logger: logger}
}

// Missing returns every prerequisite of the course the student has not
// yet satisfied. A prerequisite is satisfied by a transcript row whose
// grade points meet the edge's threshold, or by a completed section
// enrollment in the prerequisite course regardless of grade.
func (s *PrerequisiteService) Missing(ctx context.Context, studentID, courseID string) ([]models.MissingPrerequisite, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	edges, err := s.courses.ListPrerequisites(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}

	var missing []models.MissingPrerequisite
	for _, edge := range edges {
		satisfied, err := s.satisfied(ctx, studentID, edge)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			missing = append(missing, models.MissingPrerequisite{
				CourseID: edge.PrerequisiteID,
				Code:     edge.Code,
				Title:    edge.Title,
				MinGrade: edge.MinGrade,
			})
		}
	}
	return missing, nil
}

// IsSatisfied reports whether the student meets every prerequisite.
func (s *PrerequisiteService) IsSatisfied(ctx context.Context, studentID, courseID string) (bool, error) {
	missing, err := s.Missing(ctx, studentID, courseID)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

func (s *PrerequisiteService) satisfied(ctx context.Context, studentID string, edge models.CoursePrerequisite) (bool, error) {
	threshold := models.DefaultPassingGradePoints
	if edge.MinGrade != nil {
		threshold = models.GradePointsFor(*edge.MinGrade)
	}

	transcripts, err := s.transcripts.ListByStudentAndCourse(ctx, studentID, edge.PrerequisiteID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcripts")
	}
	for _, row := range transcripts {
		if row.EffectiveGradePoints() >= threshold {
			return true, nil
		}
	}

	completed, err := s.completions.HasCompleted(ctx, studentID, edge.PrerequisiteID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check completions")
	}
	return completed, nil
}
