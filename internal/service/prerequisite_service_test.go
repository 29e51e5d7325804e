package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/registrar-api/internal/models"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

type mockCourseReader struct {
	courses map[string]*models.Course
	edges   map[string][]models.CoursePrerequisite
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) ListPrerequisites(ctx context.Context, courseID string) ([]models.CoursePrerequisite, error) {
	return m.edges[courseID], nil
}

type mockTranscriptReader struct {
	rows map[string][]models.Transcript
}

func (m *mockTranscriptReader) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Transcript, error) {
	return m.rows[studentID+"/"+courseID], nil
}

type mockCompletionReader struct {
	completed map[string]bool
}

func (m *mockCompletionReader) HasCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.completed[studentID+"/"+courseID], nil
}

func newPrereqFixture() (*PrerequisiteService, *mockCourseReader, *mockTranscriptReader, *mockCompletionReader) {
	minGrade := "B"
	courses := &mockCourseReader{
		courses: map[string]*models.Course{
			"calc-2": {ID: "calc-2", Code: "MA202"},
		},
		edges: map[string][]models.CoursePrerequisite{
			"calc-2": {
				{CourseID: "calc-2", PrerequisiteID: "calc-1", MinGrade: &minGrade, Code: "MA201", Title: "Calculus I"},
			},
		},
	}
	transcripts := &mockTranscriptReader{rows: make(map[string][]models.Transcript)}
	completions := &mockCompletionReader{completed: make(map[string]bool)}
	return NewPrerequisiteService(courses, transcripts, completions, nil), courses, transcripts, completions
}

func TestMissingWithSufficientGrade(t *testing.T) {
	svc, _, transcripts, _ := newPrereqFixture()
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "A-"},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingWithInsufficientGrade(t *testing.T) {
	svc, _, transcripts, _ := newPrereqFixture()
	// C+ is 2.3, below the required B threshold of 3.0.
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "C+"},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "calc-1", missing[0].CourseID)
	assert.Equal(t, "MA201", missing[0].Code)
}

func TestMissingRetakeBestAttemptCounts(t *testing.T) {
	svc, _, transcripts, _ := newPrereqFixture()
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "F"},
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "B+"},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingCompletedEnrollmentSatisfiesWithoutTranscript(t *testing.T) {
	svc, _, _, completions := newPrereqFixture()
	completions.completed["student-1/calc-1"] = true

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingExplicitGradePointsWinOverLetter(t *testing.T) {
	svc, _, transcripts, _ := newPrereqFixture()
	// Recorded points beat the letter lookup.
	points := 3.5
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "C", GradePoints: &points},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingBelowDefaultThreshold(t *testing.T) {
	svc, courses, transcripts, _ := newPrereqFixture()
	// No minimum grade on the edge, so the default threshold of 2.0
	// applies; C- is 1.7.
	courses.edges["calc-2"] = []models.CoursePrerequisite{
		{CourseID: "calc-2", PrerequisiteID: "calc-1", Code: "MA201", Title: "Calculus I"},
	}
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "C-"},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "calc-1", missing[0].CourseID)
}

func TestMissingUnknownGradeFallsBackLeniently(t *testing.T) {
	svc, courses, transcripts, _ := newPrereqFixture()
	// No minimum grade on the edge: the default threshold of 2.0 applies,
	// and an unknown letter also maps to 2.0, so it passes.
	courses.edges["calc-2"] = []models.CoursePrerequisite{
		{CourseID: "calc-2", PrerequisiteID: "calc-1", Code: "MA201", Title: "Calculus I"},
	}
	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "TRANSFER"},
	}

	missing, err := svc.Missing(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingUnknownCourse(t *testing.T) {
	svc, _, _, _ := newPrereqFixture()

	_, err := svc.Missing(context.Background(), "student-1", "nope")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestIsSatisfied(t *testing.T) {
	svc, _, transcripts, _ := newPrereqFixture()

	ok, err := svc.IsSatisfied(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.False(t, ok)

	transcripts.rows["student-1/calc-1"] = []models.Transcript{
		{StudentID: "student-1", CourseID: "calc-1", FinalGrade: "B"},
	}
	ok, err = svc.IsSatisfied(context.Background(), "student-1", "calc-2")
	require.NoError(t, err)
	assert.True(t, ok)
}
