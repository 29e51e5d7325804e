package models

import (
	"strings"
	"time"
)

// Transcript is a finalized grade record per (student, course, term).
// It is the authoritative source for "completed with grade >= X" checks.
type Transcript struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	TermID      string    `db:"term_id" json:"term_id"`
	FinalGrade  string    `db:"final_grade" json:"final_grade"`
	GradePoints *float64  `db:"grade_points" json:"grade_points,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DefaultPassingGradePoints is the threshold used when a prerequisite
// edge carries no minimum grade, and the fallback for letter grades the
// table does not know ("C" or better).
const DefaultPassingGradePoints = 2.0

var letterGradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"F":  0.0,
	"P":  4.0,
	"S":  4.0,
	"U":  0.0,
	"W":  0.0,
}

// GradePointsFor maps a letter grade to grade points, case-insensitive
// and trimmed. Unknown grades resolve to DefaultPassingGradePoints
// rather than rejecting; a deliberately lenient fallback.
func GradePointsFor(letter string) float64 {
	if points, ok := letterGradePoints[strings.ToUpper(strings.TrimSpace(letter))]; ok {
		return points
	}
	return DefaultPassingGradePoints
}

// EffectiveGradePoints returns the explicit grade points when recorded,
// otherwise the points derived from the final letter grade.
func (t *Transcript) EffectiveGradePoints() float64 {
	if t.GradePoints != nil {
		return *t.GradePoints
	}
	return GradePointsFor(t.FinalGrade)
}
