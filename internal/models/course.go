package models

import "time"

// Course is a catalog entry owned by an org unit within a branch.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Title     string    `db:"title" json:"title"`
	OrgUnitID string    `db:"org_unit_id" json:"org_unit_id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CoursePrerequisite is one edge of the course prerequisite relation.
// MinGrade carries the per-edge minimum letter grade; nil means the
// default passing threshold applies.
type CoursePrerequisite struct {
	CourseID       string  `db:"course_id" json:"course_id"`
	PrerequisiteID string  `db:"prerequisite_id" json:"prerequisite_id"`
	MinGrade       *string `db:"min_grade" json:"min_grade,omitempty"`
	Code           string  `db:"code" json:"code"`
	Title          string  `db:"title" json:"title"`
}

// MissingPrerequisite describes one unsatisfied prerequisite for a student.
type MissingPrerequisite struct {
	CourseID string  `json:"course_id"`
	Code     string  `json:"code"`
	Title    string  `json:"title"`
	MinGrade *string `json:"min_grade,omitempty"`
}
