package models

import "time"

// ProgramEnrollmentStatus is the lifecycle of a program membership.
type ProgramEnrollmentStatus string

const (
	ProgramEnrollmentStatusActive    ProgramEnrollmentStatus = "ACTIVE"
	ProgramEnrollmentStatusPaused    ProgramEnrollmentStatus = "PAUSED"
	ProgramEnrollmentStatusGraduated ProgramEnrollmentStatus = "GRADUATED"
	ProgramEnrollmentStatusWithdrawn ProgramEnrollmentStatus = "WITHDRAWN"
)

// Program is a degree program offered by a branch.
type Program struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramEnrollment is a student's membership in a program. Cohort labels
// group students for batch section enrollment.
type ProgramEnrollment struct {
	ID        string                  `db:"id" json:"id"`
	ProgramID string                  `db:"program_id" json:"program_id"`
	StudentID string                  `db:"student_id" json:"student_id"`
	Cohort    string                  `db:"cohort" json:"cohort"`
	Status    ProgramEnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt time.Time               `db:"updated_at" json:"updated_at"`
}
