package models

import "time"

// EnrollmentStatus represents the lifecycle of a section enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Completed, failed and dropped rows are
// kept forever for transcript purposes; dropped rows are reused when the
// same student enrolls again.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusFailed     EnrollmentStatus = "FAILED"
)

// EnrollmentRole distinguishes credit-seeking students from auditors.
type EnrollmentRole string

const (
	EnrollmentRoleStudent EnrollmentRole = "STUDENT"
	EnrollmentRoleAuditor EnrollmentRole = "AUDITOR"
)

// ValidEnrollmentRole reports whether the given role is accepted by the
// enrollment engine.
func ValidEnrollmentRole(role EnrollmentRole) bool {
	return role == EnrollmentRoleStudent || role == EnrollmentRoleAuditor
}

// SectionEnrollment is the enrollment of one student in one section.
// The pair (student, section) is unique; only the timestamp matching the
// current status is set, the other two are nil.
type SectionEnrollment struct {
	ID           string           `db:"id" json:"id"`
	SectionID    string           `db:"section_id" json:"section_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	BranchID     string           `db:"branch_id" json:"branch_id"`
	Role         EnrollmentRole   `db:"role" json:"role"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	WaitlistedAt *time.Time       `db:"waitlisted_at" json:"waitlisted_at,omitempty"`
	DroppedAt    *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches SectionEnrollment with roster context.
type EnrollmentDetail struct {
	SectionEnrollment
	StudentName string `db:"student_name" json:"student_name"`
	SectionCode string `db:"section_code" json:"section_code"`
	CourseCode  string `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	SectionID string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
