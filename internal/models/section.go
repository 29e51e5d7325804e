package models

import "time"

// SectionStatus represents the lifecycle of a section.
type SectionStatus string

// Possible section statuses.
const (
	SectionStatusPlanned   SectionStatus = "PLANNED"
	SectionStatusActive    SectionStatus = "ACTIVE"
	SectionStatusClosed    SectionStatus = "CLOSED"
	SectionStatusCancelled SectionStatus = "CANCELLED"
)

// Section is one scheduled offering of a course within a term.
// Capacity and WaitlistCap bound the enrollment engine; the engine never
// mutates them, only the enrollment rows counted against them.
type Section struct {
	ID          string        `db:"id" json:"id"`
	CourseID    string        `db:"course_id" json:"course_id"`
	TermID      string        `db:"term_id" json:"term_id"`
	BranchID    string        `db:"branch_id" json:"branch_id"`
	Code        string        `db:"code" json:"code"`
	Capacity    int           `db:"capacity" json:"capacity"`
	WaitlistCap int           `db:"waitlist_cap" json:"waitlist_cap"`
	Status      SectionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// SectionAvailability is an advisory seats-remaining snapshot. It is
// served from cache and may lag behind committed enrollment writes.
type SectionAvailability struct {
	SectionID      string    `json:"section_id"`
	Capacity       int       `json:"capacity"`
	WaitlistCap    int       `json:"waitlist_cap"`
	ActiveCount    int       `json:"active_count"`
	WaitlistedCount int      `json:"waitlisted_count"`
	SeatsRemaining int       `json:"seats_remaining"`
	ComputedAt     time.Time `json:"computed_at"`
}
