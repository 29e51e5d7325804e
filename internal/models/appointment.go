package models

import "time"

// AppointmentRole is the teaching role held on a section.
type AppointmentRole string

const (
	AppointmentRoleLecturer AppointmentRole = "LECTURER"
	AppointmentRoleTA       AppointmentRole = "TA"
)

// Appointment assigns a staff member to a section. A user may hold
// appointments across many sections but at most one per
// (section, user, role).
type Appointment struct {
	ID          string          `db:"id" json:"id"`
	SectionID   string          `db:"section_id" json:"section_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Role        AppointmentRole `db:"role" json:"role"`
	LoadPercent int             `db:"load_percent" json:"load_percent"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
