package models

import "time"

// Term models an academic term inside a branch calendar.
type Term struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	BranchID     string     `db:"branch_id" json:"branch_id"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      time.Time  `db:"end_date" json:"end_date"`
	AddDropStart *time.Time `db:"add_drop_start" json:"add_drop_start,omitempty"`
	AddDropEnd   *time.Time `db:"add_drop_end" json:"add_drop_end,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AddDropOpenOn reports whether enrollment changes are permitted on the
// given date. A missing bound leaves that side unconstrained; both bounds
// are inclusive and compared date-only.
func (t *Term) AddDropOpenOn(day time.Time) bool {
	day = truncateToDate(day)
	if t.AddDropStart != nil && day.Before(truncateToDate(*t.AddDropStart)) {
		return false
	}
	if t.AddDropEnd != nil && day.After(truncateToDate(*t.AddDropEnd)) {
		return false
	}
	return true
}

func truncateToDate(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
