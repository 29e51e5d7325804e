package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// MeetingModality describes how a meeting is delivered.
type MeetingModality string

const (
	ModalityInPerson MeetingModality = "IN_PERSON"
	ModalityOnline   MeetingModality = "ONLINE"
	ModalityHybrid   MeetingModality = "HYBRID"
)

// TimeOfDay is a branch-local wall-clock time with second precision,
// stored as seconds since midnight. Cross-midnight spans are not
// representable: every meeting must start and end on the same day.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		sec = 0
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// String renders the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// MarshalJSON renders the time as a quoted HH:MM:SS string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted HH:MM or HH:MM:SS string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("time of day must be a string")
	}
	parsed, err := ParseTimeOfDay(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay(v.Hour()*3600 + v.Minute()*60 + v.Second())
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// SectionMeeting is one weekly recurring time slot owned by a section.
// RoomID is nil for online meetings.
type SectionMeeting struct {
	ID          string          `db:"id" json:"id"`
	SectionID   string          `db:"section_id" json:"section_id"`
	DayOfWeek   int             `db:"day_of_week" json:"day_of_week"`
	StartTime   TimeOfDay       `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay       `db:"end_time" json:"end_time"`
	RoomID      *string         `db:"room_id" json:"room_id,omitempty"`
	Modality    MeetingModality `db:"modality" json:"modality"`
	RepeatUntil *time.Time      `db:"repeat_until" json:"repeat_until,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// MeetingDetail enriches SectionMeeting with course context for reports.
type MeetingDetail struct {
	SectionMeeting
	CourseCode  string `db:"course_code" json:"course_code"`
	SectionCode string `db:"section_code" json:"section_code"`
}

// MeetingSlotsOverlap reports whether two weekly slots collide. Slots on
// different days never overlap; on the same day the comparison is
// half-open, so a slot ending exactly when another starts does not
// conflict. No timezone conversion is applied: both slots are assumed to
// be branch-local, and cross-midnight spans are unsupported.
func MeetingSlotsOverlap(dayA int, startA, endA TimeOfDay, dayB int, startB, endB TimeOfDay) bool {
	if dayA != dayB {
		return false
	}
	return startA < endB && startB < endA
}
