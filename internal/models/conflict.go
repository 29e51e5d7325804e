package models

// ConflictingMeeting identifies an existing meeting that overlaps a
// candidate slot.
type ConflictingMeeting struct {
	MeetingID   string    `json:"meeting_id"`
	SectionID   string    `json:"section_id"`
	SectionCode string    `json:"section_code"`
	CourseCode  string    `json:"course_code"`
	DayOfWeek   int       `json:"day_of_week"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
}

// RoomConflict lists meetings of other sections double-booking a room.
type RoomConflict struct {
	RoomID      string               `json:"room_id"`
	OverlapWith []ConflictingMeeting `json:"overlap_with"`
}

// TeacherConflict lists one instructor's overlapping commitments.
type TeacherConflict struct {
	UserID      string               `json:"user_id"`
	OverlapWith []ConflictingMeeting `json:"overlap_with"`
}

// MeetingConflictReport is the advisory result of a candidate-meeting
// check. Empty lists mean no conflict; the caller decides whether a
// non-empty report blocks the save.
type MeetingConflictReport struct {
	Room    *RoomConflict     `json:"room,omitempty"`
	Teacher []TeacherConflict `json:"teacher,omitempty"`
}

// HasConflicts reports whether any dimension of the report is non-empty.
func (r *MeetingConflictReport) HasConflicts() bool {
	if r == nil {
		return false
	}
	if r.Room != nil && len(r.Room.OverlapWith) > 0 {
		return true
	}
	for _, t := range r.Teacher {
		if len(t.OverlapWith) > 0 {
			return true
		}
	}
	return false
}

// AppointmentConflictReport is the advisory result of a candidate
// appointment check; only the teacher dimension applies.
type AppointmentConflictReport struct {
	Teacher []TeacherConflict `json:"teacher,omitempty"`
}

// HasConflicts reports whether the candidate instructor collides with
// any existing commitment.
func (r *AppointmentConflictReport) HasConflicts() bool {
	if r == nil {
		return false
	}
	for _, t := range r.Teacher {
		if len(t.OverlapWith) > 0 {
			return true
		}
	}
	return false
}

// PrerequisiteError carries the unmet prerequisite list so handlers can
// surface it as field errors.
type PrerequisiteError struct {
	CourseID string                `json:"course_id"`
	Missing  []MissingPrerequisite `json:"missing"`
}

// Error implements the error interface.
func (e *PrerequisiteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "prerequisites not met"
}
