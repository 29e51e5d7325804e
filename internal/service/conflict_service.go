package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

type conflictSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type conflictMeetingReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.SectionMeeting, error)
	ListByRoomAndTerm(ctx context.Context, roomID, termID, excludeSectionID string) ([]models.MeetingDetail, error)
	ListByInstructorAndTerm(ctx context.Context, userID, termID, excludeSectionID, excludeAppointmentID string) ([]models.MeetingDetail, error)
}

type conflictAppointmentReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.Appointment, error)
}

// MeetingCandidate is a meeting slot being created or edited.
type MeetingCandidate struct {
	DayOfWeek int              `json:"day_of_week" validate:"min=0,max=6"`
	StartTime models.TimeOfDay `json:"start_time"`
	EndTime   models.TimeOfDay `json:"end_time"`
	RoomID    *string          `json:"room_id,omitempty"`
}

// AppointmentCandidate is a teaching appointment being created or edited.
type AppointmentCandidate struct {
	UserID      string                 `json:"user_id" validate:"required"`
	Role        models.AppointmentRole `json:"role"`
	LoadPercent int                    `json:"load_percent" validate:"min=0,max=100"`
}

// ConflictService detects room and instructor double-booking across
// overlapping weekly slots. All checks are plain reads: the service
// reports, the caller decides whether to block the save. A save racing
// a check can still slip a conflict in; that window is accepted and
// documented rather than closed.
type ConflictService struct {
	sections     conflictSectionReader
	meetings     conflictMeetingReader
	appointments conflictAppointmentReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewConflictService constructs ConflictService.
func NewConflictService(sections conflictSectionReader, meetings conflictMeetingReader, appointments conflictAppointmentReader, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{sections: sections, meetings: meetings, appointments: appointments, validator: validate, logger: logger}
}

// CheckMeetingConflicts compares a candidate meeting against sibling
// sections of the same term: other meetings in the same room, and other
// commitments of every instructor appointed to this section. Conflicts
// outside the term are irrelevant since schedules do not span terms.
func (s *ConflictService) CheckMeetingConflicts(ctx context.Context, sectionID string, candidate MeetingCandidate, excludeMeetingID *string) (*models.MeetingConflictReport, error) {
	if err := s.validator.Struct(candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting candidate")
	}
	if candidate.StartTime >= candidate.EndTime {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "meeting must start before it ends")
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	report := &models.MeetingConflictReport{}

	if candidate.RoomID != nil {
		roomMeetings, err := s.meetings.ListByRoomAndTerm(ctx, *candidate.RoomID, section.TermID, section.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan room meetings")
		}
		overlaps := filterOverlapping(roomMeetings, candidate, excludeMeetingID)
		if len(overlaps) > 0 {
			report.Room = &models.RoomConflict{RoomID: *candidate.RoomID, OverlapWith: overlaps}
		}
	}

	appointments, err := s.appointments.ListBySection(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section appointments")
	}
	for _, userID := range distinctUserIDs(appointments) {
		instructorMeetings, err := s.meetings.ListByInstructorAndTerm(ctx, userID, section.TermID, section.ID, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan instructor meetings")
		}
		overlaps := filterOverlapping(instructorMeetings, candidate, excludeMeetingID)
		if len(overlaps) > 0 {
			report.Teacher = append(report.Teacher, models.TeacherConflict{UserID: userID, OverlapWith: overlaps})
		}
	}

	return report, nil
}

// CheckAppointmentConflicts compares every meeting slot of the section
// against the candidate instructor's meetings on other sections of the
// same term.
func (s *ConflictService) CheckAppointmentConflicts(ctx context.Context, sectionID string, candidate AppointmentCandidate, excludeAppointmentID *string) (*models.AppointmentConflictReport, error) {
	if err := s.validator.Struct(candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment candidate")
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	ownMeetings, err := s.meetings.ListBySection(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section meetings")
	}

	excludeID := ""
	if excludeAppointmentID != nil {
		excludeID = *excludeAppointmentID
	}
	instructorMeetings, err := s.meetings.ListByInstructorAndTerm(ctx, candidate.UserID, section.TermID, section.ID, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan instructor meetings")
	}

	var overlaps []models.ConflictingMeeting
	seen := make(map[string]bool)
	for _, own := range ownMeetings {
		for _, other := range instructorMeetings {
			if seen[other.ID] {
				continue
			}
			if models.MeetingSlotsOverlap(own.DayOfWeek, own.StartTime, own.EndTime, other.DayOfWeek, other.StartTime, other.EndTime) {
				seen[other.ID] = true
				overlaps = append(overlaps, toConflictingMeeting(other))
			}
		}
	}

	report := &models.AppointmentConflictReport{}
	if len(overlaps) > 0 {
		report.Teacher = []models.TeacherConflict{{UserID: candidate.UserID, OverlapWith: overlaps}}
	}
	return report, nil
}

func filterOverlapping(meetings []models.MeetingDetail, candidate MeetingCandidate, excludeMeetingID *string) []models.ConflictingMeeting {
	var overlaps []models.ConflictingMeeting
	for _, meeting := range meetings {
		if excludeMeetingID != nil && meeting.ID == *excludeMeetingID {
			continue
		}
		if models.MeetingSlotsOverlap(candidate.DayOfWeek, candidate.StartTime, candidate.EndTime, meeting.DayOfWeek, meeting.StartTime, meeting.EndTime) {
			overlaps = append(overlaps, toConflictingMeeting(meeting))
		}
	}
	return overlaps
}

func distinctUserIDs(appointments []models.Appointment) []string {
	seen := make(map[string]bool, len(appointments))
	var ids []string
	for _, appointment := range appointments {
		if !seen[appointment.UserID] {
			seen[appointment.UserID] = true
			ids = append(ids, appointment.UserID)
		}
	}
	return ids
}

func toConflictingMeeting(meeting models.MeetingDetail) models.ConflictingMeeting {
	return models.ConflictingMeeting{
		MeetingID:   meeting.ID,
		SectionID:   meeting.SectionID,
		SectionCode: meeting.SectionCode,
		CourseCode:  meeting.CourseCode,
		DayOfWeek:   meeting.DayOfWeek,
		StartTime:   meeting.StartTime,
		EndTime:     meeting.EndTime,
	}
}
