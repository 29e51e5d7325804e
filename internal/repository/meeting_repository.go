package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// MeetingRepository reads weekly section meetings. All queries feeding
// the conflict checker are plain reads with no locking; the checker only
// reports overlaps, it never blocks a save.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

const meetingDetailColumns = `m.id, m.section_id, m.day_of_week, m.start_time, m.end_time, m.room_id, m.modality, m.repeat_until, m.created_at, m.updated_at,
        c.code AS course_code, s.code AS section_code`

// ListBySection returns the meetings owned by one section.
func (r *MeetingRepository) ListBySection(ctx context.Context, sectionID string) ([]models.SectionMeeting, error) {
	const query = `SELECT id, section_id, day_of_week, start_time, end_time, room_id, modality, repeat_until, created_at, updated_at
        FROM section_meetings WHERE section_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var meetings []models.SectionMeeting
	if err := r.db.SelectContext(ctx, &meetings, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section meetings: %w", err)
	}
	return meetings, nil
}

// ListByRoomAndTerm returns meetings of OTHER sections in the same term
// held in the given room, ordered earliest slot first so conflict
// reports are stable.
func (r *MeetingRepository) ListByRoomAndTerm(ctx context.Context, roomID, termID, excludeSectionID string) ([]models.MeetingDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM section_meetings m
        JOIN sections s ON s.id = m.section_id AND s.deleted_at IS NULL
        JOIN courses c ON c.id = s.course_id
        WHERE m.room_id = $1 AND s.term_id = $2 AND m.section_id <> $3
        ORDER BY m.day_of_week ASC, m.start_time ASC`, meetingDetailColumns)
	var meetings []models.MeetingDetail
	if err := r.db.SelectContext(ctx, &meetings, query, roomID, termID, excludeSectionID); err != nil {
		return nil, fmt.Errorf("list room meetings: %w", err)
	}
	return meetings, nil
}

// ListByInstructorAndTerm returns meetings of OTHER sections in the same
// term where the given user holds any teaching appointment. A non-empty
// excludeAppointmentID drops the appointment being edited so in-place
// updates do not self-conflict.
func (r *MeetingRepository) ListByInstructorAndTerm(ctx context.Context, userID, termID, excludeSectionID, excludeAppointmentID string) ([]models.MeetingDetail, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s
        FROM section_meetings m
        JOIN sections s ON s.id = m.section_id AND s.deleted_at IS NULL
        JOIN courses c ON c.id = s.course_id
        JOIN appointments a ON a.section_id = m.section_id
        WHERE a.user_id = $1 AND s.term_id = $2 AND m.section_id <> $3`, meetingDetailColumns)
	args := []interface{}{userID, termID, excludeSectionID}
	if excludeAppointmentID != "" {
		query += fmt.Sprintf(" AND a.id <> $%d", len(args)+1)
		args = append(args, excludeAppointmentID)
	}
	query += " ORDER BY m.day_of_week ASC, m.start_time ASC"
	var meetings []models.MeetingDetail
	if err := r.db.SelectContext(ctx, &meetings, query, args...); err != nil {
		return nil, fmt.Errorf("list instructor meetings: %w", err)
	}
	return meetings, nil
}
