package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/registrar-api/internal/service"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
	"github.com/opencampus/registrar-api/pkg/response"
)

// ConflictHandler exposes the timetable conflict checker.
type ConflictHandler struct {
	conflicts *service.ConflictService
}

// NewConflictHandler constructs ConflictHandler.
func NewConflictHandler(conflicts *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// MeetingCheckRequest is the payload for a meeting conflict check.
type MeetingCheckRequest struct {
	Candidate        service.MeetingCandidate `json:"candidate"`
	ExcludeMeetingID *string                  `json:"exclude_meeting_id,omitempty"`
}

// AppointmentCheckRequest is the payload for an appointment conflict check.
type AppointmentCheckRequest struct {
	Candidate            service.AppointmentCandidate `json:"candidate"`
	ExcludeAppointmentID *string                      `json:"exclude_appointment_id,omitempty"`
}

// CheckMeetings godoc
// @Summary Check a candidate meeting for room and instructor clashes
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body handler.MeetingCheckRequest true "Candidate meeting"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/conflicts/meetings [post]
func (h *ConflictHandler) CheckMeetings(c *gin.Context) {
	var req MeetingCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.conflicts.CheckMeetingConflicts(c.Request.Context(), c.Param("id"), req.Candidate, req.ExcludeMeetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CheckAppointments godoc
// @Summary Check a candidate staff appointment for timetable clashes
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body handler.AppointmentCheckRequest true "Candidate appointment"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/conflicts/appointments [post]
func (h *ConflictHandler) CheckAppointments(c *gin.Context) {
	var req AppointmentCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.conflicts.CheckAppointmentConflicts(c.Request.Context(), c.Param("id"), req.Candidate, req.ExcludeAppointmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
