package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/registrar-api/internal/service"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
	"github.com/opencampus/registrar-api/pkg/response"
)

// PrerequisiteHandler exposes the advisory prerequisite check.
type PrerequisiteHandler struct {
	prereqs *service.PrerequisiteService
}

// NewPrerequisiteHandler constructs PrerequisiteHandler.
func NewPrerequisiteHandler(prereqs *service.PrerequisiteService) *PrerequisiteHandler {
	return &PrerequisiteHandler{prereqs: prereqs}
}

// Check godoc
// @Summary List prerequisites a student is missing for a course
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId query string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisites/check [get]
func (h *PrerequisiteHandler) Check(c *gin.Context) {
	studentID := c.Query("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "studentId is required"))
		return
	}
	missing, err := h.prereqs.Missing(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"satisfied": len(missing) == 0,
		"missing":   missing,
	}, nil)
}
