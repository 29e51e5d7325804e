package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/registrar-api/internal/service"
	"github.com/opencampus/registrar-api/pkg/response"
)

// SectionHandler exposes section-scoped read endpoints: the advisory
// seat snapshot and roster exports.
type SectionHandler struct {
	availability *service.AvailabilityService
	rosters      *service.RosterService
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(availability *service.AvailabilityService, rosters *service.RosterService) *SectionHandler {
	return &SectionHandler{availability: availability, rosters: rosters}
}

// Availability godoc
// @Summary Advisory seats-remaining snapshot for a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/availability [get]
func (h *SectionHandler) Availability(c *gin.Context) {
	snapshot, err := h.availability.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Roster godoc
// @Summary Export the section roster
// @Tags Sections
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /sections/{id}/roster [get]
func (h *SectionHandler) Roster(c *gin.Context) {
	export, err := h.rosters.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}
