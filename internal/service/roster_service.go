package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/pkg/config"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
	"github.com/opencampus/registrar-api/pkg/export"
)

type rosterReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error)
}

// RosterService exports section rosters as CSV or PDF.
type RosterService struct {
	enrollments rosterReader
	sections    sectionReader
	cfg         config.ExportsConfig
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

func NewRosterService(enrollments rosterReader, sections sectionReader, cfg config.ExportsConfig, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		enrollments: enrollments,
		sections:    sections,
		cfg:         cfg,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// RosterExport is a rendered roster document.
type RosterExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

var rosterHeaders = []string{"student_id", "student_name", "role", "status", "enrolled_at", "waitlisted_at"}

// Export renders the active and waitlisted roster of a section in the
// requested format ("csv" or "pdf").
func (s *RosterService) Export(ctx context.Context, sectionID, format string) (*RosterExport, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "roster exports are disabled")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "format must be csv or pdf")
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	rows, err := s.enrollments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{Headers: rosterHeaders}
	for _, row := range rows {
		if row.Status == models.EnrollmentStatusDropped {
			continue
		}
		if s.cfg.MaxRosters > 0 && len(dataset.Rows) >= s.cfg.MaxRosters {
			s.logger.Sugar().Warnw("roster export truncated", "section_id", sectionID, "limit", s.cfg.MaxRosters)
			break
		}
		record := map[string]string{
			"student_id":   row.StudentID,
			"student_name": row.StudentName,
			"role":         string(row.Role),
			"status":       string(row.Status),
		}
		if row.EnrolledAt != nil {
			record["enrolled_at"] = row.EnrolledAt.Format("2006-01-02 15:04")
		}
		if row.WaitlistedAt != nil {
			record["waitlisted_at"] = row.WaitlistedAt.Format("2006-01-02 15:04")
		}
		dataset.Rows = append(dataset.Rows, record)
	}

	title := fmt.Sprintf("Roster %s", section.Code)
	switch format {
	case "pdf":
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return &RosterExport{
			FileName:    fmt.Sprintf("roster-%s.pdf", section.Code),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return &RosterExport{
			FileName:    fmt.Sprintf("roster-%s.csv", section.Code),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	}
}
