package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// AppointmentRepository reads teaching appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListBySection returns the appointments held on one section.
func (r *AppointmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Appointment, error) {
	const query = `SELECT id, section_id, user_id, role, load_percent, created_at, updated_at
        FROM appointments WHERE section_id = $1 ORDER BY created_at ASC`
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section appointments: %w", err)
	}
	return appointments, nil
}
