package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/registrar-api/internal/models"
)

// EventRepository persists domain audit events. Events are best-effort:
// they are written after the mutating transaction commits, so a failed
// write loses the event but never the mutation.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record inserts a domain event.
func (r *EventRepository) Record(ctx context.Context, event models.DomainEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	const query = `INSERT INTO domain_events (id, name, actor_id, subject_id, section_id, detail, occurred_at)
        VALUES (:id, :name, :actor_id, :subject_id, :section_id, :detail, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("record domain event: %w", err)
	}
	return nil
}
