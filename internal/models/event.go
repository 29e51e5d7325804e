package models

import "time"

// Domain event names emitted by the enrollment engine.
const (
	EventEnrollmentCreated    = "enrollment.created"
	EventEnrollmentWaitlisted = "enrollment.waitlisted"
	EventEnrollmentDropped    = "enrollment.dropped"
	EventEnrollmentPromoted   = "enrollment.promoted"
)

// DomainEvent is an audit record of an engine-performed mutation. Events
// are recorded only after the surrounding transaction commits.
type DomainEvent struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
