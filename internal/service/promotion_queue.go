package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/pkg/config"
	"github.com/opencampus/registrar-api/pkg/jobs"
)

// WaitlistPromoter is the slice of the enrollment engine the promotion
// queue needs.
type WaitlistPromoter interface {
	PromoteNextFromWaitlist(ctx context.Context, sectionID string, actorID *string) (*models.SectionEnrollment, error)
}

// WaitlistPromotionQueue runs deferred waitlist promotions on an
// in-memory worker pool. A job carries only the section id, so retries
// and duplicate deliveries are harmless: promotion re-checks capacity
// under the section lock every time.
type WaitlistPromotionQueue struct {
	queue *jobs.Queue
}

// NewWaitlistPromotionQueue wires the promotion handler into a worker
// queue sized from configuration.
func NewWaitlistPromotionQueue(promoter WaitlistPromoter, cfg config.EnrollmentConfig, logger *zap.Logger) *WaitlistPromotionQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		sectionID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected promotion payload %T", job.Payload)
		}
		promoted, err := promoter.PromoteNextFromWaitlist(ctx, sectionID, nil)
		if err != nil {
			return err
		}
		if promoted != nil {
			logger.Sugar().Infow("promoted from waitlist",
				"section_id", sectionID, "student_id", promoted.StudentID, "enrollment_id", promoted.ID)
		}
		return nil
	}
	queue := jobs.NewQueue("waitlist-promotion", handler, jobs.QueueConfig{
		Workers:    cfg.PromotionWorkers,
		MaxRetries: cfg.PromotionRetries,
		RetryDelay: cfg.PromotionRetryDelay,
		Logger:     logger,
	})
	return &WaitlistPromotionQueue{queue: queue}
}

// Start launches the workers.
func (p *WaitlistPromotionQueue) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop drains the workers.
func (p *WaitlistPromotionQueue) Stop() {
	p.queue.Stop()
}

// ScheduleWaitlistPromotion enqueues one promotion attempt for the
// section.
func (p *WaitlistPromotionQueue) ScheduleWaitlistPromotion(sectionID string) error {
	return p.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "waitlist.promotion",
		Payload: sectionID,
	})
}
