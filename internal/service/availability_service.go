package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/internal/repository"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

type availabilityCounter interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	CountEnrollmentsByStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error)
}

// AvailabilityService serves advisory seats-remaining snapshots from
// redis. Snapshots are computed without locks and may lag a concurrent
// enroll; the engine never consults them for admission decisions.
type AvailabilityService struct {
	sections availabilityCounter
	cache    availabilityCache
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewAvailabilityService(sections availabilityCounter, cache availabilityCache, ttl time.Duration, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityService{
		sections: sections,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func availabilityKey(sectionID string) string {
	return "availability:section:" + sectionID
}

// Availability returns the cached snapshot for a section, computing and
// caching a fresh one on miss.
func (s *AvailabilityService) Availability(ctx context.Context, sectionID string) (*models.SectionAvailability, error) {
	if s.cache != nil {
		var cached models.SectionAvailability
		if err := s.cache.Get(ctx, availabilityKey(sectionID), &cached); err == nil {
			return &cached, nil
		} else if err != repository.ErrCacheMiss {
			s.logger.Sugar().Warnw("availability cache read failed", "section_id", sectionID, "error", err)
		}
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	active, err := s.sections.CountEnrollmentsByStatus(ctx, sectionID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
	}
	waitlisted, err := s.sections.CountEnrollmentsByStatus(ctx, sectionID, models.EnrollmentStatusWaitlisted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waitlisted enrollments")
	}

	remaining := section.Capacity - active
	if remaining < 0 {
		remaining = 0
	}
	snapshot := &models.SectionAvailability{
		SectionID:       sectionID,
		Capacity:        section.Capacity,
		WaitlistCap:     section.WaitlistCap,
		ActiveCount:     active,
		WaitlistedCount: waitlisted,
		SeatsRemaining:  remaining,
		ComputedAt:      s.now(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, availabilityKey(sectionID), snapshot, s.ttl); err != nil {
			s.logger.Sugar().Warnw("availability cache write failed", "section_id", sectionID, "error", err)
		}
	}
	return snapshot, nil
}

// Invalidate drops the cached snapshot for a section. Called after
// every committed enrollment mutation.
func (s *AvailabilityService) Invalidate(ctx context.Context, sectionID string) {
	if s.cache != nil {
		s.cache.Delete(ctx, availabilityKey(sectionID))
	}
}
