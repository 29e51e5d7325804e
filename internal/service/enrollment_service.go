package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/internal/repository"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

type enrollmentStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.EnrollmentTx) error) error
	FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type programReader interface {
	FindProgramByID(ctx context.Context, id string) (*models.Program, error)
	ListActive(ctx context.Context, programID, cohort string) ([]models.ProgramEnrollment, error)
}

type prerequisiteChecker interface {
	Missing(ctx context.Context, studentID, courseID string) ([]models.MissingPrerequisite, error)
}

// EventRecorder persists domain audit events after commit.
type EventRecorder interface {
	Record(ctx context.Context, event models.DomainEvent) error
}

// Notifier delivers out-of-band messages to students. Implementations
// must not block the caller.
type Notifier interface {
	NotifyOverrideEnrollment(ctx context.Context, studentID, sectionID, reason string)
}

// PromotionScheduler enqueues a deferred waitlist promotion for a
// section whose seat count just changed.
type PromotionScheduler interface {
	ScheduleWaitlistPromotion(sectionID string) error
}

// AvailabilityInvalidator drops cached seat snapshots after a committed
// enrollment mutation.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, sectionID string)
}

// EnrollOptions tune a single enroll call. Override is the admin escape
// hatch: it bypasses branch isolation, the add/drop window, capacity and
// prerequisites, with the reason recorded on the audit event.
type EnrollOptions struct {
	Override            bool   `json:"override"`
	OverrideReason      string `json:"override_reason,omitempty"`
	BypassPrerequisites bool   `json:"bypass_prerequisites"`
	ForceWaitlist       bool   `json:"force_waitlist"`
}

// DropOptions tune a single drop call.
type DropOptions struct {
	Override bool   `json:"override"`
	Reason   string `json:"reason,omitempty"`
}

// EnrollRequest admits one student into one section.
type EnrollRequest struct {
	ActorID   string                `json:"-" validate:"required"`
	StudentID string                `json:"student_id" validate:"required"`
	SectionID string                `json:"section_id" validate:"required"`
	Role      models.EnrollmentRole `json:"role" validate:"required"`
	Options   EnrollOptions         `json:"options"`
}

// DropRequest drops one enrollment.
type DropRequest struct {
	ActorID      string      `json:"-" validate:"required"`
	EnrollmentID string      `json:"-" validate:"required"`
	Options      DropOptions `json:"options"`
}

// BatchEnrollRequest enrolls a program cohort into a section.
type BatchEnrollRequest struct {
	ActorID   string        `json:"-" validate:"required"`
	ProgramID string        `json:"program_id" validate:"required"`
	TermID    string        `json:"term_id" validate:"required"`
	SectionID string        `json:"section_id" validate:"required"`
	Cohort    string        `json:"cohort,omitempty"`
	Options   EnrollOptions `json:"options"`
}

// BatchEnrollFailure records one student the batch could not place.
type BatchEnrollFailure struct {
	StudentID string `json:"student_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BatchEnrollResult summarises a cohort enrollment run.
type BatchEnrollResult struct {
	Enrolled   int                  `json:"enrolled"`
	Waitlisted int                  `json:"waitlisted"`
	Failures   []BatchEnrollFailure `json:"failures,omitempty"`
}

// EnrollmentService is the section enrollment engine. Every
// capacity-sensitive decision happens inside one transaction holding
// the section row lock, acquired before any enrollment row lock at all
// call sites. Side effects that must survive only committed state
// (events, notifications, promotion scheduling) are collected during
// the transaction and run after it commits.
type EnrollmentService struct {
	store     enrollmentStore
	sections  sectionReader
	terms     termReader
	users     userReader
	programs  programReader
	prereqs   prerequisiteChecker
	events    EventRecorder
	notifier  Notifier
	scheduler PromotionScheduler
	cache     AvailabilityInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// EnrollmentServiceDeps bundles the engine's collaborators.
type EnrollmentServiceDeps struct {
	Store     enrollmentStore
	Sections  sectionReader
	Terms     termReader
	Users     userReader
	Programs  programReader
	Prereqs   prerequisiteChecker
	Events    EventRecorder
	Notifier  Notifier
	Cache     AvailabilityInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewEnrollmentService constructs the engine. The promotion scheduler is
// attached separately because the promotion queue needs the service as
// its handler.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		store:     deps.Store,
		sections:  deps.Sections,
		terms:     deps.Terms,
		users:     deps.Users,
		programs:  deps.Programs,
		prereqs:   deps.Prereqs,
		events:    deps.Events,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetPromotionScheduler wires the deferred promotion trigger.
func (s *EnrollmentService) SetPromotionScheduler(scheduler PromotionScheduler) {
	s.scheduler = scheduler
}

// Enroll admits or waitlists a student. Preconditions run in a fixed
// order, each with its own failure kind: role, branch isolation,
// duplicate enrollment (under lock), add/drop window, prerequisites.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.SectionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !models.ValidEnrollmentRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid enrollment role")
	}

	actor, err := s.loadUser(ctx, req.ActorID, "actor")
	if err != nil {
		return nil, err
	}
	student, err := s.loadUser(ctx, req.StudentID, "student")
	if err != nil {
		return nil, err
	}
	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}

	if !actor.IsSuperAdmin() && !req.Options.Override {
		if actor.BranchID != section.BranchID || student.BranchID != section.BranchID {
			return nil, appErrors.Clone(appErrors.ErrCrossBranch, "")
		}
	}

	term, err := s.loadTerm(ctx, section.TermID)
	if err != nil {
		return nil, err
	}

	// Computed before the transaction; enforced after the duplicate
	// check so the failure kinds keep their precedence.
	var missing []models.MissingPrerequisite
	if req.Role != models.EnrollmentRoleAuditor && !req.Options.Override && !req.Options.BypassPrerequisites {
		missing, err = s.prereqs.Missing(ctx, req.StudentID, section.CourseID)
		if err != nil {
			return nil, err
		}
	}

	var result *models.SectionEnrollment
	var postCommit []func()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.EnrollmentTx) error {
		locked, err := tx.LockSection(ctx, section.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock section")
		}

		existing, err := tx.FindForUpdate(ctx, req.StudentID, section.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock enrollment")
		}
		if existing != nil {
			switch existing.Status {
			case models.EnrollmentStatusActive:
				return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
			case models.EnrollmentStatusWaitlisted:
				return appErrors.Clone(appErrors.ErrAlreadyWaitlisted, "")
			}
		}

		if !req.Options.Override && !term.AddDropOpenOn(s.now()) {
			return appErrors.Clone(appErrors.ErrAddDropClosed, "")
		}

		if len(missing) > 0 {
			return appErrors.Wrap(
				&models.PrerequisiteError{CourseID: section.CourseID, Missing: missing},
				appErrors.ErrPrerequisiteNotMet.Code, appErrors.ErrPrerequisiteNotMet.Status, appErrors.ErrPrerequisiteNotMet.Message)
		}

		status, err := s.determineEnrollmentStatus(ctx, tx, locked, req.Options)
		if err != nil {
			return err
		}

		now := s.now()
		row := existing
		if row == nil {
			row = &models.SectionEnrollment{
				SectionID: section.ID,
				StudentID: req.StudentID,
				BranchID:  section.BranchID,
			}
		}
		row.Role = req.Role
		row.Status = status
		row.EnrolledAt, row.WaitlistedAt, row.DroppedAt = nil, nil, nil
		if status == models.EnrollmentStatusActive {
			row.EnrolledAt = &now
		} else {
			row.WaitlistedAt = &now
		}

		if existing == nil {
			if err := tx.Insert(ctx, row); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
			}
		} else {
			if err := tx.Update(ctx, row); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
			}
		}
		result = row

		eventName := models.EventEnrollmentCreated
		outcome := "admitted"
		if status == models.EnrollmentStatusWaitlisted {
			eventName = models.EventEnrollmentWaitlisted
			outcome = "waitlisted"
		}
		postCommit = append(postCommit, func() {
			s.recordEvent(ctx, eventName, &req.ActorID, req.StudentID, section.ID, req.Options.OverrideReason)
			s.metrics.CountEnrollmentOutcome(outcome)
			s.invalidateAvailability(ctx, section.ID)
		})
		if req.Options.Override && req.ActorID != req.StudentID && s.notifier != nil {
			postCommit = append(postCommit, func() {
				s.notifier.NotifyOverrideEnrollment(ctx, req.StudentID, section.ID, req.Options.OverrideReason)
			})
		}
		return nil
	})
	if err != nil {
		s.metrics.CountEnrollmentOutcome("rejected")
		return nil, err
	}

	for _, effect := range postCommit {
		effect()
	}
	return result, nil
}

// determineEnrollmentStatus assigns active or waitlisted under the
// section row lock held by the caller. Override may exceed nominal
// capacity; that escape valve is deliberate.
func (s *EnrollmentService) determineEnrollmentStatus(ctx context.Context, tx repository.EnrollmentTx, section *models.Section, opts EnrollOptions) (models.EnrollmentStatus, error) {
	activeCount, err := tx.CountByStatus(ctx, section.ID, models.EnrollmentStatusActive)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
	}
	waitlistedCount, err := tx.CountByStatus(ctx, section.ID, models.EnrollmentStatusWaitlisted)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waitlisted enrollments")
	}

	if opts.ForceWaitlist && waitlistedCount < section.WaitlistCap {
		return models.EnrollmentStatusWaitlisted, nil
	}
	if activeCount < section.Capacity || opts.Override {
		return models.EnrollmentStatusActive, nil
	}
	if section.WaitlistCap <= 0 {
		return "", appErrors.Clone(appErrors.ErrSectionFull, "")
	}
	if waitlistedCount >= section.WaitlistCap {
		return "", appErrors.Clone(appErrors.ErrWaitlistFull, "")
	}
	return models.EnrollmentStatusWaitlisted, nil
}

// Drop marks an enrollment dropped and schedules a deferred waitlist
// promotion for the section. Dropping decides only that a seat opened;
// who gets it is decided later under the section lock, which keeps
// promotion FIFO even when drops race.
func (s *EnrollmentService) Drop(ctx context.Context, req DropRequest) (*models.SectionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}

	enrollment, err := s.store.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return enrollment, nil
	}

	actor, err := s.loadUser(ctx, req.ActorID, "actor")
	if err != nil {
		return nil, err
	}
	section, err := s.loadSection(ctx, enrollment.SectionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && !req.Options.Override && actor.BranchID != section.BranchID {
		return nil, appErrors.Clone(appErrors.ErrCrossBranch, "")
	}
	term, err := s.loadTerm(ctx, section.TermID)
	if err != nil {
		return nil, err
	}
	if !req.Options.Override && !term.AddDropOpenOn(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrAddDropClosed, "")
	}

	var result *models.SectionEnrollment
	var postCommit []func()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.EnrollmentTx) error {
		if _, err := tx.LockSection(ctx, section.ID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock section")
		}
		row, err := tx.FindForUpdate(ctx, enrollment.StudentID, enrollment.SectionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock enrollment")
		}
		if row == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		if row.Status == models.EnrollmentStatusDropped {
			result = row
			return nil
		}

		now := s.now()
		row.Status = models.EnrollmentStatusDropped
		row.EnrolledAt, row.WaitlistedAt = nil, nil
		row.DroppedAt = &now
		if err := tx.Update(ctx, row); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		result = row

		postCommit = append(postCommit, func() {
			s.recordEvent(ctx, models.EventEnrollmentDropped, &req.ActorID, row.StudentID, section.ID, req.Options.Reason)
			s.metrics.CountEnrollmentOutcome("dropped")
			s.invalidateAvailability(ctx, section.ID)
			s.schedulePromotion(section.ID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, effect := range postCommit {
		effect()
	}
	return result, nil
}

// PromoteNextFromWaitlist promotes the earliest-waitlisted student when
// a seat is free. Returns (nil, nil) when there is no room or nobody is
// waiting, and also when the section has meanwhile been deleted; the
// promotion trigger may fire any number of times for the same section.
func (s *EnrollmentService) PromoteNextFromWaitlist(ctx context.Context, sectionID string, actorID *string) (*models.SectionEnrollment, error) {
	var promoted *models.SectionEnrollment
	var postCommit []func()

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.EnrollmentTx) error {
		section, err := tx.LockSection(ctx, sectionID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock section")
		}

		activeCount, err := tx.CountByStatus(ctx, sectionID, models.EnrollmentStatusActive)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
		}
		if activeCount >= section.Capacity {
			return nil
		}

		next, err := tx.NextWaitlisted(ctx, sectionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select next waitlisted")
		}
		if next == nil {
			return nil
		}

		now := s.now()
		next.Status = models.EnrollmentStatusActive
		next.EnrolledAt = &now
		next.WaitlistedAt, next.DroppedAt = nil, nil
		if err := tx.Update(ctx, next); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
		}
		promoted = next

		postCommit = append(postCommit, func() {
			s.recordEvent(ctx, models.EventEnrollmentPromoted, actorID, next.StudentID, sectionID, "")
			s.metrics.CountPromotion()
			s.invalidateAvailability(ctx, sectionID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, effect := range postCommit {
		effect()
	}
	return promoted, nil
}

// BatchEnroll enrolls every active member of a program cohort into a
// section. One student's failure never aborts the batch; it lands in
// the failures list instead.
func (s *EnrollmentService) BatchEnroll(ctx context.Context, req BatchEnrollRequest) (*BatchEnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if section.TermID != req.TermID {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "section does not belong to the given term")
	}
	program, err := s.programs.FindProgramByID(ctx, req.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if program.BranchID != section.BranchID {
		return nil, appErrors.Clone(appErrors.ErrCrossBranch, "program and section belong to different branches")
	}

	members, err := s.programs.ListActive(ctx, req.ProgramID, req.Cohort)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program enrollments")
	}

	result := &BatchEnrollResult{}
	for _, member := range members {
		enrollment, err := s.Enroll(ctx, EnrollRequest{
			ActorID:   req.ActorID,
			StudentID: member.StudentID,
			SectionID: req.SectionID,
			Role:      models.EnrollmentRoleStudent,
			Options:   req.Options,
		})
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Failures = append(result.Failures, BatchEnrollFailure{
				StudentID: member.StudentID,
				Code:      appErr.Code,
				Message:   appErr.Message,
			})
			continue
		}
		if enrollment.Status == models.EnrollmentStatusWaitlisted {
			result.Waitlisted++
		} else {
			result.Enrolled++
		}
	}
	return result, nil
}

// GetEnrollment returns a single enrollment by id.
func (s *EnrollmentService) GetEnrollment(ctx context.Context, id string) (*models.SectionEnrollment, error) {
	enrollment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// ListEnrollments pages through enrollments matching the filter.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	rows, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return rows, total, nil
}

func (s *EnrollmentService) loadUser(ctx context.Context, id, label string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, label+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+label)
	}
	return user, nil
}

func (s *EnrollmentService) loadSection(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

func (s *EnrollmentService) loadTerm(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func (s *EnrollmentService) recordEvent(ctx context.Context, name string, actorID *string, studentID, sectionID, detail string) {
	if s.events == nil {
		return
	}
	event := models.DomainEvent{
		Name:      name,
		ActorID:   actorID,
		SubjectID: studentID,
		SectionID: sectionID,
		Detail:    detail,
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Sugar().Warnw("failed to record domain event", "event", name, "section_id", sectionID, "error", err)
	}
}

func (s *EnrollmentService) invalidateAvailability(ctx context.Context, sectionID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, sectionID)
	}
}

func (s *EnrollmentService) schedulePromotion(sectionID string) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleWaitlistPromotion(sectionID); err != nil {
		s.logger.Sugar().Errorw("failed to schedule waitlist promotion", "section_id", sectionID, "error", err)
	}
}
