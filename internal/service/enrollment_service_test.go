package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/internal/repository"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

// memStore is an in-memory enrollmentStore whose InTx serializes
// callbacks with a mutex, mirroring the section row lock.
type memStore struct {
	mu          sync.Mutex
	sections    map[string]*models.Section
	enrollments map[string]*models.SectionEnrollment
	nextID      int
}

func newMemStore(sections ...*models.Section) *memStore {
	s := &memStore{
		sections:    make(map[string]*models.Section),
		enrollments: make(map[string]*models.SectionEnrollment),
	}
	for _, section := range sections {
		s.sections[section.ID] = section
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.EnrollmentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s, staged: make(map[string]models.SectionEnrollment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, row := range tx.staged {
		copied := row
		s.enrollments[id] = &copied
	}
	return nil
}

func (s *memStore) FindByID(ctx context.Context, id string) (*models.SectionEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.enrollments[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (s *memStore) countByStatus(sectionID string, status models.EnrollmentStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.enrollments {
		if row.SectionID == sectionID && row.Status == status {
			count++
		}
	}
	return count
}

// memTx stages writes so a failed callback leaves the store untouched.
type memTx struct {
	store  *memStore
	staged map[string]models.SectionEnrollment
}

func (t *memTx) LockSection(ctx context.Context, sectionID string) (*models.Section, error) {
	section, ok := t.store.sections[sectionID]
	if !ok || section.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copied := *section
	return &copied, nil
}

func (t *memTx) view(id string) models.SectionEnrollment {
	if row, ok := t.staged[id]; ok {
		return row
	}
	return *t.store.enrollments[id]
}

func (t *memTx) ids() []string {
	seen := make(map[string]bool)
	var out []string
	for id := range t.store.enrollments {
		seen[id] = true
		out = append(out, id)
	}
	for id := range t.staged {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (t *memTx) FindForUpdate(ctx context.Context, studentID, sectionID string) (*models.SectionEnrollment, error) {
	for _, id := range t.ids() {
		row := t.view(id)
		if row.StudentID == studentID && row.SectionID == sectionID {
			return &row, nil
		}
	}
	return nil, nil
}

func (t *memTx) CountByStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error) {
	count := 0
	for _, id := range t.ids() {
		row := t.view(id)
		if row.SectionID == sectionID && row.Status == status {
			count++
		}
	}
	return count, nil
}

func (t *memTx) NextWaitlisted(ctx context.Context, sectionID string) (*models.SectionEnrollment, error) {
	var next *models.SectionEnrollment
	for _, id := range t.ids() {
		row := t.view(id)
		if row.SectionID != sectionID || row.Status != models.EnrollmentStatusWaitlisted {
			continue
		}
		if next == nil || keyTime(&row).Before(keyTime(next)) {
			copied := row
			next = &copied
		}
	}
	return next, nil
}

func keyTime(row *models.SectionEnrollment) time.Time {
	if row.WaitlistedAt != nil {
		return *row.WaitlistedAt
	}
	return row.CreatedAt
}

func (t *memTx) Insert(ctx context.Context, enrollment *models.SectionEnrollment) error {
	t.store.nextID++
	enrollment.ID = fmt.Sprintf("enr-%d", t.store.nextID)
	enrollment.CreatedAt = time.Now().UTC()
	t.staged[enrollment.ID] = *enrollment
	return nil
}

func (t *memTx) Update(ctx context.Context, enrollment *models.SectionEnrollment) error {
	t.staged[enrollment.ID] = *enrollment
	return nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type mockSectionReader struct {
	store *memStore
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	section, ok := m.store.sections[id]
	if !ok || section.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	return section, nil
}

type mockTermReader struct {
	terms map[string]*models.Term
}

func (m *mockTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		return term, nil
	}
	return nil, sql.ErrNoRows
}

type mockProgramReader struct {
	program *models.Program
	members []models.ProgramEnrollment
}

func (m *mockProgramReader) FindProgramByID(ctx context.Context, id string) (*models.Program, error) {
	if m.program == nil || m.program.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.program, nil
}

func (m *mockProgramReader) ListActive(ctx context.Context, programID, cohort string) ([]models.ProgramEnrollment, error) {
	return m.members, nil
}

type mockPrereqChecker struct {
	missing map[string][]models.MissingPrerequisite
}

func (m *mockPrereqChecker) Missing(ctx context.Context, studentID, courseID string) ([]models.MissingPrerequisite, error) {
	return m.missing[studentID], nil
}

type mockEventRecorder struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (m *mockEventRecorder) Record(ctx context.Context, event models.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRecorder) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, event := range m.events {
		out = append(out, event.Name)
	}
	return out
}

type mockScheduler struct {
	mu       sync.Mutex
	sections []string
}

func (m *mockScheduler) ScheduleWaitlistPromotion(sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = append(m.sections, sectionID)
	return nil
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockNotifier) NotifyOverrideEnrollment(ctx context.Context, studentID, sectionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, studentID)
}

type engineFixture struct {
	svc       *EnrollmentService
	store     *memStore
	events    *mockEventRecorder
	scheduler *mockScheduler
	notifier  *mockNotifier
	users     *mockUserReader
	prereqs   *mockPrereqChecker
	programs  *mockProgramReader
}

const (
	branchA = "branch-a"
	branchB = "branch-b"
)

func newEngineFixture(t *testing.T, section *models.Section) *engineFixture {
	t.Helper()
	store := newMemStore(section)
	users := &mockUserReader{users: map[string]*models.User{
		"registrar": {ID: "registrar", Role: models.RoleRegistrar, BranchID: branchA},
		"admin":     {ID: "admin", Role: models.RoleSuperAdmin, BranchID: branchB},
	}}
	for i := 1; i <= 30; i++ {
		id := fmt.Sprintf("student-%d", i)
		users.users[id] = &models.User{ID: id, Role: models.RoleStudent, BranchID: branchA}
	}
	users.users["outsider"] = &models.User{ID: "outsider", Role: models.RoleStudent, BranchID: branchB}

	events := &mockEventRecorder{}
	scheduler := &mockScheduler{}
	notifier := &mockNotifier{}
	prereqs := &mockPrereqChecker{missing: make(map[string][]models.MissingPrerequisite)}
	programs := &mockProgramReader{}

	svc := NewEnrollmentService(EnrollmentServiceDeps{
		Store:    store,
		Sections: &mockSectionReader{store: store},
		Terms: &mockTermReader{terms: map[string]*models.Term{
			"term-1": {ID: "term-1", BranchID: branchA},
		}},
		Users:    users,
		Programs: programs,
		Prereqs:  prereqs,
		Events:   events,
		Notifier: notifier,
	})
	svc.SetPromotionScheduler(scheduler)

	return &engineFixture{
		svc:       svc,
		store:     store,
		events:    events,
		scheduler: scheduler,
		notifier:  notifier,
		users:     users,
		prereqs:   prereqs,
		programs:  programs,
	}
}

func testSection(capacity, waitlistCap int) *models.Section {
	return &models.Section{
		ID:          "sec-1",
		CourseID:    "course-1",
		TermID:      "term-1",
		BranchID:    branchA,
		Code:        "CS101-A",
		Capacity:    capacity,
		WaitlistCap: waitlistCap,
		Status:      models.SectionStatusActive,
	}
}

func enrollReq(studentID string) EnrollRequest {
	return EnrollRequest{
		ActorID:   "registrar",
		StudentID: studentID,
		SectionID: "sec-1",
		Role:      models.EnrollmentRoleStudent,
	}
}

func TestEnrollAdmitsUntilCapacityThenWaitlists(t *testing.T) {
	f := newEngineFixture(t, testSection(2, 1))
	ctx := context.Background()

	first, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, first.Status)
	require.NotNil(t, first.EnrolledAt)
	assert.Nil(t, first.WaitlistedAt)

	_, err = f.svc.Enroll(ctx, enrollReq("student-2"))
	require.NoError(t, err)

	third, err := f.svc.Enroll(ctx, enrollReq("student-3"))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, third.Status)
	require.NotNil(t, third.WaitlistedAt)
	assert.Nil(t, third.EnrolledAt)

	_, err = f.svc.Enroll(ctx, enrollReq("student-4"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrWaitlistFull))

	assert.Equal(t, []string{
		models.EventEnrollmentCreated,
		models.EventEnrollmentCreated,
		models.EventEnrollmentWaitlisted,
	}, f.events.names())
}

func TestEnrollSectionFullWithoutWaitlist(t *testing.T) {
	f := newEngineFixture(t, testSection(1, 0))
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)

	_, err = f.svc.Enroll(ctx, enrollReq("student-2"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSectionFull))
}

func TestEnrollRejectsDuplicates(t *testing.T) {
	f := newEngineFixture(t, testSection(1, 1))
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, enrollReq("student-1"))
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))

	_, err = f.svc.Enroll(ctx, enrollReq("student-2"))
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, enrollReq("student-2"))
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyWaitlisted))
}

func TestEnrollOutsideAddDropWindow(t *testing.T) {
	f := newEngineFixture(t, testSection(5, 5))
	closed := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	term := &models.Term{ID: "term-1", BranchID: branchA, AddDropStart: &closed, AddDropEnd: &closed}
	f.svc.terms = &mockTermReader{terms: map[string]*models.Term{"term-1": term}}
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAddDropClosed))

	req := enrollReq("student-1")
	req.Options.Override = true
	req.Options.OverrideReason = "late add approved"
	enrollment, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, []string{"student-1"}, f.notifier.calls)
}

func TestEnrollCrossBranch(t *testing.T) {
	f := newEngineFixture(t, testSection(5, 5))
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("outsider"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCrossBranch))

	req := enrollReq("outsider")
	req.ActorID = "admin"
	_, err = f.svc.Enroll(ctx, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCrossBranch))

	req.Options.Override = true
	enrollment, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
}

func TestEnrollPrerequisiteNotMet(t *testing.T) {
	f := newEngineFixture(t, testSection(5, 5))
	f.prereqs.missing["student-1"] = []models.MissingPrerequisite{
		{CourseID: "course-0", Code: "CS100", Title: "Intro"},
	}
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPrerequisiteNotMet))

	var prereqErr *models.PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Len(t, prereqErr.Missing, 1)

	req := enrollReq("student-1")
	req.Options.BypassPrerequisites = true
	_, err = f.svc.Enroll(ctx, req)
	require.NoError(t, err)

	// Auditors never face prerequisite checks.
	req = enrollReq("student-2")
	req.Role = models.EnrollmentRoleAuditor
	f.prereqs.missing["student-2"] = f.prereqs.missing["student-1"]
	_, err = f.svc.Enroll(ctx, req)
	require.NoError(t, err)
}

func TestEnrollOverrideExceedsCapacity(t *testing.T) {
	f := newEngineFixture(t, testSection(1, 0))
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)

	req := enrollReq("student-2")
	req.Options.Override = true
	enrollment, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, 2, f.store.countByStatus("sec-1", models.EnrollmentStatusActive))
}

func TestEnrollForceWaitlist(t *testing.T) {
	f := newEngineFixture(t, testSection(5, 2))
	ctx := context.Background()

	req := enrollReq("student-1")
	req.Options.ForceWaitlist = true
	enrollment, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, enrollment.Status)
}

func TestReEnrollReusesDroppedRow(t *testing.T) {
	f := newEngineFixture(t, testSection(2, 1))
	ctx := context.Background()

	first, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)

	_, err = f.svc.Drop(ctx, DropRequest{ActorID: "registrar", EnrollmentID: first.ID})
	require.NoError(t, err)

	again, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.EnrollmentStatusActive, again.Status)
	assert.Nil(t, again.DroppedAt)
}

func TestDropIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, testSection(2, 1))
	ctx := context.Background()

	enrollment, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)

	dropped, err := f.svc.Drop(ctx, DropRequest{ActorID: "registrar", EnrollmentID: enrollment.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	require.NotNil(t, dropped.DroppedAt)
	assert.Len(t, f.scheduler.sections, 1)

	// Second drop is a no-op and schedules nothing.
	dropped, err = f.svc.Drop(ctx, DropRequest{ActorID: "registrar", EnrollmentID: enrollment.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	assert.Len(t, f.scheduler.sections, 1)
}

func TestPromoteFollowsWaitlistOrder(t *testing.T) {
	f := newEngineFixture(t, testSection(1, 3))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	seat, err := f.svc.Enroll(ctx, enrollReq("student-1"))
	require.NoError(t, err)
	waitlisted1, err := f.svc.Enroll(ctx, enrollReq("student-2"))
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, enrollReq("student-3"))
	require.NoError(t, err)

	// Nobody can be promoted while the section is full.
	promoted, err := f.svc.PromoteNextFromWaitlist(ctx, "sec-1", nil)
	require.NoError(t, err)
	assert.Nil(t, promoted)

	_, err = f.svc.Drop(ctx, DropRequest{ActorID: "registrar", EnrollmentID: seat.ID})
	require.NoError(t, err)

	promoted, err = f.svc.PromoteNextFromWaitlist(ctx, "sec-1", nil)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, waitlisted1.ID, promoted.ID)
	assert.Equal(t, "student-2", promoted.StudentID)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Nil(t, promoted.WaitlistedAt)

	// Section is full again, the next trigger is a no-op.
	promoted, err = f.svc.PromoteNextFromWaitlist(ctx, "sec-1", nil)
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestPromoteToleratesDeletedSection(t *testing.T) {
	f := newEngineFixture(t, testSection(1, 1))
	ctx := context.Background()

	now := time.Now().UTC()
	f.store.sections["sec-1"].DeletedAt = &now

	promoted, err := f.svc.PromoteNextFromWaitlist(ctx, "sec-1", nil)
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestConcurrentEnrollmentRespectsCapacity(t *testing.T) {
	f := newEngineFixture(t, testSection(5, 5))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Enroll(ctx, enrollReq(fmt.Sprintf("student-%d", i+1)))
		}(i)
	}
	wg.Wait()

	rejected := 0
	for _, err := range errs {
		if err != nil {
			rejected++
			assert.True(t, appErrors.Is(err, appErrors.ErrWaitlistFull))
		}
	}
	assert.Equal(t, 10, rejected)
	assert.Equal(t, 5, f.store.countByStatus("sec-1", models.EnrollmentStatusActive))
	assert.Equal(t, 5, f.store.countByStatus("sec-1", models.EnrollmentStatusWaitlisted))
}

func TestBatchEnrollCollectsFailures(t *testing.T) {
	f := newEngineFixture(t, testSection(2, 1))
	f.programs.program = &models.Program{ID: "prog-1", BranchID: branchA}
	f.programs.members = []models.ProgramEnrollment{
		{StudentID: "student-1"},
		{StudentID: "student-2"},
		{StudentID: "student-3"},
		{StudentID: "student-4"},
	}
	ctx := context.Background()

	result, err := f.svc.BatchEnroll(ctx, BatchEnrollRequest{
		ActorID:   "registrar",
		ProgramID: "prog-1",
		TermID:    "term-1",
		SectionID: "sec-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enrolled)
	assert.Equal(t, 1, result.Waitlisted)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "student-4", result.Failures[0].StudentID)
	assert.Equal(t, appErrors.ErrWaitlistFull.Code, result.Failures[0].Code)
}

func TestBatchEnrollRejectsMismatchedTerm(t *testing.T) {
	f := newEngineFixture(t, testSection(2, 1))
	f.programs.program = &models.Program{ID: "prog-1", BranchID: branchA}
	ctx := context.Background()

	_, err := f.svc.BatchEnroll(ctx, BatchEnrollRequest{
		ActorID:   "registrar",
		ProgramID: "prog-1",
		TermID:    "term-other",
		SectionID: "sec-1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidArgument))
}
