package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type memorySettingsRepo struct {
	stored *models.LedgerSettings
}

func (m *memorySettingsRepo) Get(context.Context) (*models.LedgerSettings, error) {
	if m.stored == nil {
		return nil, fmt.Errorf("get ledger settings: %w", sql.ErrNoRows)
	}
	copied := copySettings(*m.stored)
	return &copied, nil
}

func (m *memorySettingsRepo) Save(_ context.Context, settings *models.LedgerSettings) error {
	copied := copySettings(*settings)
	if m.stored != nil && m.stored.AuthorityAddress != nil {
		copied.AuthorityAddress = m.stored.AuthorityAddress
	}
	m.stored = &copied
	return nil
}

func (m *memorySettingsRepo) SetAuthorityOnce(_ context.Context, authority models.Principal) (bool, error) {
	if m.stored == nil || m.stored.AuthorityAddress != nil {
		return false, nil
	}
	m.stored.AuthorityAddress = &authority
	return true, nil
}

func defaultSettings() models.LedgerSettings {
	return models.LedgerSettings{
		PlatformFee:         500,
		MaxEnrollments:      10000,
		CompletionThreshold: 5,
		MaxMilestones:       10,
		RewardAmount:        100,
	}
}

func newSettings(defaults models.LedgerSettings) (*SettingsService, *memorySettingsRepo) {
	repo := &memorySettingsRepo{}
	svc := NewSettingsService(repo, nil, SettingsServiceConfig{Defaults: defaults, BurnAddress: "SP000000000000000000002Q6VF78"})
	if err := svc.Load(context.Background()); err != nil {
		panic(err)
	}
	return svc, repo
}

type memoryEnrollmentRepo struct {
	enrollments []models.Enrollment
	updates     map[int64]models.EnrollmentUpdate
	index       map[models.StudentCourseKey]int64
}

func newMemoryEnrollmentRepo() *memoryEnrollmentRepo {
	return &memoryEnrollmentRepo{updates: map[int64]models.EnrollmentUpdate{}, index: map[models.StudentCourseKey]int64{}}
}

func (m *memoryEnrollmentRepo) Count(context.Context) (int64, error) {
	return int64(len(m.enrollments)), nil
}

func (m *memoryEnrollmentRepo) FindByID(_ context.Context, id int64) (*models.Enrollment, error) {
	if id < 0 || id >= int64(len(m.enrollments)) {
		return nil, fmt.Errorf("get enrollment %d: %w", id, sql.ErrNoRows)
	}
	e := m.enrollments[id]
	return &e, nil
}

func (m *memoryEnrollmentRepo) ExistsForStudentCourse(_ context.Context, key models.StudentCourseKey) (bool, error) {
	_, ok := m.index[key]
	return ok, nil
}

func (m *memoryEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment, settle func(context.Context) error) error {
	if _, ok := m.index[enrollment.Key()]; ok {
		return appErrors.ErrEnrollmentAlreadyExists
	}
	enrollment.ID = int64(len(m.enrollments))
	if err := settle(ctx); err != nil {
		return err
	}
	m.enrollments = append(m.enrollments, *enrollment)
	m.index[enrollment.Key()] = enrollment.ID
	return nil
}

func (m *memoryEnrollmentRepo) Update(_ context.Context, enrollment *models.Enrollment, audit *models.EnrollmentUpdate) error {
	m.enrollments[enrollment.ID] = *enrollment
	m.updates[audit.EnrollmentID] = *audit
	return nil
}

func (m *memoryEnrollmentRepo) FindUpdate(_ context.Context, id int64) (*models.EnrollmentUpdate, error) {
	u, ok := m.updates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

type stubAuthorities struct {
	verified map[models.Principal]bool
	err      error
	calls    int
}

func authorities(principals ...models.Principal) *stubAuthorities {
	s := &stubAuthorities{verified: map[models.Principal]bool{}}
	for _, p := range principals {
		s.verified[p] = true
	}
	return s
}

func (s *stubAuthorities) IsVerifiedAuthority(_ context.Context, p models.Principal) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.verified[p], nil
}

type transfer struct {
	Amount   int64
	From, To models.Principal
}

type mint struct {
	Amount    int64
	Recipient models.Principal
}

type stubTokens struct {
	transfers   []transfer
	mints       []mint
	transferErr error
	mintErr     error
}

func (s *stubTokens) Transfer(_ context.Context, amount int64, from, to models.Principal) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	s.transfers = append(s.transfers, transfer{Amount: amount, From: from, To: to})
	return nil
}

func (s *stubTokens) Mint(_ context.Context, amount int64, recipient models.Principal) error {
	if s.mintErr != nil {
		return s.mintErr
	}
	s.mints = append(s.mints, mint{Amount: amount, Recipient: recipient})
	return nil
}

type memoryProgressRepo struct {
	mu          sync.Mutex
	records     map[models.StudentCourseKey]models.ProgressRecord
	metrics     map[int64]models.CourseMetrics
	history     map[models.Principal]pq.Int64Array
	saveErr     error
	metricsHits int
}

func newMemoryProgressRepo() *memoryProgressRepo {
	return &memoryProgressRepo{
		records: map[models.StudentCourseKey]models.ProgressRecord{},
		metrics: map[int64]models.CourseMetrics{},
		history: map[models.Principal]pq.Int64Array{},
	}
}

func cloneRecord(r models.ProgressRecord) models.ProgressRecord {
	r.Milestones = append(pq.Int64Array{}, r.Milestones...)
	return r
}

func (m *memoryProgressRepo) Find(_ context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("get progress %s: %w", key, sql.ErrNoRows)
	}
	c := cloneRecord(r)
	return &c, nil
}

func (m *memoryProgressRepo) Initialize(_ context.Context, record *models.ProgressRecord, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Key()]; ok {
		return appErrors.ErrProgressAlreadyInitialized
	}
	m.records[record.Key()] = cloneRecord(*record)
	history := models.StudentCourses{Student: record.Student, CourseIDs: m.history[record.Student]}
	history.AppendCourse(record.CourseID, limit)
	m.history[record.Student] = history.CourseIDs
	metrics := m.metrics[record.CourseID]
	metrics.CourseID = record.CourseID
	metrics.TotalEnrollments++
	m.metrics[record.CourseID] = metrics
	return nil
}

func (m *memoryProgressRepo) SaveMilestone(_ context.Context, record *models.ProgressRecord, metrics *models.CourseMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.Key()] = cloneRecord(*record)
	stored := m.metrics[metrics.CourseID]
	stored.CourseID = metrics.CourseID
	stored.AvgProgress = metrics.AvgProgress
	m.metrics[metrics.CourseID] = stored
	return nil
}

func (m *memoryProgressRepo) Replace(_ context.Context, record *models.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Key()] = cloneRecord(*record)
	return nil
}

func (m *memoryProgressRepo) FindMetrics(_ context.Context, courseID int64) (*models.CourseMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metricsHits++
	metrics := m.metrics[courseID]
	metrics.CourseID = courseID
	return &metrics, nil
}

func (m *memoryProgressRepo) IncrementCompletions(_ context.Context, courseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics := m.metrics[courseID]
	metrics.CourseID = courseID
	metrics.CompletionRate++
	m.metrics[courseID] = metrics
	return nil
}

func (m *memoryProgressRepo) StudentCourses(_ context.Context, student models.Principal) (*models.StudentCourses, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append(pq.Int64Array{}, m.history[student]...)
	return &models.StudentCourses{Student: student, CourseIDs: ids}, nil
}

type stubEnrollmentChecker struct {
	enrolled map[models.StudentCourseKey]bool
}

func (s *stubEnrollmentChecker) CheckEnrollmentExistence(_ context.Context, key models.StudentCourseKey) (bool, error) {
	return s.enrolled[key], nil
}

type stubCourses struct {
	courses map[int64]models.Course
	err     error
}

func (s *stubCourses) GetCourse(_ context.Context, id int64) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.courses[id]
	if !ok {
		return nil, appErrors.ErrCourseNotFound
	}
	return &c, nil
}

type stubCredentials struct {
	minted []int64
	err    error
}

func (s *stubCredentials) MintCredential(_ context.Context, courseID int64, _ models.Principal) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.minted = append(s.minted, courseID)
	return int64(len(s.minted)), nil
}

type stubUsers struct {
	levels    map[models.Principal]int64
	updates   []int64
	updateErr error
}

func (s *stubUsers) GetUser(_ context.Context, p models.Principal) (*models.LearnerProfile, error) {
	return &models.LearnerProfile{Principal: p, Level: s.levels[p]}, nil
}

func (s *stubUsers) UpdateLevel(_ context.Context, p models.Principal, level int64) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.levels[p] = level
	s.updates = append(s.updates, level)
	return nil
}
