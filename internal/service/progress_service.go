package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type progressRepository interface {
	Find(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error)
	Initialize(ctx context.Context, record *models.ProgressRecord, historyLimit int) error
	SaveMilestone(ctx context.Context, record *models.ProgressRecord, metrics *models.CourseMetrics) error
	Replace(ctx context.Context, record *models.ProgressRecord) error
	FindMetrics(ctx context.Context, courseID int64) (*models.CourseMetrics, error)
	IncrementCompletions(ctx context.Context, courseID int64) error
	StudentCourses(ctx context.Context, student models.Principal) (*models.StudentCourses, error)
}

type enrollmentChecker interface {
	CheckEnrollmentExistence(ctx context.Context, key models.StudentCourseKey) (bool, error)
}

type courseLookup interface {
	GetCourse(ctx context.Context, courseID int64) (*models.Course, error)
}

type rewardMinter interface {
	Mint(ctx context.Context, amount int64, recipient models.Principal) error
}

type credentialMinter interface {
	MintCredential(ctx context.Context, courseID int64, student models.Principal) (int64, error)
}

type learnerRegistry interface {
	GetUser(ctx context.Context, principal models.Principal) (*models.LearnerProfile, error)
	UpdateLevel(ctx context.Context, principal models.Principal, level int64) error
}

type progressSettings interface {
	Snapshot() models.LedgerSettings
	SetCompletionThreshold(ctx context.Context, threshold int64) error
	SetRewardAmount(ctx context.Context, amount int64) error
	SetMaxMilestones(ctx context.Context, max int64) error
}

const defaultCourseHistoryLimit = 20

// MilestoneOutcome reports the result of a milestone update. Result is 1 when
// the update reached the completion threshold and every completion side
// effect succeeded, 0 otherwise.
type MilestoneOutcome struct {
	Result       int                    `json:"result"`
	Progress     *models.ProgressRecord `json:"progress"`
	CredentialID *int64                 `json:"credential_id,omitempty"`
}

// ProgressServiceParams groups constructor dependencies.
type ProgressServiceParams struct {
	Repo               progressRepository
	Enrollments        enrollmentChecker
	Authorities        authorityVerifier
	Courses            courseLookup
	Rewards            rewardMinter
	Credentials        credentialMinter
	Learners           learnerRegistry
	Settings           progressSettings
	Cache              *CacheService
	Events             *EventService
	Metrics            *MetricsService
	Logger             *zap.Logger
	Now                func() time.Time
	CourseHistoryLimit int
}

// ProgressService is the progress state machine. A record moves from
// in-progress to completed and only an authority reset brings it back.
type ProgressService struct {
	repo         progressRepository
	enrollments  enrollmentChecker
	authorities  authorityVerifier
	courses      courseLookup
	rewards      rewardMinter
	credentials  credentialMinter
	learners     learnerRegistry
	settings     progressSettings
	cache        *CacheService
	events       *EventService
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
	historyLimit int

	mu sync.Mutex
}

// NewProgressService constructs ProgressService.
func NewProgressService(params ProgressServiceParams) *ProgressService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	limit := params.CourseHistoryLimit
	if limit <= 0 {
		limit = defaultCourseHistoryLimit
	}
	return &ProgressService{
		repo:         params.Repo,
		enrollments:  params.Enrollments,
		authorities:  params.Authorities,
		courses:      params.Courses,
		rewards:      params.Rewards,
		credentials:  params.Credentials,
		learners:     params.Learners,
		settings:     params.Settings,
		cache:        params.Cache,
		events:       params.Events,
		metrics:      params.Metrics,
		logger:       logger,
		now:          now,
		historyLimit: limit,
	}
}

// InitializeProgress opens an empty record for an enrolled student.
func (s *ProgressService) InitializeProgress(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Find(ctx, key); err == nil {
		return nil, appErrors.ErrProgressAlreadyInitialized
	} else if !isNoRows(err) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	if err := s.requireEnrollment(ctx, key); err != nil {
		return nil, err
	}

	record := models.NewProgressRecord(key, s.now())
	if err := s.repo.Initialize(ctx, record, s.historyLimit); err != nil {
		return nil, domainError(err, "failed to initialize progress")
	}

	s.cache.Invalidate(ctx, courseMetricsCacheKey(key.CourseID))
	s.events.Publish(models.EventProgressInitialized, record)
	s.logger.Info("progress initialized", zap.String("key", key.String()))
	return record, nil
}

// UpdateMilestone records a milestone on behalf of the course instructor.
// Local checks and the reward mint precede the commit. Credential and level
// side effects follow it; when one of them fails the error is returned
// together with the committed outcome.
func (s *ProgressService) UpdateMilestone(ctx context.Context, caller models.Principal, key models.StudentCourseKey, milestone int64) (*MilestoneOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.repo.Find(ctx, key)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrProgressNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	if err := s.requireEnrollment(ctx, key); err != nil {
		return nil, err
	}
	if err := s.requireInstructor(ctx, caller, key.CourseID); err != nil {
		return nil, err
	}

	settings := s.settings.Snapshot()
	if milestone < 1 || milestone > settings.MaxMilestones {
		return nil, appErrors.ErrInvalidMilestone
	}
	if record.HasMilestone(milestone) {
		return nil, appErrors.ErrMilestoneAlreadyComplete
	}
	if int64(len(record.Milestones))+1 > settings.MaxMilestones {
		return nil, appErrors.ErrMaxMilestonesExceeded
	}

	if err := s.rewards.Mint(ctx, settings.RewardAmount, key.Student); err != nil {
		s.metrics.RecordDependencyFailure(DependencyToken)
		return nil, appErrors.Cause(appErrors.ErrRewardMintFailed, err)
	}

	metrics, err := s.repo.FindMetrics(ctx, key.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course metrics")
	}

	record.Milestones = record.WithMilestone(milestone)
	count := int64(len(record.Milestones))
	percentage := models.ProgressPercentage(count, settings.MaxMilestones)
	metrics.RecordProgress(percentage)

	// Completion side effects repeat for every milestone at or past the threshold.
	completing := count >= settings.CompletionThreshold
	record.Completed = record.Completed || completing
	record.LastUpdate = s.now()
	record.TotalProgress = percentage
	if record.Completed {
		record.TotalProgress = 100
	}

	if err := s.repo.SaveMilestone(ctx, record, metrics); err != nil {
		s.logger.Error("milestone not committed", zap.String("key", key.String()), zap.Int64("milestone", milestone), zap.Error(err))
		return nil, domainError(err, "failed to record milestone")
	}

	s.cache.Invalidate(ctx, courseMetricsCacheKey(key.CourseID))
	s.metrics.RecordMilestone()
	s.events.Publish(models.EventMilestoneRecorded, record)

	outcome := &MilestoneOutcome{Progress: record}
	if !completing {
		return outcome, nil
	}

	credentialID, err := s.credentials.MintCredential(ctx, key.CourseID, key.Student)
	if err != nil {
		s.metrics.RecordDependencyFailure(DependencyCredential)
		s.logger.Error("credential mint failed after completion", zap.String("key", key.String()), zap.Error(err))
		return outcome, appErrors.Cause(appErrors.ErrCredentialMintFailed, err)
	}
	outcome.CredentialID = &credentialID

	if err := s.levelUp(ctx, key.Student); err != nil {
		s.metrics.RecordDependencyFailure(DependencyUser)
		s.logger.Error("level update failed after completion", zap.String("key", key.String()), zap.Error(err))
		return outcome, appErrors.Cause(appErrors.ErrLevelUpdateFailed, err)
	}

	if err := s.repo.IncrementCompletions(ctx, key.CourseID); err != nil {
		return outcome, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}
	s.cache.Invalidate(ctx, courseMetricsCacheKey(key.CourseID))

	outcome.Result = 1
	s.metrics.RecordCompletion()
	s.events.Publish(models.EventCourseCompleted, outcome)
	s.logger.Info("course completed",
		zap.String("key", key.String()),
		zap.Int64("credential_id", credentialID),
	)
	return outcome, nil
}

func (s *ProgressService) levelUp(ctx context.Context, student models.Principal) error {
	profile, err := s.learners.GetUser(ctx, student)
	if err != nil {
		return err
	}
	return s.learners.UpdateLevel(ctx, student, profile.Level+1)
}

func (s *ProgressService) requireEnrollment(ctx context.Context, key models.StudentCourseKey) error {
	enrolled, err := s.enrollments.CheckEnrollmentExistence(ctx, key)
	if err != nil {
		return domainError(err, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.ErrNotEnrolled
	}
	return nil
}

func (s *ProgressService) requireInstructor(ctx context.Context, caller models.Principal, courseID int64) error {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCourseNotFound) {
			return appErrors.ErrCourseNotFound
		}
		s.metrics.RecordDependencyFailure(DependencyCourse)
		return appErrors.Cause(appErrors.ErrCourseLookupFailed, err)
	}
	if course.Instructor != caller {
		return appErrors.ErrNotInstructor
	}
	return nil
}

func (s *ProgressService) requireAuthority(ctx context.Context, caller models.Principal) error {
	verified, err := s.authorities.IsVerifiedAuthority(ctx, caller)
	if err != nil {
		s.metrics.RecordDependencyFailure(DependencyAuthority)
		return appErrors.Cause(appErrors.ErrAuthorityCheckFailed, err)
	}
	if !verified {
		return appErrors.ErrNotAuthorized
	}
	return nil
}

// ResetProgress returns a record to an empty in-progress state. Course metrics are left as they are.
func (s *ProgressService) ResetProgress(ctx context.Context, caller models.Principal, key models.StudentCourseKey) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(ctx, caller); err != nil {
		return nil, err
	}

	if _, err := s.repo.Find(ctx, key); err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrProgressNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	record := models.NewProgressRecord(key, s.now())
	if err := s.repo.Replace(ctx, record); err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrProgressNotFound
		}
		return nil, domainError(err, "failed to reset progress")
	}

	s.events.Publish(models.EventProgressReset, record)
	s.logger.Info("progress reset", zap.String("key", key.String()), zap.String("by", caller.String()))
	return record, nil
}

// SetCompletionThreshold changes the completion threshold on behalf of an authority.
func (s *ProgressService) SetCompletionThreshold(ctx context.Context, caller models.Principal, threshold int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}
	return s.settings.SetCompletionThreshold(ctx, threshold)
}

// SetRewardAmount changes the per-milestone reward on behalf of an authority.
func (s *ProgressService) SetRewardAmount(ctx context.Context, caller models.Principal, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}
	return s.settings.SetRewardAmount(ctx, amount)
}

// SetMaxMilestones changes the milestone range on behalf of an authority.
func (s *ProgressService) SetMaxMilestones(ctx context.Context, caller models.Principal, max int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}
	return s.settings.SetMaxMilestones(ctx, max)
}

// GetProgress returns the record for a (student, course) pair.
func (s *ProgressService) GetProgress(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.repo.Find(ctx, key)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrProgressNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	return record, nil
}

// GetTotalCompletions returns how many students completed the course.
func (s *ProgressService) GetTotalCompletions(ctx context.Context, courseID int64) (int64, error) {
	metrics, _, err := s.GetCourseMetrics(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return metrics.CompletionRate, nil
}

// GetCourseMetrics returns the course aggregates and whether they came from cache.
func (s *ProgressService) GetCourseMetrics(ctx context.Context, courseID int64) (*models.CourseMetrics, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := courseMetricsCacheKey(courseID)
	var cached models.CourseMetrics
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	metrics, err := s.repo.FindMetrics(ctx, courseID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course metrics")
	}
	s.cache.Set(ctx, key, metrics)
	return metrics, false, nil
}

// GetStudentCourses returns the student's most recently initialized courses.
func (s *ProgressService) GetStudentCourses(ctx context.Context, student models.Principal) (*models.StudentCourses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.repo.StudentCourses(ctx, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student courses")
	}
	return history, nil
}
