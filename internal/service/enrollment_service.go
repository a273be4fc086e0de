package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type enrollmentRepository interface {
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	ExistsForStudentCourse(ctx context.Context, key models.StudentCourseKey) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment, settle func(context.Context) error) error
	Update(ctx context.Context, enrollment *models.Enrollment, audit *models.EnrollmentUpdate) error
	FindUpdate(ctx context.Context, id int64) (*models.EnrollmentUpdate, error)
}

type authorityVerifier interface {
	IsVerifiedAuthority(ctx context.Context, principal models.Principal) (bool, error)
}

type feeTransferer interface {
	Transfer(ctx context.Context, amount int64, from, to models.Principal) error
}

type settingsReader interface {
	Snapshot() models.LedgerSettings
}

// EnrollRequest carries the enrollment parameters. Fields are checked in
// declaration order and the first failure decides the error code.
type EnrollRequest struct {
	CourseID          int64                 `json:"course_id" validate:"gt=0"`
	FeePaid           int64                 `json:"fee_paid" validate:"gt=0"`
	EnrollmentPeriod  int64                 `json:"enrollment_period" validate:"gt=0"`
	RefundRate        int64                 `json:"refund_rate" validate:"min=0,max=100"`
	ApprovalThreshold int64                 `json:"approval_threshold" validate:"gt=0,lte=100"`
	EnrollmentType    models.EnrollmentType `json:"enrollment_type" validate:"oneof=basic premium enterprise"`
	DiscountRate      int64                 `json:"discount_rate" validate:"min=0,max=50"`
	GracePeriod       int64                 `json:"grace_period" validate:"min=0,max=30"`
	Location          string                `json:"location" validate:"required,max=100"`
	Currency          models.Currency       `json:"currency" validate:"oneof=STX USD BTC"`
	MinEnrollments    int64                 `json:"min_enrollments" validate:"gt=0"`
	MaxEnrollments    int64                 `json:"max_enrollments" validate:"gt=0"`
}

var enrollFieldErrors = map[string]*appErrors.Error{
	"CourseID":          appErrors.ErrInvalidCourseID,
	"FeePaid":           appErrors.ErrInvalidFee,
	"EnrollmentPeriod":  appErrors.ErrInvalidEnrollmentPeriod,
	"RefundRate":        appErrors.ErrInvalidRefundRate,
	"ApprovalThreshold": appErrors.ErrInvalidApprovalThreshold,
	"EnrollmentType":    appErrors.ErrInvalidEnrollmentType,
	"DiscountRate":      appErrors.ErrInvalidDiscountRate,
	"GracePeriod":       appErrors.ErrInvalidGracePeriod,
	"Location":          appErrors.ErrInvalidLocation,
	"Currency":          appErrors.ErrInvalidCurrency,
	"MinEnrollments":    appErrors.ErrInvalidMinEnrollments,
	"MaxEnrollments":    appErrors.ErrInvalidMaxEnrollments,
}

// UpdateEnrollmentRequest carries the mutable enrollment fields.
type UpdateEnrollmentRequest struct {
	FeePaid          int64 `json:"fee_paid" validate:"gt=0"`
	EnrollmentPeriod int64 `json:"enrollment_period" validate:"gt=0"`
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Repo        enrollmentRepository
	Authorities authorityVerifier
	Tokens      feeTransferer
	Settings    settingsReader
	Events      *EventService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
}

// EnrollmentService is the enrollment ledger. Every operation runs under one
// lock so each call sees and leaves a consistent ledger.
type EnrollmentService struct {
	repo        enrollmentRepository
	authorities authorityVerifier
	tokens      feeTransferer
	settings    settingsReader
	events      *EventService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time

	mu sync.Mutex
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &EnrollmentService{
		repo:        params.Repo,
		authorities: params.Authorities,
		tokens:      params.Tokens,
		settings:    params.Settings,
		events:      params.Events,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		now:         now,
	}
}

// Enroll records a new enrollment for caller and collects the platform fee.
func (s *EnrollmentService) Enroll(ctx context.Context, caller models.Principal, req EnrollRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings.Snapshot()

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count >= settings.MaxEnrollments {
		return 0, appErrors.ErrMaxEnrollmentsExceeded
	}

	if err := s.validateEnroll(req); err != nil {
		return 0, err
	}

	verified, err := s.authorities.IsVerifiedAuthority(ctx, caller)
	if err != nil {
		s.metrics.RecordDependencyFailure(DependencyAuthority)
		return 0, appErrors.Cause(appErrors.ErrAuthorityCheckFailed, err)
	}
	if !verified {
		return 0, appErrors.ErrNotAuthorized
	}

	key := models.StudentCourseKey{Student: caller, CourseID: req.CourseID}
	exists, err := s.repo.ExistsForStudentCourse(ctx, key)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return 0, appErrors.ErrEnrollmentAlreadyExists
	}

	authority, ok := settings.Authority()
	if !ok {
		return 0, appErrors.ErrAuthorityNotSet
	}

	enrollment := &models.Enrollment{
		Student:           caller,
		CourseID:          req.CourseID,
		FeePaid:           req.FeePaid,
		EnrollmentPeriod:  req.EnrollmentPeriod,
		RefundRate:        req.RefundRate,
		ApprovalThreshold: req.ApprovalThreshold,
		Timestamp:         s.now(),
		Enroller:          caller,
		EnrollmentType:    req.EnrollmentType,
		DiscountRate:      req.DiscountRate,
		GracePeriod:       req.GracePeriod,
		Location:          req.Location,
		Currency:          req.Currency,
		Active:            true,
		MinEnrollments:    req.MinEnrollments,
		MaxEnrollments:    req.MaxEnrollments,
	}

	settle := func(ctx context.Context) error {
		if err := s.tokens.Transfer(ctx, settings.PlatformFee, caller, authority); err != nil {
			s.metrics.RecordDependencyFailure(DependencyToken)
			return appErrors.Cause(appErrors.ErrFeeTransferFailed, err)
		}
		return nil
	}
	if err := s.repo.Create(ctx, enrollment, settle); err != nil {
		s.logger.Warn("enrollment not recorded", zap.String("key", key.String()), zap.Error(err))
		return 0, domainError(err, "failed to record enrollment")
	}

	s.metrics.RecordEnrollment()
	s.events.Publish(models.EventEnrollmentCreated, enrollment)
	s.logger.Info("enrollment recorded",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.String("student", caller.String()),
		zap.Int64("course_id", req.CourseID),
		zap.Int64("platform_fee", settings.PlatformFee),
	)
	return enrollment.ID, nil
}

func (s *EnrollmentService) validateEnroll(req EnrollRequest) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		if mapped, ok := enrollFieldErrors[fieldErrs[0].StructField()]; ok {
			return appErrors.Cause(mapped, err)
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
}

// UpdateEnrollment lets the original enroller change fee and period.
func (s *EnrollmentService) UpdateEnrollment(ctx context.Context, caller models.Principal, id int64, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrEnrollmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Enroller != caller {
		return nil, appErrors.ErrNotEnroller
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Cause(appErrors.ErrInvalidUpdateParam, err)
	}

	now := s.now()
	enrollment.FeePaid = req.FeePaid
	enrollment.EnrollmentPeriod = req.EnrollmentPeriod
	enrollment.Timestamp = now
	audit := &models.EnrollmentUpdate{
		EnrollmentID:     id,
		FeePaid:          req.FeePaid,
		EnrollmentPeriod: req.EnrollmentPeriod,
		Timestamp:        now,
		Updater:          caller,
	}
	if err := s.repo.Update(ctx, enrollment, audit); err != nil {
		return nil, domainError(err, "failed to update enrollment")
	}

	s.events.Publish(models.EventEnrollmentUpdated, audit)
	return enrollment, nil
}

// GetEnrollment returns an enrollment by id.
func (s *EnrollmentService) GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.ErrEnrollmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// GetEnrollmentUpdate returns the latest audit record of an enrollment.
func (s *EnrollmentService) GetEnrollmentUpdate(ctx context.Context, id int64) (*models.EnrollmentUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	update, err := s.repo.FindUpdate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment has no recorded update")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment update")
	}
	return update, nil
}

// GetEnrollmentCount returns how many enrollments exist.
func (s *EnrollmentService) GetEnrollmentCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return count, nil
}

// CheckEnrollmentExistence reports whether the student is enrolled in the course.
func (s *EnrollmentService) CheckEnrollmentExistence(ctx context.Context, key models.StudentCourseKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.repo.ExistsForStudentCourse(ctx, key)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return exists, nil
}
