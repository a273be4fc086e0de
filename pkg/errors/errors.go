package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wrapped
// copies of a predefined error still match it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Authorization failures.
var (
	ErrNotAuthorized = New("NOT_AUTHORIZED", http.StatusForbidden, "caller is not a verified authority")
	ErrNotEnroller   = New("NOT_ENROLLER", http.StatusForbidden, "caller did not create this enrollment")
	ErrNotInstructor = New("NOT_INSTRUCTOR", http.StatusForbidden, "caller is not the course instructor")
)

// Validation failures. Each enrollment field has its own code.
var (
	ErrInvalidCourseID            = New("INVALID_COURSE_ID", http.StatusBadRequest, "course id must be positive")
	ErrInvalidFee                 = New("INVALID_FEE", http.StatusBadRequest, "fee must be positive")
	ErrInvalidEnrollmentPeriod    = New("INVALID_ENROLLMENT_PERIOD", http.StatusBadRequest, "enrollment period must be positive")
	ErrInvalidRefundRate          = New("INVALID_REFUND_RATE", http.StatusBadRequest, "refund rate must be between 0 and 100")
	ErrInvalidApprovalThreshold   = New("INVALID_APPROVAL_THRESHOLD", http.StatusBadRequest, "approval threshold must be between 1 and 100")
	ErrInvalidEnrollmentType      = New("INVALID_ENROLLMENT_TYPE", http.StatusBadRequest, "enrollment type must be basic, premium or enterprise")
	ErrInvalidDiscountRate        = New("INVALID_DISCOUNT_RATE", http.StatusBadRequest, "discount rate must be between 0 and 50")
	ErrInvalidGracePeriod         = New("INVALID_GRACE_PERIOD", http.StatusBadRequest, "grace period must be between 0 and 30")
	ErrInvalidLocation            = New("INVALID_LOCATION", http.StatusBadRequest, "location must be 1 to 100 characters")
	ErrInvalidCurrency            = New("INVALID_CURRENCY", http.StatusBadRequest, "currency must be STX, USD or BTC")
	ErrInvalidMinEnrollments      = New("INVALID_MIN_ENROLLMENTS", http.StatusBadRequest, "minimum enrollments must be positive")
	ErrInvalidMaxEnrollments      = New("INVALID_MAX_ENROLLMENTS", http.StatusBadRequest, "maximum enrollments must be positive")
	ErrInvalidUpdateParam         = New("INVALID_UPDATE_PARAM", http.StatusBadRequest, "updated fee and period must be positive")
	ErrInvalidMilestone           = New("INVALID_MILESTONE", http.StatusBadRequest, "milestone out of range")
	ErrInvalidCompletionThreshold = New("INVALID_COMPLETION_THRESHOLD", http.StatusBadRequest, "completion threshold must be between 1 and max milestones")
	ErrInvalidRewardAmount        = New("INVALID_REWARD_AMOUNT", http.StatusBadRequest, "reward amount must be positive")
	ErrInvalidMaxMilestones       = New("INVALID_MAX_MILESTONES", http.StatusBadRequest, "max milestones must be positive")
	ErrInvalidAuthorityAddress    = New("INVALID_AUTHORITY_ADDRESS", http.StatusBadRequest, "authority address is reserved or empty")
)

// State conflicts.
var (
	ErrEnrollmentAlreadyExists    = New("ENROLLMENT_ALREADY_EXISTS", http.StatusConflict, "student already enrolled in course")
	ErrProgressAlreadyInitialized = New("PROGRESS_ALREADY_INITIALIZED", http.StatusConflict, "progress already initialized")
	ErrMilestoneAlreadyComplete   = New("MILESTONE_ALREADY_COMPLETE", http.StatusConflict, "milestone already recorded")
	ErrMaxEnrollmentsExceeded     = New("MAX_ENROLLMENTS_EXCEEDED", http.StatusConflict, "enrollment capacity reached")
	ErrMaxMilestonesExceeded      = New("MAX_MILESTONES_EXCEEDED", http.StatusConflict, "milestone set is full")
	ErrAuthorityAlreadySet        = New("AUTHORITY_ALREADY_SET", http.StatusConflict, "authority contract already set")
)

// Preconditions and lookups.
var (
	ErrAuthorityNotSet    = New("AUTHORITY_NOT_SET", http.StatusPreconditionFailed, "authority contract not set")
	ErrNotEnrolled        = New("NOT_ENROLLED", http.StatusPreconditionFailed, "student not enrolled in course")
	ErrEnrollmentNotFound = New("ENROLLMENT_NOT_FOUND", http.StatusNotFound, "enrollment not found")
	ErrProgressNotFound   = New("PROGRESS_NOT_FOUND", http.StatusNotFound, "progress not found")
	ErrCourseNotFound     = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
)

// Collaborator failures.
var (
	ErrFeeTransferFailed    = New("FEE_TRANSFER_FAILED", http.StatusBadGateway, "platform fee transfer failed")
	ErrRewardMintFailed     = New("REWARD_MINT_FAILED", http.StatusBadGateway, "reward mint failed")
	ErrCredentialMintFailed = New("CREDENTIAL_MINT_FAILED", http.StatusBadGateway, "credential mint failed")
	ErrLevelUpdateFailed    = New("LEVEL_UPDATE_FAILED", http.StatusBadGateway, "level update failed")
	ErrAuthorityCheckFailed = New("AUTHORITY_CHECK_FAILED", http.StatusBadGateway, "authority registry unavailable")
	ErrCourseLookupFailed   = New("COURSE_LOOKUP_FAILED", http.StatusBadGateway, "course registry unavailable")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Cause returns a copy of the predefined error wrapping the underlying cause.
func Cause(base *Error, err error) *Error {
	if base == nil {
		return nil
	}
	clone := *base
	clone.Err = err
	return &clone
}
