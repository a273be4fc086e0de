package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

const (
	studentS   models.Principal = "S"
	authorityA models.Principal = "A"
)

type enrollmentFixture struct {
	svc         *EnrollmentService
	repo        *memoryEnrollmentRepo
	settings    *SettingsService
	tokens      *stubTokens
	authorities *stubAuthorities
}

func newEnrollmentFixture(t *testing.T, defaults models.LedgerSettings, setAuthority bool) *enrollmentFixture {
	t.Helper()
	settings, _ := newSettings(defaults)
	if setAuthority {
		require.NoError(t, settings.SetAuthorityContract(context.Background(), authorityA))
	}
	f := &enrollmentFixture{
		repo:        newMemoryEnrollmentRepo(),
		settings:    settings,
		tokens:      &stubTokens{},
		authorities: authorities(studentS, "T"),
	}
	f.svc = NewEnrollmentService(EnrollmentServiceParams{
		Repo:        f.repo,
		Authorities: f.authorities,
		Tokens:      f.tokens,
		Settings:    settings,
		Now:         clock,
	})
	return f
}

func validEnroll() EnrollRequest {
	return EnrollRequest{
		CourseID:          1,
		FeePaid:           100,
		EnrollmentPeriod:  30,
		RefundRate:        5,
		ApprovalThreshold: 50,
		EnrollmentType:    models.EnrollmentTypeBasic,
		DiscountRate:      10,
		GracePeriod:       7,
		Location:          "Online",
		Currency:          models.CurrencySTX,
		MinEnrollments:    5,
		MaxEnrollments:    100,
	}
}

func TestEnrollRecordsEnrollmentAndCollectsFee(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)

	id, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, []transfer{{Amount: 500, From: studentS, To: authorityA}}, f.tokens.transfers)

	enrollment, err := f.svc.GetEnrollment(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.Enrollment{
		ID:                0,
		Student:           studentS,
		CourseID:          1,
		FeePaid:           100,
		EnrollmentPeriod:  30,
		RefundRate:        5,
		ApprovalThreshold: 50,
		Timestamp:         fixedNow,
		Enroller:          studentS,
		EnrollmentType:    models.EnrollmentTypeBasic,
		DiscountRate:      10,
		GracePeriod:       7,
		Location:          "Online",
		Currency:          models.CurrencySTX,
		Active:            true,
		MinEnrollments:    5,
		MaxEnrollments:    100,
	}, *enrollment)

	exists, err := f.svc.CheckEnrollmentExistence(context.Background(), models.StudentCourseKey{Student: studentS, CourseID: 1})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnrollAssignsSequentialIDs(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)

	for want := int64(0); want < 4; want++ {
		req := validEnroll()
		req.CourseID = want + 1
		id, err := f.svc.Enroll(context.Background(), studentS, req)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	count, err := f.svc.GetEnrollmentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestEnrollRejectsDuplicatePair(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)

	_, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)

	req := validEnroll()
	req.FeePaid = 999
	req.EnrollmentType = models.EnrollmentTypePremium
	_, err = f.svc.Enroll(context.Background(), studentS, req)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentAlreadyExists)
	assert.Len(t, f.tokens.transfers, 1)
}

func TestEnrollCapacityCheckedFirst(t *testing.T) {
	defaults := defaultSettings()
	defaults.MaxEnrollments = 1
	f := newEnrollmentFixture(t, defaults, true)

	_, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), "nobody", EnrollRequest{})
	assert.ErrorIs(t, err, appErrors.ErrMaxEnrollmentsExceeded)
	assert.Equal(t, 1, f.authorities.calls)
}

func TestEnrollValidationOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EnrollRequest)
		want   *appErrors.Error
	}{
		{"course id", func(r *EnrollRequest) { r.CourseID = 0; r.FeePaid = 0 }, appErrors.ErrInvalidCourseID},
		{"fee", func(r *EnrollRequest) { r.FeePaid = 0; r.EnrollmentPeriod = 0 }, appErrors.ErrInvalidFee},
		{"period", func(r *EnrollRequest) { r.EnrollmentPeriod = 0; r.RefundRate = 101 }, appErrors.ErrInvalidEnrollmentPeriod},
		{"refund", func(r *EnrollRequest) { r.RefundRate = 101; r.ApprovalThreshold = 0 }, appErrors.ErrInvalidRefundRate},
		{"approval zero", func(r *EnrollRequest) { r.ApprovalThreshold = 0 }, appErrors.ErrInvalidApprovalThreshold},
		{"approval high", func(r *EnrollRequest) { r.ApprovalThreshold = 101; r.EnrollmentType = "gold" }, appErrors.ErrInvalidApprovalThreshold},
		{"type", func(r *EnrollRequest) { r.EnrollmentType = "gold"; r.DiscountRate = 51 }, appErrors.ErrInvalidEnrollmentType},
		{"discount", func(r *EnrollRequest) { r.DiscountRate = 51; r.GracePeriod = 31 }, appErrors.ErrInvalidDiscountRate},
		{"grace", func(r *EnrollRequest) { r.GracePeriod = 31; r.Location = "" }, appErrors.ErrInvalidGracePeriod},
		{"location empty", func(r *EnrollRequest) { r.Location = ""; r.Currency = "EUR" }, appErrors.ErrInvalidLocation},
		{"location long", func(r *EnrollRequest) { r.Location = strings.Repeat("a", 101) }, appErrors.ErrInvalidLocation},
		{"currency", func(r *EnrollRequest) { r.Currency = "EUR"; r.MinEnrollments = 0 }, appErrors.ErrInvalidCurrency},
		{"min", func(r *EnrollRequest) { r.MinEnrollments = 0; r.MaxEnrollments = 0 }, appErrors.ErrInvalidMinEnrollments},
		{"max", func(r *EnrollRequest) { r.MaxEnrollments = 0 }, appErrors.ErrInvalidMaxEnrollments},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrollmentFixture(t, defaultSettings(), true)
			req := validEnroll()
			tc.mutate(&req)

			_, err := f.svc.Enroll(context.Background(), studentS, req)
			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.want.Code, appErr.Code)
			assert.Zero(t, f.authorities.calls)
			assert.Empty(t, f.tokens.transfers)
		})
	}
}

func TestEnrollBoundaryValuesAccepted(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)
	req := validEnroll()
	req.RefundRate = 100
	req.ApprovalThreshold = 100
	req.DiscountRate = 50
	req.GracePeriod = 30
	req.Location = strings.Repeat("é", 100)
	req.EnrollmentType = models.EnrollmentTypeEnterprise
	req.Currency = models.CurrencyBTC

	_, err := f.svc.Enroll(context.Background(), studentS, req)
	require.NoError(t, err)
}

func TestEnrollRequiresVerifiedAuthority(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)

	_, err := f.svc.Enroll(context.Background(), "stranger", validEnroll())
	assert.ErrorIs(t, err, appErrors.ErrNotAuthorized)

	f.authorities.err = errors.New("registry down")
	_, err = f.svc.Enroll(context.Background(), studentS, validEnroll())
	assert.ErrorIs(t, err, appErrors.ErrAuthorityCheckFailed)
	assert.Empty(t, f.tokens.transfers)
}

func TestEnrollRequiresAuthorityContract(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), false)

	_, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	assert.ErrorIs(t, err, appErrors.ErrAuthorityNotSet)
	assert.Empty(t, f.tokens.transfers)
	assert.Empty(t, f.repo.enrollments)
}

func TestEnrollFeeTransferFailureWritesNothing(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)
	f.tokens.transferErr = errors.New("insufficient balance")

	_, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	assert.ErrorIs(t, err, appErrors.ErrFeeTransferFailed)

	count, err := f.svc.GetEnrollmentCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	f.tokens.transferErr = nil
	id, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestPlatformFeeChangeAppliesToLaterEnrollments(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), false)

	err := f.settings.SetPlatformFee(context.Background(), 1000)
	assert.ErrorIs(t, err, appErrors.ErrAuthorityNotSet)

	require.NoError(t, f.settings.SetAuthorityContract(context.Background(), authorityA))
	require.NoError(t, f.settings.SetPlatformFee(context.Background(), 1000))

	_, err = f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)
	assert.Equal(t, []transfer{{Amount: 1000, From: studentS, To: authorityA}}, f.tokens.transfers)
}

func TestGetEnrollmentAbsentIsNotFound(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)

	_, err := f.svc.GetEnrollment(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)

	count, err := f.svc.GetEnrollmentCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateEnrollment(t *testing.T) {
	f := newEnrollmentFixture(t, defaultSettings(), true)
	_, err := f.svc.Enroll(context.Background(), studentS, validEnroll())
	require.NoError(t, err)

	_, err = f.svc.UpdateEnrollment(context.Background(), studentS, 7, UpdateEnrollmentRequest{FeePaid: 1, EnrollmentPeriod: 1})
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)

	_, err = f.svc.UpdateEnrollment(context.Background(), "T", 0, UpdateEnrollmentRequest{FeePaid: 1, EnrollmentPeriod: 1})
	assert.ErrorIs(t, err, appErrors.ErrNotEnroller)

	_, err = f.svc.UpdateEnrollment(context.Background(), studentS, 0, UpdateEnrollmentRequest{FeePaid: 200, EnrollmentPeriod: 0})
	assert.ErrorIs(t, err, appErrors.ErrInvalidUpdateParam)

	_, err = f.svc.GetEnrollmentUpdate(context.Background(), 0)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)

	updated, err := f.svc.UpdateEnrollment(context.Background(), studentS, 0, UpdateEnrollmentRequest{FeePaid: 200, EnrollmentPeriod: 60})
	require.NoError(t, err)
	assert.Equal(t, int64(200), updated.FeePaid)
	assert.Equal(t, int64(60), updated.EnrollmentPeriod)

	audit, err := f.svc.GetEnrollmentUpdate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentUpdate{EnrollmentID: 0, FeePaid: 200, EnrollmentPeriod: 60, Timestamp: fixedNow, Updater: studentS}, *audit)
}
