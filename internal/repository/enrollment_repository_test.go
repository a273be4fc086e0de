package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func sampleEnrollment() *models.Enrollment {
	return &models.Enrollment{
		Student:           "ST1STUDENT",
		CourseID:          1,
		FeePaid:           100,
		EnrollmentPeriod:  30,
		RefundRate:        5,
		ApprovalThreshold: 50,
		Timestamp:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Enroller:          "ST1STUDENT",
		EnrollmentType:    models.EnrollmentTypeBasic,
		DiscountRate:      10,
		GracePeriod:       7,
		Location:          "Online",
		Currency:          models.CurrencySTX,
		Active:            true,
		MinEnrollments:    5,
		MaxEnrollments:    100,
	}
}

func expectEnrollmentInsert(mock sqlmock.Sqlmock, nextID int64) *sqlmock.ExpectedExec {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("LOCK TABLE enrollments")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(id) + 1, 0) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(nextID))
	return mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments"))
}

func TestEnrollmentRepositoryCreateSettlesInsideTx(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollmentInsert(mock, 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := sampleEnrollment()
	settled := false
	err := repo.Create(context.Background(), enrollment, func(context.Context) error {
		settled = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, int64(0), enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateRollsBackOnSettleFailure(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollmentInsert(mock, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	settleErr := appErrors.Cause(appErrors.ErrFeeTransferFailed, errors.New("insufficient balance"))
	err := repo.Create(context.Background(), sampleEnrollment(), func(context.Context) error {
		return settleErr
	})
	assert.ErrorIs(t, err, appErrors.ErrFeeTransferFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollmentInsert(mock, 1).WillReturnError(&pq.Error{Code: "23505", Constraint: studentCourseConstraint})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleEnrollment(), func(context.Context) error {
		t.Fatal("settle must not run after a failed insert")
		return nil
	})
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsForStudentCourse(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE student = $1 AND course_id = $2)")).
		WithArgs("ST1STUDENT", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForStudentCourse(context.Background(), models.StudentCourseKey{Student: "ST1STUDENT", CourseID: 1})
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryUpdateWritesAudit(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	enrollment := sampleEnrollment()
	enrollment.ID = 4
	enrollment.FeePaid = 200
	enrollment.EnrollmentPeriod = 60
	audit := &models.EnrollmentUpdate{EnrollmentID: 4, FeePaid: 200, EnrollmentPeriod: 60, Timestamp: enrollment.Timestamp, Updater: "ST1STUDENT"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET fee_paid = $1, enrollment_period = $2, recorded_at = $3 WHERE id = $4")).
		WithArgs(int64(200), int64(60), enrollment.Timestamp, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_updates")).
		WithArgs(int64(4), int64(200), int64(60), enrollment.Timestamp, "ST1STUDENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), enrollment, audit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCount(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
