package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

const (
	enrollmentColumns = "id, student, course_id, fee_paid, enrollment_period, refund_rate, approval_threshold, recorded_at, enroller, enrollment_type, discount_rate, grace_period, location, currency, active, min_enrollments, max_enrollments"

	studentCourseConstraint = "enrollments_student_course_key"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Count returns how many enrollments were ever recorded.
func (r *EnrollmentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// FindByID fetches an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, fmt.Errorf("get enrollment %d: %w", id, err)
	}
	return &enrollment, nil
}

// ExistsForStudentCourse looks the pair up in the (student, course_id) index.
func (r *EnrollmentRepository) ExistsForStudentCourse(ctx context.Context, key models.StudentCourseKey) (bool, error) {
	var exists bool
	const query = "SELECT EXISTS (SELECT 1 FROM enrollments WHERE student = $1 AND course_id = $2)"
	if err := r.db.GetContext(ctx, &exists, query, key.Student, key.CourseID); err != nil {
		return false, fmt.Errorf("check enrollment %s: %w", key, err)
	}
	return exists, nil
}

// Create assigns the next sequential id and inserts the enrollment. settle runs
// inside the same transaction after the insert; if it fails nothing is written.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment, settle func(context.Context) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "LOCK TABLE enrollments IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("lock enrollments: %w", err)
	}

	var nextID int64
	if err = tx.GetContext(ctx, &nextID, "SELECT COALESCE(MAX(id) + 1, 0) FROM enrollments"); err != nil {
		return fmt.Errorf("next enrollment id: %w", err)
	}
	enrollment.ID = nextID

	query := "INSERT INTO enrollments (" + enrollmentColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)"
	if _, err = tx.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.Student,
		enrollment.CourseID,
		enrollment.FeePaid,
		enrollment.EnrollmentPeriod,
		enrollment.RefundRate,
		enrollment.ApprovalThreshold,
		enrollment.Timestamp,
		enrollment.Enroller,
		enrollment.EnrollmentType,
		enrollment.DiscountRate,
		enrollment.GracePeriod,
		enrollment.Location,
		enrollment.Currency,
		enrollment.Active,
		enrollment.MinEnrollments,
		enrollment.MaxEnrollments,
	); err != nil {
		if isUniqueViolation(err, studentCourseConstraint) {
			return appErrors.Cause(appErrors.ErrEnrollmentAlreadyExists, err)
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if settle != nil {
		if err = settle(ctx); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// Update rewrites fee and period and replaces the audit record in one transaction.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment, audit *models.EnrollmentUpdate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment update tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = "UPDATE enrollments SET fee_paid = $1, enrollment_period = $2, recorded_at = $3 WHERE id = $4"
	if _, err = tx.ExecContext(ctx, updateQuery, enrollment.FeePaid, enrollment.EnrollmentPeriod, enrollment.Timestamp, enrollment.ID); err != nil {
		return fmt.Errorf("update enrollment %d: %w", enrollment.ID, err)
	}

	const auditQuery = `INSERT INTO enrollment_updates (enrollment_id, fee_paid, enrollment_period, updated_at, updater)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (enrollment_id) DO UPDATE SET
    fee_paid = EXCLUDED.fee_paid,
    enrollment_period = EXCLUDED.enrollment_period,
    updated_at = EXCLUDED.updated_at,
    updater = EXCLUDED.updater`
	if _, err = tx.ExecContext(ctx, auditQuery, audit.EnrollmentID, audit.FeePaid, audit.EnrollmentPeriod, audit.Timestamp, audit.Updater); err != nil {
		return fmt.Errorf("record enrollment update %d: %w", enrollment.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment update tx: %w", err)
	}
	return nil
}

// FindUpdate returns the latest audit record of an enrollment.
func (r *EnrollmentRepository) FindUpdate(ctx context.Context, id int64) (*models.EnrollmentUpdate, error) {
	var update models.EnrollmentUpdate
	const query = "SELECT enrollment_id, fee_paid, enrollment_period, updated_at, updater FROM enrollment_updates WHERE enrollment_id = $1"
	if err := r.db.GetContext(ctx, &update, query, id); err != nil {
		return nil, fmt.Errorf("get enrollment update %d: %w", id, err)
	}
	return &update, nil
}
