package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

const progressColumns = "student, course_id, milestones, completed, start_date, last_update, total_progress"

// ProgressRepository persists progress records, per-course metrics and course history.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Find fetches the record for a (student, course) pair.
func (r *ProgressRepository) Find(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error) {
	var record models.ProgressRecord
	query := "SELECT " + progressColumns + " FROM progress_records WHERE student = $1 AND course_id = $2"
	if err := r.db.GetContext(ctx, &record, query, key.Student, key.CourseID); err != nil {
		return nil, fmt.Errorf("get progress %s: %w", key, err)
	}
	return &record, nil
}

// Initialize inserts an empty record, appends the course to the student's
// history and bumps the course enrollment metric in one transaction.
func (r *ProgressRepository) Initialize(ctx context.Context, record *models.ProgressRecord, historyLimit int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin progress init tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert := "INSERT INTO progress_records (" + progressColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7)"
	if _, err = tx.ExecContext(ctx, insert, record.Student, record.CourseID, record.Milestones, record.Completed, record.StartDate, record.LastUpdate, record.TotalProgress); err != nil {
		if isUniqueViolation(err, "") {
			return appErrors.Cause(appErrors.ErrProgressAlreadyInitialized, err)
		}
		return fmt.Errorf("insert progress %s: %w", record.Key(), err)
	}

	history := models.StudentCourses{Student: record.Student}
	err = tx.GetContext(ctx, &history, "SELECT student, course_ids FROM student_courses WHERE student = $1 FOR UPDATE", record.Student)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get student courses %s: %w", record.Student, err)
	}
	history.AppendCourse(record.CourseID, historyLimit)

	const upsertHistory = `INSERT INTO student_courses (student, course_ids) VALUES ($1, $2)
ON CONFLICT (student) DO UPDATE SET course_ids = EXCLUDED.course_ids`
	if _, err = tx.ExecContext(ctx, upsertHistory, record.Student, history.CourseIDs); err != nil {
		return fmt.Errorf("save student courses %s: %w", record.Student, err)
	}

	const bumpEnrollments = `INSERT INTO course_metrics (course_id, total_enrollments) VALUES ($1, 1)
ON CONFLICT (course_id) DO UPDATE SET total_enrollments = course_metrics.total_enrollments + 1`
	if _, err = tx.ExecContext(ctx, bumpEnrollments, record.CourseID); err != nil {
		return fmt.Errorf("bump course enrollments %d: %w", record.CourseID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit progress init tx: %w", err)
	}
	return nil
}

// SaveMilestone writes the updated record and the course's new average together.
func (r *ProgressRepository) SaveMilestone(ctx context.Context, record *models.ProgressRecord, metrics *models.CourseMetrics) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin milestone tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = updateRecord(ctx, tx, record); err != nil {
		return err
	}

	const upsertAverage = `INSERT INTO course_metrics (course_id, total_enrollments, avg_progress) VALUES ($1, $2, $3)
ON CONFLICT (course_id) DO UPDATE SET avg_progress = EXCLUDED.avg_progress`
	if _, err = tx.ExecContext(ctx, upsertAverage, metrics.CourseID, metrics.TotalEnrollments, metrics.AvgProgress); err != nil {
		return fmt.Errorf("save course average %d: %w", metrics.CourseID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit milestone tx: %w", err)
	}
	return nil
}

// Replace overwrites a record in place; used by reset.
func (r *ProgressRepository) Replace(ctx context.Context, record *models.ProgressRecord) error {
	return updateRecord(ctx, r.db, record)
}

func updateRecord(ctx context.Context, exec sqlx.ExecerContext, record *models.ProgressRecord) error {
	const query = `UPDATE progress_records SET milestones = $1, completed = $2, start_date = $3, last_update = $4, total_progress = $5
WHERE student = $6 AND course_id = $7`
	res, err := exec.ExecContext(ctx, query, record.Milestones, record.Completed, record.StartDate, record.LastUpdate, record.TotalProgress, record.Student, record.CourseID)
	if err != nil {
		return fmt.Errorf("update progress %s: %w", record.Key(), err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update progress %s: %w", record.Key(), sql.ErrNoRows)
	}
	return nil
}

// FindMetrics returns the course metrics, zero-valued when the course has none yet.
func (r *ProgressRepository) FindMetrics(ctx context.Context, courseID int64) (*models.CourseMetrics, error) {
	metrics := models.CourseMetrics{CourseID: courseID}
	const query = "SELECT course_id, total_enrollments, avg_progress, completion_rate FROM course_metrics WHERE course_id = $1"
	if err := r.db.GetContext(ctx, &metrics, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CourseMetrics{CourseID: courseID}, nil
		}
		return nil, fmt.Errorf("get course metrics %d: %w", courseID, err)
	}
	return &metrics, nil
}

// IncrementCompletions adds one to the course completion counter.
func (r *ProgressRepository) IncrementCompletions(ctx context.Context, courseID int64) error {
	const query = `INSERT INTO course_metrics (course_id, completion_rate) VALUES ($1, 1)
ON CONFLICT (course_id) DO UPDATE SET completion_rate = course_metrics.completion_rate + 1`
	if _, err := r.db.ExecContext(ctx, query, courseID); err != nil {
		return fmt.Errorf("increment completions %d: %w", courseID, err)
	}
	return nil
}

// StudentCourses returns the student's recent course history, oldest first.
func (r *ProgressRepository) StudentCourses(ctx context.Context, student models.Principal) (*models.StudentCourses, error) {
	history := models.StudentCourses{Student: student, CourseIDs: pq.Int64Array{}}
	if err := r.db.GetContext(ctx, &history, "SELECT student, course_ids FROM student_courses WHERE student = $1", student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.StudentCourses{Student: student, CourseIDs: pq.Int64Array{}}, nil
		}
		return nil, fmt.Errorf("get student courses %s: %w", student, err)
	}
	return &history, nil
}
