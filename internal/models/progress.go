package models

import (
	"sort"
	"time"

	"github.com/lib/pq"
)

// ProgressRecord tracks the milestones a student completed in a course.
type ProgressRecord struct {
	Student       Principal     `db:"student" json:"student"`
	CourseID      int64         `db:"course_id" json:"course_id"`
	Milestones    pq.Int64Array `db:"milestones" json:"milestones"`
	Completed     bool          `db:"completed" json:"completed"`
	StartDate     time.Time     `db:"start_date" json:"start_date"`
	LastUpdate    time.Time     `db:"last_update" json:"last_update"`
	TotalProgress int64         `db:"total_progress" json:"total_progress"`
}

// NewProgressRecord returns an empty in-progress record stamped at now.
func NewProgressRecord(key StudentCourseKey, now time.Time) *ProgressRecord {
	return &ProgressRecord{
		Student:    key.Student,
		CourseID:   key.CourseID,
		Milestones: pq.Int64Array{},
		StartDate:  now,
		LastUpdate: now,
	}
}

// Key returns the (student, course) key of the record.
func (p ProgressRecord) Key() StudentCourseKey {
	return StudentCourseKey{Student: p.Student, CourseID: p.CourseID}
}

// HasMilestone reports whether milestone was already recorded.
func (p ProgressRecord) HasMilestone(milestone int64) bool {
	for _, m := range p.Milestones {
		if m == milestone {
			return true
		}
	}
	return false
}

// WithMilestone returns a sorted copy of the milestone set including milestone.
func (p ProgressRecord) WithMilestone(milestone int64) pq.Int64Array {
	next := make(pq.Int64Array, 0, len(p.Milestones)+1)
	next = append(next, p.Milestones...)
	if !p.HasMilestone(milestone) {
		next = append(next, milestone)
	}
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	return next
}

// ProgressPercentage is floor(completed / max * 100).
func ProgressPercentage(completed, max int64) int64 {
	if max <= 0 {
		return 0
	}
	pct := completed * 100 / max
	if pct > 100 {
		return 100
	}
	return pct
}

// CourseMetrics aggregates progress across every student of a course.
type CourseMetrics struct {
	CourseID         int64 `db:"course_id" json:"course_id"`
	TotalEnrollments int64 `db:"total_enrollments" json:"total_enrollments"`
	AvgProgress      int64 `db:"avg_progress" json:"avg_progress"`
	CompletionRate   int64 `db:"completion_rate" json:"completion_rate"`
}

// RecordProgress folds a new percentage into the running average.
// The divisor is the number of initialized students, not the number of updates.
func (m *CourseMetrics) RecordProgress(percentage int64) {
	if m.TotalEnrollments == 0 {
		m.AvgProgress = percentage
		return
	}
	m.AvgProgress = (m.AvgProgress*(m.TotalEnrollments-1) + percentage) / m.TotalEnrollments
}

// StudentCourses lists the most recent courses a student started tracking.
type StudentCourses struct {
	Student   Principal     `db:"student" json:"student"`
	CourseIDs pq.Int64Array `db:"course_ids" json:"course_ids"`
}

// AppendCourse adds courseID and keeps only the newest limit entries.
func (s *StudentCourses) AppendCourse(courseID int64, limit int) {
	s.CourseIDs = append(s.CourseIDs, courseID)
	if limit > 0 && len(s.CourseIDs) > limit {
		s.CourseIDs = append(pq.Int64Array{}, s.CourseIDs[len(s.CourseIDs)-limit:]...)
	}
}
