package models

import "fmt"

// Principal identifies a student, instructor, enroller or authority.
type Principal string

// String implements fmt.Stringer.
func (p Principal) String() string {
	return string(p)
}

// StudentCourseKey is the composite key for state held per student and course.
type StudentCourseKey struct {
	Student  Principal `db:"student" json:"student"`
	CourseID int64     `db:"course_id" json:"course_id"`
}

// String renders the key for logs and cache keys.
func (k StudentCourseKey) String() string {
	return fmt.Sprintf("%s/%d", k.Student, k.CourseID)
}
