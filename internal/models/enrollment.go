package models

import "time"

// EnrollmentType is the tier an enrollment was purchased at.
type EnrollmentType string

// Supported enrollment types.
const (
	EnrollmentTypeBasic      EnrollmentType = "basic"
	EnrollmentTypePremium    EnrollmentType = "premium"
	EnrollmentTypeEnterprise EnrollmentType = "enterprise"
)

// Currency denominates the fee of an enrollment.
type Currency string

// Supported currencies.
const (
	CurrencySTX Currency = "STX"
	CurrencyUSD Currency = "USD"
	CurrencyBTC Currency = "BTC"
)

// Enrollment captures a student's registration to a course.
type Enrollment struct {
	ID                int64          `db:"id" json:"id"`
	Student           Principal      `db:"student" json:"student"`
	CourseID          int64          `db:"course_id" json:"course_id"`
	FeePaid           int64          `db:"fee_paid" json:"fee_paid"`
	EnrollmentPeriod  int64          `db:"enrollment_period" json:"enrollment_period"`
	RefundRate        int64          `db:"refund_rate" json:"refund_rate"`
	ApprovalThreshold int64          `db:"approval_threshold" json:"approval_threshold"`
	Timestamp         time.Time      `db:"recorded_at" json:"timestamp"`
	Enroller          Principal      `db:"enroller" json:"enroller"`
	EnrollmentType    EnrollmentType `db:"enrollment_type" json:"enrollment_type"`
	DiscountRate      int64          `db:"discount_rate" json:"discount_rate"`
	GracePeriod       int64          `db:"grace_period" json:"grace_period"`
	Location          string         `db:"location" json:"location"`
	Currency          Currency       `db:"currency" json:"currency"`
	Active            bool           `db:"active" json:"status"`
	MinEnrollments    int64          `db:"min_enrollments" json:"min_enrollments"`
	MaxEnrollments    int64          `db:"max_enrollments" json:"max_enrollments"`
}

// Key returns the (student, course) index key of the enrollment.
func (e Enrollment) Key() StudentCourseKey {
	return StudentCourseKey{Student: e.Student, CourseID: e.CourseID}
}

// EnrollmentUpdate is the audit record of the latest change to an enrollment.
type EnrollmentUpdate struct {
	EnrollmentID     int64     `db:"enrollment_id" json:"enrollment_id"`
	FeePaid          int64     `db:"fee_paid" json:"update_fee_paid"`
	EnrollmentPeriod int64     `db:"enrollment_period" json:"update_enrollment_period"`
	Timestamp        time.Time `db:"updated_at" json:"update_timestamp"`
	Updater          Principal `db:"updater" json:"updater"`
}
