package models

// Course is the slice of the course registry the ledger relies on.
type Course struct {
	ID         int64     `json:"id"`
	Instructor Principal `json:"instructor"`
}

// LearnerProfile is the slice of the user registry the ledger relies on.
type LearnerProfile struct {
	Principal Principal `json:"principal"`
	Level     int64     `json:"level"`
}
