package models

import "time"

// LedgerSettings is the process-wide configuration of a deployed ledger.
// AuthorityAddress is nil until set and never changes afterwards.
type LedgerSettings struct {
	AuthorityAddress    *Principal `db:"authority_address" json:"authority_address"`
	PlatformFee         int64      `db:"platform_fee" json:"platform_fee"`
	MaxEnrollments      int64      `db:"max_enrollments" json:"max_enrollments"`
	CompletionThreshold int64      `db:"completion_threshold" json:"completion_threshold"`
	MaxMilestones       int64      `db:"max_milestones" json:"max_milestones"`
	RewardAmount        int64      `db:"reward_amount" json:"reward_amount"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Authority returns the authority address and whether it has been set.
func (s LedgerSettings) Authority() (Principal, bool) {
	if s.AuthorityAddress == nil {
		return "", false
	}
	return *s.AuthorityAddress, true
}
