package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

const settingsColumns = "authority_address, platform_fee, max_enrollments, completion_threshold, max_milestones, reward_amount, updated_at"

// SettingsRepository persists the single ledger settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row. It returns sql.ErrNoRows (wrapped) before the first Save.
func (r *SettingsRepository) Get(ctx context.Context) (*models.LedgerSettings, error) {
	var settings models.LedgerSettings
	query := "SELECT " + settingsColumns + " FROM ledger_settings WHERE id = 1"
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("get ledger settings: %w", err)
	}
	return &settings, nil
}

// Save upserts every tunable value. The authority address is only written
// while it is still NULL.
func (r *SettingsRepository) Save(ctx context.Context, settings *models.LedgerSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO ledger_settings (id, authority_address, platform_fee, max_enrollments, completion_threshold, max_milestones, reward_amount, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    authority_address = COALESCE(ledger_settings.authority_address, EXCLUDED.authority_address),
    platform_fee = EXCLUDED.platform_fee,
    max_enrollments = EXCLUDED.max_enrollments,
    completion_threshold = EXCLUDED.completion_threshold,
    max_milestones = EXCLUDED.max_milestones,
    reward_amount = EXCLUDED.reward_amount,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		settings.AuthorityAddress,
		settings.PlatformFee,
		settings.MaxEnrollments,
		settings.CompletionThreshold,
		settings.MaxMilestones,
		settings.RewardAmount,
		settings.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save ledger settings: %w", err)
	}
	return nil
}

// SetAuthorityOnce stores the authority address if none is stored yet and
// reports whether this call wrote it.
func (r *SettingsRepository) SetAuthorityOnce(ctx context.Context, authority models.Principal) (bool, error) {
	const query = `UPDATE ledger_settings SET authority_address = $1, updated_at = $2
WHERE id = 1 AND authority_address IS NULL`
	res, err := r.db.ExecContext(ctx, query, authority, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set authority address: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set authority address rows: %w", err)
	}
	return affected == 1, nil
}
