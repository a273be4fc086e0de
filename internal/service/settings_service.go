package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.LedgerSettings, error)
	Save(ctx context.Context, settings *models.LedgerSettings) error
	SetAuthorityOnce(ctx context.Context, authority models.Principal) (bool, error)
}

// SettingsServiceConfig seeds the settings row on first start.
type SettingsServiceConfig struct {
	Defaults    models.LedgerSettings
	BurnAddress models.Principal
}

// SettingsService owns the process-wide ledger settings.
type SettingsService struct {
	repo   settingsRepository
	logger *zap.Logger
	cfg    SettingsServiceConfig

	mu      sync.RWMutex
	current models.LedgerSettings
}

// NewSettingsService constructs the service holding cfg.Defaults until Load runs.
func NewSettingsService(repo settingsRepository, logger *zap.Logger, cfg SettingsServiceConfig) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := cfg.Defaults
	defaults.AuthorityAddress = nil
	cfg.Defaults = defaults
	return &SettingsService{repo: repo, logger: logger, cfg: cfg, current: defaults}
}

// Load reads the persisted settings, writing the defaults when none exist.
func (s *SettingsService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.repo.Get(ctx)
	if err != nil {
		if !isNoRows(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger settings")
		}
		seed := s.cfg.Defaults
		if err := s.repo.Save(ctx, &seed); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed ledger settings")
		}
		s.current = seed
		s.logger.Info("ledger settings seeded", zap.Int64("platform_fee", seed.PlatformFee), zap.Int64("max_enrollments", seed.MaxEnrollments))
		return nil
	}

	s.current = *stored
	return nil
}

// Snapshot returns a copy of the current settings.
func (s *SettingsService) Snapshot() models.LedgerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.current)
}

func copySettings(in models.LedgerSettings) models.LedgerSettings {
	out := in
	if in.AuthorityAddress != nil {
		authority := *in.AuthorityAddress
		out.AuthorityAddress = &authority
	}
	return out
}

// SetAuthorityContract fixes the fee recipient and governance address. It succeeds once.
func (s *SettingsService) SetAuthorityContract(ctx context.Context, address models.Principal) error {
	address = models.Principal(strings.TrimSpace(address.String()))
	if address == "" || address == s.cfg.BurnAddress {
		return appErrors.ErrInvalidAuthorityAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.AuthorityAddress != nil {
		return appErrors.ErrAuthorityAlreadySet
	}
	written, err := s.repo.SetAuthorityOnce(ctx, address)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store authority address")
	}
	if !written {
		return appErrors.ErrAuthorityAlreadySet
	}

	s.current.AuthorityAddress = &address
	s.logger.Info("authority contract set", zap.String("authority", address.String()))
	return nil
}

// SetPlatformFee changes the fee charged on future enrollments.
func (s *SettingsService) SetPlatformFee(ctx context.Context, amount int64) error {
	if amount < 0 {
		return appErrors.Clone(appErrors.ErrInvalidFee, "platform fee must not be negative")
	}
	return s.update(ctx, func(current *models.LedgerSettings) error {
		if current.AuthorityAddress == nil {
			return appErrors.ErrAuthorityNotSet
		}
		current.PlatformFee = amount
		return nil
	})
}

// SetCompletionThreshold changes how many milestones complete a course.
func (s *SettingsService) SetCompletionThreshold(ctx context.Context, threshold int64) error {
	return s.update(ctx, func(current *models.LedgerSettings) error {
		if threshold <= 0 || threshold > current.MaxMilestones {
			return appErrors.ErrInvalidCompletionThreshold
		}
		current.CompletionThreshold = threshold
		return nil
	})
}

// SetRewardAmount changes the tokens minted per milestone.
func (s *SettingsService) SetRewardAmount(ctx context.Context, amount int64) error {
	return s.update(ctx, func(current *models.LedgerSettings) error {
		if amount <= 0 {
			return appErrors.ErrInvalidRewardAmount
		}
		current.RewardAmount = amount
		return nil
	})
}

// SetMaxMilestones changes the milestone range. The completion threshold is not re-checked.
func (s *SettingsService) SetMaxMilestones(ctx context.Context, max int64) error {
	return s.update(ctx, func(current *models.LedgerSettings) error {
		if max <= 0 {
			return appErrors.ErrInvalidMaxMilestones
		}
		current.MaxMilestones = max
		return nil
	})
}

func (s *SettingsService) update(ctx context.Context, mutate func(*models.LedgerSettings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copySettings(s.current)
	if err := mutate(&next); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, &next); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save ledger settings")
	}
	s.current = next
	return nil
}
