package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func TestSettingsLoadSeedsDefaults(t *testing.T) {
	svc, repo := newSettings(defaultSettings())

	require.NotNil(t, repo.stored)
	assert.Equal(t, int64(500), repo.stored.PlatformFee)
	snapshot := svc.Snapshot()
	assert.Equal(t, int64(10000), snapshot.MaxEnrollments)
	_, ok := snapshot.Authority()
	assert.False(t, ok)
}

func TestSettingsLoadKeepsStoredValues(t *testing.T) {
	authority := models.Principal("A")
	stored := defaultSettings()
	stored.PlatformFee = 42
	stored.AuthorityAddress = &authority
	repo := &memorySettingsRepo{stored: &stored}

	svc := NewSettingsService(repo, nil, SettingsServiceConfig{Defaults: defaultSettings()})
	require.NoError(t, svc.Load(context.Background()))

	snapshot := svc.Snapshot()
	assert.Equal(t, int64(42), snapshot.PlatformFee)
	got, ok := snapshot.Authority()
	assert.True(t, ok)
	assert.Equal(t, authority, got)

	err := svc.SetAuthorityContract(context.Background(), "B")
	assert.ErrorIs(t, err, appErrors.ErrAuthorityAlreadySet)
}

func TestSetAuthorityContractOnce(t *testing.T) {
	svc, repo := newSettings(defaultSettings())

	assert.ErrorIs(t, svc.SetAuthorityContract(context.Background(), "  "), appErrors.ErrInvalidAuthorityAddress)
	assert.ErrorIs(t, svc.SetAuthorityContract(context.Background(), "SP000000000000000000002Q6VF78"), appErrors.ErrInvalidAuthorityAddress)

	require.NoError(t, svc.SetAuthorityContract(context.Background(), "A"))
	assert.ErrorIs(t, svc.SetAuthorityContract(context.Background(), "B"), appErrors.ErrAuthorityAlreadySet)

	require.NotNil(t, repo.stored.AuthorityAddress)
	assert.Equal(t, models.Principal("A"), *repo.stored.AuthorityAddress)
}

func TestSnapshotIsACopy(t *testing.T) {
	svc, _ := newSettings(defaultSettings())
	require.NoError(t, svc.SetAuthorityContract(context.Background(), "A"))

	snapshot := svc.Snapshot()
	*snapshot.AuthorityAddress = "mutated"

	got, _ := svc.Snapshot().Authority()
	assert.Equal(t, models.Principal("A"), got)
}

func TestSetPlatformFee(t *testing.T) {
	svc, _ := newSettings(defaultSettings())
	require.NoError(t, svc.SetAuthorityContract(context.Background(), "A"))

	assert.ErrorIs(t, svc.SetPlatformFee(context.Background(), -1), appErrors.ErrInvalidFee)
	require.NoError(t, svc.SetPlatformFee(context.Background(), 0))
	require.NoError(t, svc.SetPlatformFee(context.Background(), 1<<40))
	assert.Equal(t, int64(1<<40), svc.Snapshot().PlatformFee)
}

func TestProgressSettingsBounds(t *testing.T) {
	svc, repo := newSettings(defaultSettings())
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetCompletionThreshold(ctx, 0), appErrors.ErrInvalidCompletionThreshold)
	assert.ErrorIs(t, svc.SetCompletionThreshold(ctx, 11), appErrors.ErrInvalidCompletionThreshold)
	require.NoError(t, svc.SetCompletionThreshold(ctx, 10))

	assert.ErrorIs(t, svc.SetRewardAmount(ctx, 0), appErrors.ErrInvalidRewardAmount)
	require.NoError(t, svc.SetRewardAmount(ctx, 250))

	assert.ErrorIs(t, svc.SetMaxMilestones(ctx, 0), appErrors.ErrInvalidMaxMilestones)
	require.NoError(t, svc.SetMaxMilestones(ctx, 3))

	snapshot := svc.Snapshot()
	assert.Equal(t, int64(10), snapshot.CompletionThreshold)
	assert.Equal(t, int64(250), snapshot.RewardAmount)
	assert.Equal(t, int64(3), snapshot.MaxMilestones)
	assert.Equal(t, int64(3), repo.stored.MaxMilestones)
}
