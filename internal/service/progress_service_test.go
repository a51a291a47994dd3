package service

import (
	"context"
	"testing"
	"time"

	"smartprep_backend/internal/config"
	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressViewIncludesLastAttempt(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	backend := newFakeBackend()
	backend.unlocked["u1"] = model.UnlockProgress{model.RoleSDE: 3}
	attempt := model.NewQuizAttempt(model.RoleSDE, 2, 70, time.Now())
	backend.attempts["u1"] = &attempt
	svc := NewProgressService(NewProgressStoreAdapter(backend, creds), creds)

	view, err := svc.Progress(context.Background(), testIdentity("u1"))
	require.NoError(t, err)
	assert.Equal(t, 3, view.UnlockedLevels[model.RoleSDE])
	require.NotNil(t, view.LastQuizAttempt)
	assert.Equal(t, 70, view.LastQuizAttempt.Score)
	assert.False(t, view.PendingSync)
}

func TestSyncUserMergesProfile(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	backend := newFakeBackend()
	backend.unlocked["u1"] = model.UnlockProgress{model.RoleDA: 5}
	svc := NewProgressService(NewProgressStoreAdapter(backend, creds), creds)

	profile, err := svc.SyncUser(context.Background(), testIdentity("u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1@smartprep.dev", profile.Email)
	assert.Equal(t, "Test u1", profile.Name)
	// 同步资料不影响进度
	assert.Equal(t, 5, backend.unlocked["u1"][model.RoleDA])
}

func TestProfileMissingUser(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	svc := NewProgressService(NewProgressStoreAdapter(newFakeBackend(), creds), creds)

	_, err := svc.Profile(context.Background(), testIdentity("ghost"))
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestAddPointsAccumulatesAndKeepsProfile(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	backend := newFakeBackend()
	svc := NewProgressService(NewProgressStoreAdapter(backend, creds), creds)
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, testIdentity("u1"))
	require.NoError(t, err)

	total, err := svc.AddPoints(ctx, testIdentity("u1"), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)
	total, err = svc.AddPoints(ctx, testIdentity("u1"), -10)
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)

	profile, err := svc.Profile(ctx, testIdentity("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), profile.Points)
	assert.Equal(t, "u1@smartprep.dev", profile.Email)
}

func TestAddPointsRejectsOutOfRange(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	backend := newFakeBackend()
	svc := NewProgressService(NewProgressStoreAdapter(backend, creds), creds)

	for _, delta := range []int64{0, MaxPointsDelta + 1, -MaxPointsDelta - 1} {
		_, err := svc.AddPoints(context.Background(), testIdentity("u1"), delta)
		assert.ErrorIs(t, err, util.ErrInvalidPoints)
	}
	_, ok := backend.profiles["u1"]
	assert.False(t, ok)
}

func TestAddPointsBackendFailure(t *testing.T) {
	creds := NewCredentialService(config.StoreConfig{Secret: testStoreSecret, CredentialTTL: time.Hour})
	backend := newFakeBackend()
	backend.setFailSave(true)
	svc := NewProgressService(NewProgressStoreAdapter(backend, creds), creds)

	_, err := svc.AddPoints(context.Background(), testIdentity("u1"), 5)
	assert.ErrorIs(t, err, util.ErrPersistenceFailed)
}
