package services

import (
	"context"
	"testing"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_BoolIsCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	on, err := env.settings.Bool(ctx, model.SettingEnableRefunds)
	require.NoError(t, err)
	assert.False(t, on)
	assert.True(t, env.mr.Exists("test:settings:"+model.SettingEnableRefunds))

	// written behind the cache, the stale answer stays until invalidated
	require.NoError(t, env.settingsRepo.Upsert(ctx, []model.Setting{{Key: model.SettingEnableRefunds, Value: "true", Type: model.SettingTypeBoolean}}))
	on, err = env.settings.Bool(ctx, model.SettingEnableRefunds)
	require.NoError(t, err)
	assert.False(t, on)

	env.enableRefunds(t, true)
	on, err = env.settings.Bool(ctx, model.SettingEnableRefunds)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSettingsService_WithoutCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewSettingsService(env.settingsRepo, nil, 0)

	require.NoError(t, svc.Update(ctx, []model.Setting{{Key: "greeting", Value: "hi", Type: model.SettingTypeString}}))
	v, found, err := svc.Value(ctx, "greeting")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hi", v)

	_, found, err = svc.Value(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, svc.Update(ctx, nil), ErrInvalidInput)
	assert.Error(t, svc.Update(ctx, []model.Setting{{Key: "n", Value: "x", Type: model.SettingTypeInteger}}))
}
