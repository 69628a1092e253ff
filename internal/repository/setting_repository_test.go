package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSettingRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, model.SettingEnableRefunds)
	assert.ErrorIs(t, err, ErrSettingNotFound)

	err = repo.Upsert(ctx, []model.Setting{
		{Key: model.SettingEnableRefunds, Value: "true", Type: model.SettingTypeBoolean},
		{Key: "announcement", Value: "hello", Type: model.SettingTypeString},
	})
	require.NoError(t, err)

	s, err := repo.Get(ctx, model.SettingEnableRefunds)
	require.NoError(t, err)
	assert.Equal(t, "true", s.Value)

	err = repo.Upsert(ctx, []model.Setting{{Key: model.SettingEnableRefunds, Value: "false", Type: model.SettingTypeBoolean}})
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "announcement", list[0].Key)
	assert.Equal(t, "false", list[1].Value)
}

func TestEventRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEventRepository(db)
	ctx := context.Background()

	userID := "3d1a9c4e-3333-4c4c-8d8d-000000000001"
	event := &model.Event{
		ID:          "9e8d7c6b-4444-4d4d-8e8e-000000000001",
		EventType:   model.EventPaymentProcessed,
		UserID:      &userID,
		Description: "Payment processed",
		Metadata:    map[string]any{"reference": "ref-1", "amount": float64(10)},
	}
	_, err := repo.Create(ctx, event)
	require.NoError(t, err)

	_, err = repo.Create(ctx, event)
	require.NoError(t, err, "redelivered events are ignored")

	events, err := repo.ListByUser(ctx, userID, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ref-1", events[0].Metadata["reference"])
	assert.Equal(t, float64(10), events[0].Metadata["amount"])
}
