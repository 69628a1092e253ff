package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRepository_CreateAndUpdate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewServiceRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Service{Code: "wa", Name: "WhatsApp", PricePerUse: 2, Available: true})
	require.NoError(t, err)
	assert.Equal(t, model.ServerOne, created.AssignedServer)

	_, err = repo.Create(ctx, &model.Service{Code: "wa", Name: "Dup", PricePerUse: 3})
	assert.ErrorIs(t, err, ErrDuplicateService)

	t.Run("disabled on create stays disabled", func(t *testing.T) {
		s, err := repo.Create(ctx, &model.Service{Code: "tg", Name: "Telegram", PricePerUse: 1, Available: false})
		require.NoError(t, err)
		loaded, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, loaded.Available)
	})

	t.Run("partial update", func(t *testing.T) {
		updated, err := repo.Update(ctx, created.ID, model.ServiceUpdate{
			PricePerUse:    ptr(int64(5)),
			AssignedServer: ptr(model.ServerTwo),
			Available:      ptr(false),
		})
		require.NoError(t, err)
		assert.Equal(t, "WhatsApp", updated.Name)
		assert.Equal(t, int64(5), updated.PricePerUse)
		assert.Equal(t, model.ServerTwo, updated.AssignedServer)
		assert.False(t, updated.Available)
	})

	t.Run("update unknown service", func(t *testing.T) {
		_, err := repo.Update(ctx, "missing", model.ServiceUpdate{Name: ptr("x")})
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})
}

func TestServiceRepository_UpsertByCode(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewServiceRepository(db)
	ctx := context.Background()

	entries := []model.CatalogEntry{
		{Code: "wa", Name: "WhatsApp", PricePerUse: 2, Server: model.ServerOne, Available: true},
		{Code: "tg", Name: "Telegram", PricePerUse: 3, Server: model.ServerOne, Available: true},
	}
	_, err := repo.UpsertByCode(ctx, entries)
	require.NoError(t, err)

	first, err := repo.GetByCode(ctx, "wa")
	require.NoError(t, err)

	entries[0].PricePerUse = 4
	entries[1].Available = false
	_, err = repo.UpsertByCode(ctx, entries)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Read(ctx).Model(&ServiceEntity{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	again, err := repo.GetByCode(ctx, "wa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(4), again.PricePerUse)

	available, err := repo.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "wa", available[0].Code)
}
