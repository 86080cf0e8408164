package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verify-gateway/internal/device"
	"verify-gateway/internal/verification"
	"verify-gateway/pkg/platform/sentinel"
)

func TestInMemoryStore_SaveAndFind(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	session := verification.Session{
		ID:          uuid.New(),
		AppID:       "app_serenity_dev",
		Action:      "serenity-home",
		Level:       "orb",
		Environment: device.EnvDedicatedClient,
		Mode:        verification.ModeAutoOpen,
		Status:      verification.StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, s.Save(ctx, session))

	got, err := s.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, verification.StatusPending, got.Status)
}

func TestInMemoryStore_SaveUpserts(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	session := verification.Session{ID: uuid.New(), Status: verification.StatusPending}
	require.NoError(t, s.Save(ctx, session))

	session.Status = verification.StatusOpened
	require.NoError(t, s.Save(ctx, session))

	got, err := s.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusOpened, got.Status)
}

func TestInMemoryStore_FindUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
