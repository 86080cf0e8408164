//go:build integration

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verify-gateway/internal/device"
	"verify-gateway/internal/verification"
	"verify-gateway/pkg/platform/sentinel"
	"verify-gateway/pkg/testutil/containers"
)

func TestPostgresStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := containers.NewPostgresContainer(t).DSN

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	now := time.Now().UTC().Truncate(time.Millisecond)
	session := verification.Session{
		ID:          uuid.New(),
		AppID:       "app_serenity_dev",
		Action:      "serenity-home",
		Level:       "orb",
		Environment: device.EnvGenericBrowser,
		Mode:        verification.ModeBanner,
		Device:      "Safari on iOS",
		Fingerprint: "abc123",
		Status:      verification.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Save(ctx, session))

	got, err := s.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.AppID, got.AppID)
	assert.Equal(t, device.EnvGenericBrowser, got.Environment)
	assert.Equal(t, verification.ModeBanner, got.Mode)
	assert.Equal(t, "Safari on iOS", got.Device)
}

func TestPostgresStore_UpsertSettlesSession(t *testing.T) {
	ctx := context.Background()
	dsn := containers.NewPostgresContainer(t).DSN

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	now := time.Now().UTC()
	session := verification.Session{
		ID:          uuid.New(),
		AppID:       "app_serenity_dev",
		Action:      "serenity-home",
		Level:       "orb",
		Environment: device.EnvDedicatedClient,
		Mode:        verification.ModeAutoOpen,
		Status:      verification.StatusOpened,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Save(ctx, session))

	session.Status = verification.StatusSucceeded
	session.Result = json.RawMessage(`{"nonce":"abc"}`)
	session.RedirectURL = "https://serenity.example/callback?result=%7B%22nonce%22%3A%22abc%22%7D"
	session.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.Save(ctx, session))

	got, err := s.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusSucceeded, got.Status)
	assert.JSONEq(t, `{"nonce":"abc"}`, string(got.Result))
	assert.NotEmpty(t, got.RedirectURL)
}

func TestPostgresStore_FindUnknown(t *testing.T) {
	ctx := context.Background()
	dsn := containers.NewPostgresContainer(t).DSN

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
