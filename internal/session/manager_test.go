package session_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"registration-service/internal/session"
	"registration-service/internal/session/sessiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	appID := 11

	setup := func() (*session.Manager, *sessiontest.MemoryRepository, *sessiontest.Clock) {
		repo := sessiontest.NewMemoryRepository()
		clock := sessiontest.NewClock(start)
		return session.NewManager(repo, 25*time.Minute, session.WithClock(clock.Now)), repo, clock
	}

	t.Run("Create", func(t *testing.T) {
		m, repo, _ := setup()

		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(s.Token)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
		assert.Equal(t, session.Digest(s.Token), s.ID)
		assert.NotEqual(t, s.Token, s.ID)
		assert.Equal(t, start.Add(25*time.Minute), s.ExpiresAt)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		m, _, _ := setup()
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			s, err := m.Create(ctx, 7, nil)
			require.NoError(t, err)
			assert.False(t, seen[s.Token])
			seen[s.Token] = true
		}
	})

	t.Run("Validate", func(t *testing.T) {
		m, _, _ := setup()
		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		got, err := m.Validate(ctx, s.Token, 7)
		require.NoError(t, err)
		require.NotNil(t, got.ApplicationID)
		assert.Equal(t, appID, *got.ApplicationID)
	})

	t.Run("ValidateOtherStudent", func(t *testing.T) {
		m, _, _ := setup()
		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		_, err = m.Validate(ctx, s.Token, 8)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	})

	t.Run("ValidateUnknownToken", func(t *testing.T) {
		m, _, _ := setup()
		_, err := m.Validate(ctx, "bogus", 7)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))

		_, err = m.Validate(ctx, "", 7)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	})

	t.Run("ValidateExpired", func(t *testing.T) {
		m, _, clock := setup()
		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		clock.Advance(24 * time.Minute)
		_, err = m.Validate(ctx, s.Token, 7)
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		_, err = m.Validate(ctx, s.Token, 7)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	})

	t.Run("ValidAtExpiryInstant", func(t *testing.T) {
		m, repo, clock := setup()
		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		clock.Advance(25 * time.Minute)
		_, err = m.Validate(ctx, s.Token, 7)
		require.NoError(t, err)

		n, err := m.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 1, repo.Len())

		clock.Advance(time.Nanosecond)
		_, err = m.Validate(ctx, s.Token, 7)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	})

	t.Run("ConsumeIsIdempotent", func(t *testing.T) {
		m, repo, _ := setup()
		s, err := m.Create(ctx, 7, &appID)
		require.NoError(t, err)

		require.NoError(t, m.Consume(ctx, s.Token))
		require.NoError(t, m.Consume(ctx, s.Token))
		assert.Equal(t, 0, repo.Len())

		_, err = m.Validate(ctx, s.Token, 7)
		assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		m, repo, clock := setup()
		_, err := m.Create(ctx, 7, nil)
		require.NoError(t, err)
		clock.Advance(20 * time.Minute)
		_, err = m.Create(ctx, 8, nil)
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		n, err := m.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, repo.Len())
	})
}
