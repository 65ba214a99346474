// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
)

func newTestSessionRepository(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis, *testClock) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return NewSessionRepository(client, clock.Now), server, clock
}

func newSession(userID string, createdAt time.Time, ttl time.Duration) *Session {
	return &Session{
		UserID:    userID,
		Device:    DeviceInfo{Browser: Software{Name: "Chrome", Version: "125"}}.Normalized(),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

func TestRedisSessionRepository_CreateAndFind(t *testing.T) {
	repository, server, clock := newTestSessionRepository(t)
	ctx := context.Background()

	session := newSession("u-1", clock.Now(), time.Hour)
	require.NoError(t, repository.Create(ctx, "refresh-a", session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, sec.HashToken("refresh-a"), session.TokenHash)

	// Only the digest appears in the key space.
	assert.True(t, server.Exists(sessionKey(session.TokenHash)))
	assert.Equal(t, time.Hour, server.TTL(sessionKey(session.TokenHash)))
	for _, key := range server.Keys() {
		assert.NotContains(t, key, "refresh-a")
	}

	found, err := repository.FindByToken(ctx, "refresh-a")
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
	assert.Equal(t, "u-1", found.UserID)
	assert.Equal(t, "Chrome", found.Device.Browser.Name)
	assert.Equal(t, unknown, found.Device.IP)

	_, err = repository.FindByToken(ctx, "refresh-b")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRedisSessionRepository_Expiry(t *testing.T) {
	repository, server, clock := newTestSessionRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, "short", newSession("u-1", clock.Now(), time.Minute)))
	require.NoError(t, repository.Create(ctx, "long", newSession("u-1", clock.Now(), time.Hour)))

	server.FastForward(2 * time.Minute)

	_, err := repository.FindByToken(ctx, "short")
	assert.True(t, apperr.IsNotFound(err))

	// Listing prunes the dangling index member.
	sessions, err := repository.FindByUserID(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	members, err := server.Members(userSessionsKey("u-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{sec.HashToken("long")}, members)
}

func TestRedisSessionRepository_CreateRejectsExpired(t *testing.T) {
	repository, _, clock := newTestSessionRepository(t)

	session := newSession("u-1", clock.Now().Add(-2*time.Hour), time.Hour)
	assert.Error(t, repository.Create(context.Background(), "stale", session))
}

func TestRedisSessionRepository_FindByUserID_NewestFirst(t *testing.T) {
	repository, _, clock := newTestSessionRepository(t)
	ctx := context.Background()

	start := clock.Now()
	for i, token := range []string{"first", "second", "third"} {
		created := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repository.Create(ctx, token, newSession("u-1", created, time.Hour)))
	}
	require.NoError(t, repository.Create(ctx, "other-user", newSession("u-2", start, time.Hour)))

	sessions, err := repository.FindByUserID(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, sec.HashToken("third"), sessions[0].TokenHash)
	assert.Equal(t, sec.HashToken("first"), sessions[2].TokenHash)

	empty, err := repository.FindByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRedisSessionRepository_DeleteByToken(t *testing.T) {
	repository, server, clock := newTestSessionRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, "refresh-a", newSession("u-1", clock.Now(), time.Hour)))

	deleted, err := repository.DeleteByToken(ctx, "refresh-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repository.DeleteByToken(ctx, "refresh-a")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete observes nothing")

	assert.False(t, server.Exists(userSessionsKey("u-1")), "empty index set is removed")
}

func TestRedisSessionRepository_DeleteOthers(t *testing.T) {
	repository, _, clock := newTestSessionRepository(t)
	ctx := context.Background()

	for _, token := range []string{"keep", "drop-1", "drop-2"} {
		require.NoError(t, repository.Create(ctx, token, newSession("u-1", clock.Now(), time.Hour)))
	}

	require.NoError(t, repository.DeleteOthers(ctx, "u-1", "keep"))

	sessions, err := repository.FindByUserID(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sec.HashToken("keep"), sessions[0].TokenHash)

	_, err = repository.FindByToken(ctx, "drop-1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRedisSessionRepository_DeleteByUserID(t *testing.T) {
	repository, _, clock := newTestSessionRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, "a", newSession("u-1", clock.Now(), time.Hour)))
	require.NoError(t, repository.Create(ctx, "b", newSession("u-1", clock.Now(), time.Hour)))
	require.NoError(t, repository.Create(ctx, "c", newSession("u-2", clock.Now(), time.Hour)))

	require.NoError(t, repository.DeleteByUserID(ctx, "u-1"))
	require.NoError(t, repository.DeleteByUserID(ctx, "u-1"), "idempotent")

	sessions, err := repository.FindByUserID(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	others, err := repository.FindByUserID(ctx, "u-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}
