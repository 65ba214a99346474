// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/constants"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/pkg/uuid"
)

// # Session Repository

// RedisSessionRepository implements [SessionRepository] using Redis.
//
// # Layout
//
//   - auth:session:<sha256(token)> holds the JSON session with a TTL equal to
//     the time left until ExpiresAt.
//   - auth:user_sessions:<userID> is a set of the token hashes of that user.
//     Members whose session key already expired are pruned on read.
type RedisSessionRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewSessionRepository creates a new Redis-backed SessionRepository.
// A nil now uses time.Now.
func NewSessionRepository(client redis.Cmdable, now func() time.Time) *RedisSessionRepository {
	if now == nil {
		now = time.Now
	}
	return &RedisSessionRepository{client: client, now: now}
}

func sessionKey(tokenHash string) string {
	return constants.RedisPrefixSession + tokenHash
}

func userSessionsKey(userID string) string {
	return constants.RedisPrefixUserSessions + userID
}

/*
Create stores the session and indexes it under its owner.

Parameters:
  - context: context.Context
  - token: string (raw refresh token; only its hash is kept)
  - session: *Session (ID and TokenHash are filled in)

Returns:
  - error: when the session is already expired or Redis fails
*/
func (repository *RedisSessionRepository) Create(context context.Context, token string, session *Session) error {
	ttl := session.ExpiresAt.Sub(repository.now())
	if ttl <= 0 {
		return fmt.Errorf("redis_session_create_failed: session already expired")
	}

	if session.ID == "" {
		session.ID = uuid.New()
	}
	session.TokenHash = sec.HashToken(token)

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_session_marshal_failed: %w", err)
	}

	// Every session shares the refresh lifetime, so the newest one always
	// carries the longest TTL and can set the index expiry.
	indexKey := userSessionsKey(session.UserID)
	_, err = repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.Set(context, sessionKey(session.TokenHash), payload, ttl)
		pipe.SAdd(context, indexKey, session.TokenHash)
		pipe.Expire(context, indexKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_session_create_failed: %w", err)
	}

	return nil
}

/*
FindByToken returns the session stored for token.

Returns:
  - *Session: The live session
  - error: apperr.NotFound if absent or expired
*/
func (repository *RedisSessionRepository) FindByToken(context context.Context, token string) (*Session, error) {
	payload, err := repository.client.Get(context, sessionKey(sec.HashToken(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("redis_session_get_failed: %w", err)
	}

	return decodeSession(payload)
}

// FindByUserID lists the live sessions of userID, newest first.
func (repository *RedisSessionRepository) FindByUserID(context context.Context, userID string) ([]*Session, error) {
	indexKey := userSessionsKey(userID)

	hashes, err := repository.client.SMembers(context, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_session_list_failed: %w", err)
	}
	if len(hashes) == 0 {
		return []*Session{}, nil
	}

	keys := make([]string, len(hashes))
	for i, hash := range hashes {
		keys[i] = sessionKey(hash)
	}

	values, err := repository.client.MGet(context, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_session_list_failed: %w", err)
	}

	sessions := make([]*Session, 0, len(values))
	var expired []any
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			expired = append(expired, hashes[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if len(expired) > 0 {
		if err := repository.client.SRem(context, indexKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("redis_session_prune_failed: %w", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

/*
DeleteByToken removes the session for token.

Description: GETDEL reads and removes in one command, so of two concurrent
callers holding the same token exactly one observes true.

Returns:
  - bool: whether this call removed the session
  - error: Redis failures
*/
func (repository *RedisSessionRepository) DeleteByToken(context context.Context, token string) (bool, error) {
	hash := sec.HashToken(token)

	payload, err := repository.client.GetDel(context, sessionKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis_session_delete_failed: %w", err)
	}

	session, err := decodeSession(payload)
	if err != nil {
		return true, err
	}

	if err := repository.client.SRem(context, userSessionsKey(session.UserID), hash).Err(); err != nil {
		return true, fmt.Errorf("redis_session_unindex_failed: %w", err)
	}
	return true, nil
}

// DeleteByUserID removes every session of userID and the index itself.
func (repository *RedisSessionRepository) DeleteByUserID(context context.Context, userID string) error {
	return repository.deleteWhere(context, userID, func(string) bool { return true })
}

// DeleteOthers removes every session of userID except the one for keepToken.
func (repository *RedisSessionRepository) DeleteOthers(context context.Context, userID, keepToken string) error {
	keep := sec.HashToken(keepToken)
	return repository.deleteWhere(context, userID, func(hash string) bool { return hash != keep })
}

func (repository *RedisSessionRepository) deleteWhere(context context.Context, userID string, match func(hash string) bool) error {
	indexKey := userSessionsKey(userID)

	hashes, err := repository.client.SMembers(context, indexKey).Result()
	if err != nil {
		return fmt.Errorf("redis_session_delete_many_failed: %w", err)
	}

	var (
		keys    []string
		members []any
	)
	for _, hash := range hashes {
		if match(hash) {
			keys = append(keys, sessionKey(hash))
			members = append(members, hash)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	_, err = repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.Del(context, keys...)
		pipe.SRem(context, indexKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_session_delete_many_failed: %w", err)
	}
	return nil
}

func decodeSession(payload []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("redis_session_unmarshal_failed: %w", err)
	}
	return &session, nil
}
