// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/notify"
	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
)

// # Test Doubles

// memoryUsers is an in-memory UserRepository with case-insensitive lookups.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*User)}
}

func (repository *memoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if user, ok := repository.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return repository.findBy(func(user *User) bool { return strings.EqualFold(user.Email, email) })
}

func (repository *memoryUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	return repository.findBy(func(user *User) bool { return strings.EqualFold(user.Username, username) })
}

func (repository *memoryUsers) findBy(match func(*User) bool) (*User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, user := range repository.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryUsers) Create(_ context.Context, user *User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, existing := range repository.users {
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.Username, user.Username) {
			return apperr.Conflict("User already exists")
		}
	}
	clone := *user
	repository.users[user.ID] = &clone
	return nil
}

func (repository *memoryUsers) Update(_ context.Context, id string, patch UserPatch) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	patch.Apply(user)
	return nil
}

// get returns the stored account, failing the test when it is missing.
func (repository *memoryUsers) get(t *testing.T, id string) *User {
	t.Helper()
	user, err := repository.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// countingHasher wraps a cheap bcrypt and counts comparisons.
type countingHasher struct {
	inner    *sec.BcryptHasher
	mu       sync.Mutex
	compares int
}

func newCountingHasher() *countingHasher {
	return &countingHasher{inner: sec.NewBcryptHasher(4)}
}

func (hasher *countingHasher) Hash(plain string) (string, error) { return hasher.inner.Hash(plain) }

func (hasher *countingHasher) Compare(plain, hash string) bool {
	hasher.mu.Lock()
	hasher.compares++
	hasher.mu.Unlock()
	return hasher.inner.Compare(plain, hash)
}

func (hasher *countingHasher) count() int {
	hasher.mu.Lock()
	defer hasher.mu.Unlock()
	return hasher.compares
}

// capturedMail records every message synchronously.
type capturedMail struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (mail *capturedMail) Notify(_ context.Context, message notify.Message) {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	mail.messages = append(mail.messages, message)
}

// last returns the newest message of kind, or nil.
func (mail *capturedMail) last(kind notify.Kind) *notify.Message {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	for i := len(mail.messages) - 1; i >= 0; i-- {
		if mail.messages[i].Kind == kind {
			message := mail.messages[i]
			return &message
		}
	}
	return nil
}

func (mail *capturedMail) count(kind notify.Kind) int {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	n := 0
	for _, message := range mail.messages {
		if message.Kind == kind {
			n++
		}
	}
	return n
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *testClock) Advance(d time.Duration) {
	clock.mu.Lock()
	clock.now = clock.now.Add(d)
	clock.mu.Unlock()
}

// # Harness

// harness wires a Service against in-memory accounts and a miniredis
// session store, sharing one manual clock.
type harness struct {
	service  *Service
	users    *memoryUsers
	sessions *RedisSessionRepository
	tokens   *sec.TokenService
	hasher   *countingHasher
	mail     *capturedMail
	totp     *TOTPEngine
	clock    *testClock
	redis    *miniredis.Miniredis
}

type harnessOption func(*Options)

func withEmailVerification() harnessOption {
	return func(options *Options) { options.RequireEmailVerification = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		Issuer:         "azexpress.test",
		Access:         sec.KeyConfig{Secret: "access-secret", TTL: 15 * time.Minute},
		Refresh:        sec.KeyConfig{Secret: "refresh-secret", TTL: 7 * 24 * time.Hour},
		VerifyEmail:    sec.KeyConfig{Secret: "verify-secret", TTL: 24 * time.Hour},
		ResetPassword:  sec.KeyConfig{Secret: "reset-secret", TTL: 10 * time.Minute},
		LoginChallenge: sec.KeyConfig{Secret: "challenge-secret", TTL: 5 * time.Minute},
		Now:            clock.Now,
	})
	require.NoError(t, err)

	composer, err := notify.NewComposer(notify.ComposerConfig{
		Brand:       "A-Z Express",
		From:        "support@azexpress.test",
		FrontendURL: "https://shop.azexpress.test",
	})
	require.NoError(t, err)

	h := &harness{
		users:    newMemoryUsers(),
		sessions: NewSessionRepository(client, clock.Now),
		tokens:   tokens,
		hasher:   newCountingHasher(),
		mail:     &capturedMail{},
		totp:     NewTOTPEngine("A-Z Express"),
		clock:    clock,
		redis:    server,
	}

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	h.service = NewService(Dependencies{
		Users:     h.users,
		Sessions:  h.sessions,
		Tokens:    tokens,
		Hasher:    h.hasher,
		Notifier:  h.mail,
		Mail:      composer,
		TwoFactor: h.totp,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     clock.Now,
	}, options)

	return h
}

// advance moves both the service clock and the Redis TTL clock.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.redis.FastForward(d)
}

func (h *harness) register(t *testing.T, username, email, password string) *User {
	t.Helper()
	user, err := h.service.Register(context.Background(), RegisterInput{
		Username: username, Email: email, Password: password,
	})
	require.NoError(t, err)
	return user
}

func (h *harness) login(email, password string) (*LoginResult, error) {
	return h.service.Login(context.Background(), LoginInput{
		Email:    email,
		Password: password,
		Device:   DeviceInfo{Browser: Software{Name: "Firefox", Version: "128.0"}},
	})
}

func (h *harness) sessionCount(t *testing.T, userID string) int {
	t.Helper()
	sessions, err := h.sessions.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	return len(sessions)
}

var (
	resetCodePattern = regexp.MustCompile(`reset code is (\d{6})`)
	linkPattern      = regexp.MustCompile(`/(?:reset-password|verify-email)/(\S+)`)
)

// resetCode extracts the emailed reset code.
func resetCode(t *testing.T, message *notify.Message) string {
	t.Helper()
	require.NotNil(t, message)
	match := resetCodePattern.FindStringSubmatch(message.Text)
	require.Len(t, match, 2)
	return match[1]
}

// linkToken extracts the token from the emailed link.
func linkToken(t *testing.T, message *notify.Message) string {
	t.Helper()
	require.NotNil(t, message)
	match := linkPattern.FindStringSubmatch(message.Text)
	require.Len(t, match, 2)
	token, err := url.PathUnescape(match[1])
	require.NoError(t, err)
	return token
}

// requireKind asserts err is an AppError of the given code.
func requireKind(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperr.IsKind(err, code), "want %s, got %v", code, err)
}
