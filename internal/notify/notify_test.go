// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package notify_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/notify"
)

func newComposer(t *testing.T) *notify.Composer {
	t.Helper()
	composer, err := notify.NewComposer(notify.ComposerConfig{
		Brand:       "A-Z Express",
		From:        "support@azexpress.test",
		FrontendURL: "https://shop.azexpress.test/",
	})
	require.NoError(t, err)
	return composer
}

/*
TestComposer_ResetPassword verifies the reset email carries code, link and validity.
*/
func TestComposer_ResetPassword(t *testing.T) {
	composer := newComposer(t)

	message, err := composer.ResetPassword("alice@x.com", "alice", "042917", "tok.en/x", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, notify.KindResetPassword, message.Kind)
	assert.Equal(t, "alice@x.com", message.To)
	assert.Equal(t, "support@azexpress.test", message.From)
	assert.Equal(t, "Reset your A-Z Express password", message.Subject)
	assert.Contains(t, message.Text, "042917")
	assert.Contains(t, message.Text, "10 minutes")
	assert.Contains(t, message.Text, "https://shop.azexpress.test/reset-password/tok.en%2Fx")
	assert.Contains(t, message.HTML, "<strong>042917</strong>")
}

/*
TestComposer_EscapesHTML verifies user-controlled names cannot inject markup.
*/
func TestComposer_EscapesHTML(t *testing.T) {
	composer := newComposer(t)

	message, err := composer.Welcome("eve@x.com", "<script>eve</script>")
	require.NoError(t, err)

	assert.NotContains(t, message.HTML, "<script>")
	assert.Contains(t, message.Text, "<script>eve</script>")
}

func TestComposer_AllKinds(t *testing.T) {
	composer := newComposer(t)
	until := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	builders := map[notify.Kind]func() (notify.Message, error){
		notify.KindWelcome:         func() (notify.Message, error) { return composer.Welcome("a@x.com", "a") },
		notify.KindVerifyEmail:     func() (notify.Message, error) { return composer.VerifyEmail("a@x.com", "a", "t", 24*time.Hour) },
		notify.KindPasswordChanged: func() (notify.Message, error) { return composer.PasswordChanged("a@x.com", "a") },
		notify.KindAccountLocked:   func() (notify.Message, error) { return composer.AccountLocked("a@x.com", "a", until) },
	}

	for kind, build := range builders {
		message, err := build()
		require.NoError(t, err, kind)
		assert.Equal(t, kind, message.Kind)
		assert.NotEmpty(t, message.Subject)
		assert.NotEmpty(t, message.Text)
		assert.NotEmpty(t, message.HTML)
	}

	verify, _ := composer.VerifyEmail("a@x.com", "a", "t", 24*time.Hour)
	assert.Contains(t, verify.Text, "24 hours")

	locked, _ := composer.AccountLocked("a@x.com", "a", until)
	assert.Contains(t, locked.Text, "09:30 UTC")
}

// # Sinks

func TestRedisOutboxSink_FIFO(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink := notify.NewRedisOutboxSink(client, "notify:outbox")
	ctx := context.Background()

	require.NoError(t, sink.Send(ctx, notify.Message{Kind: notify.KindWelcome, To: "first@x.com"}))
	require.NoError(t, sink.Send(ctx, notify.Message{Kind: notify.KindWelcome, To: "second@x.com"}))

	length, err := sink.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	first, err := sink.Next(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "first@x.com", first.To)

	second, err := sink.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second@x.com", second.To)
}

func TestLogSink_OmitsBody(t *testing.T) {
	var buffer bytes.Buffer
	sink := notify.NewLogSink(slog.New(slog.NewJSONHandler(&buffer, nil)))

	err := sink.Send(context.Background(), notify.Message{
		Kind: notify.KindResetPassword, To: "alice@x.com", Subject: "Reset", Text: "code 123456",
	})
	require.NoError(t, err)

	assert.Contains(t, buffer.String(), "alice@x.com")
	assert.NotContains(t, buffer.String(), "123456")
}

// # Dispatcher

// recordingSink captures messages and optionally fails.
type recordingSink struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
	block    chan struct{}
}

func (sink *recordingSink) Send(ctx context.Context, message notify.Message) error {
	if sink.block != nil {
		<-sink.block
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.messages = append(sink.messages, message)
	return sink.err
}

/*
TestDispatcher_DoesNotBlockCaller verifies Notify returns before a slow sink finishes.
*/
func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	dispatcher := notify.NewDispatcher(sink, slog.New(slog.NewJSONHandler(io.Discard, nil)), time.Second)

	done := make(chan struct{})
	go func() {
		dispatcher.Notify(context.Background(), notify.Message{To: "a@x.com"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on the sink")
	}

	close(sink.block)
	dispatcher.Wait()
	assert.Len(t, sink.messages, 1)
	assert.False(t, sink.messages[0].CreatedAt.IsZero())
}

/*
TestDispatcher_LogsFailures verifies sink errors are logged, not returned.
*/
func TestDispatcher_LogsFailures(t *testing.T) {
	var buffer bytes.Buffer
	sink := &recordingSink{err: errors.New("smtp down")}
	dispatcher := notify.NewDispatcher(sink, slog.New(slog.NewJSONHandler(&buffer, nil)), time.Second)

	dispatcher.Notify(context.Background(), notify.Message{Kind: notify.KindWelcome, To: "a@x.com"})
	dispatcher.Wait()

	assert.Contains(t, buffer.String(), "notify_send_failed")
	assert.Contains(t, buffer.String(), "smtp down")
}

/*
TestDispatcher_SurvivesCancelledCaller verifies a cancelled request context does not abort delivery.
*/
func TestDispatcher_SurvivesCancelledCaller(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := notify.NewDispatcher(sink, slog.New(slog.NewJSONHandler(io.Discard, nil)), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher.Notify(ctx, notify.Message{To: "a@x.com"})
	dispatcher.Wait()

	assert.Len(t, sink.messages, 1)
}

type panickingSink struct{}

func (panickingSink) Send(context.Context, notify.Message) error { panic("boom") }

func TestDispatcher_RecoversPanics(t *testing.T) {
	var buffer bytes.Buffer
	dispatcher := notify.NewDispatcher(panickingSink{}, slog.New(slog.NewJSONHandler(&buffer, nil)), time.Second)

	dispatcher.Notify(context.Background(), notify.Message{To: "a@x.com"})
	dispatcher.Wait()

	assert.Contains(t, buffer.String(), "panic: boom")
}
