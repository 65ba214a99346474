// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher hands messages to a [Sink] without blocking the caller.
//
// # Failure policy
//
// Send errors and sink panics are logged at error level and then dropped.
// The caller's context only contributes values; its cancellation does not
// abort a send already handed off, and each send gets its own timeout.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	inflight sync.WaitGroup
}

// NewDispatcher builds a Dispatcher. A non-positive timeout means 10 seconds.
func NewDispatcher(sink Sink, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sink: sink, logger: logger, timeout: timeout, now: time.Now}
}

// Notify schedules message for delivery and returns immediately.
func (dispatcher *Dispatcher) Notify(ctx context.Context, message Message) {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = dispatcher.now()
	}

	detached := context.WithoutCancel(ctx)

	dispatcher.inflight.Add(1)
	go func() {
		defer dispatcher.inflight.Done()
		dispatcher.deliver(detached, message)
	}()
}

// Wait blocks until every scheduled message has been attempted.
// Called on shutdown and from tests.
func (dispatcher *Dispatcher) Wait() {
	dispatcher.inflight.Wait()
}

func (dispatcher *Dispatcher) deliver(ctx context.Context, message Message) {
	sendCtx, cancel := context.WithTimeout(ctx, dispatcher.timeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			dispatcher.logFailure(ctx, message, fmt.Errorf("panic: %v", recovered))
		}
	}()

	if err := dispatcher.sink.Send(sendCtx, message); err != nil {
		dispatcher.logFailure(ctx, message, err)
	}
}

func (dispatcher *Dispatcher) logFailure(ctx context.Context, message Message, err error) {
	dispatcher.logger.ErrorContext(ctx, "notify_send_failed",
		slog.String("kind", string(message.Kind)),
		slog.String("to", message.To),
		slog.Any("error", err),
	)
}
